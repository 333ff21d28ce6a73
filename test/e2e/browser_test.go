//go:build e2e

// Package e2e drives the web UI and API from a real browser.
//
// These tests need Playwright Chromium:
//
//	go run github.com/playwright-community/playwright-go/cmd/playwright install chromium
//
// Run: go test -tags e2e -v -timeout 120s ./test/e2e
// Visible browser: HEADLESS=false go test -tags e2e ./test/e2e
// Against a running instance: E2E_BASE_URL=http://host:8000 go test -tags e2e ./test/e2e
package e2e

import (
	"fmt"
	"io/fs"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/playwright-community/playwright-go"

	"github.com/battlewithbytes/vagrantgen/internal/config"
	"github.com/battlewithbytes/vagrantgen/internal/events"
	"github.com/battlewithbytes/vagrantgen/internal/server"
	"github.com/battlewithbytes/vagrantgen/internal/store"
	"github.com/battlewithbytes/vagrantgen/web"
)

var (
	baseURL string
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
)

// TestMain starts an in-process server unless E2E_BASE_URL is set, then
// launches the browser.
func TestMain(m *testing.M) {
	baseURL = os.Getenv("E2E_BASE_URL")
	var cleanup func()
	if baseURL == "" {
		var err error
		baseURL, cleanup, err = startServer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: starting server: %v\n", err)
			os.Exit(1)
		}
	}

	code, err := withBrowser(m)
	if cleanup != nil {
		cleanup()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func startServer() (string, func(), error) {
	dataDir, err := os.MkdirTemp("", "vagrantgen-e2e-*")
	if err != nil {
		return "", nil, err
	}
	cfg := config.Default()
	cfg.Storage.DataDir = dataDir
	cfg.Footer.Dir = dataDir + "/footer"

	hub := events.NewHub(nil)
	st, err := store.Open(dataDir, store.WithPublisher(hub))
	if err != nil {
		return "", nil, err
	}
	if err := st.SeedBoxes(); err != nil {
		return "", nil, err
	}
	spa, err := fs.Sub(web.FrontendFS, "dist")
	if err != nil {
		return "", nil, err
	}
	srv := server.New(cfg, st, spa, server.WithHub(hub))
	ts := httptest.NewServer(srv.Handler())
	return ts.URL, func() {
		hub.Close()
		ts.Close()
		os.RemoveAll(dataDir)
	}, nil
}

func withBrowser(m *testing.M) (int, error) {
	var err error
	pw, err = playwright.Run()
	if err != nil {
		return 0, fmt.Errorf("playwright.Run: %w", err)
	}
	defer pw.Stop()

	browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(os.Getenv("HEADLESS") != "false"),
		Args:     []string{"--no-sandbox", "--disable-gpu"},
	})
	if err != nil {
		return 0, fmt.Errorf("browser launch: %w", err)
	}
	defer browser.Close()

	ctx, err := browser.NewContext()
	if err != nil {
		return 0, fmt.Errorf("browser context: %w", err)
	}
	page, err = ctx.NewPage()
	if err != nil {
		return 0, fmt.Errorf("new page: %w", err)
	}
	return m.Run(), nil
}

func TestIndexServed(t *testing.T) {
	navigate(t, "/")
	assertVisible(t, page.Locator("#app"), "app root")
}

func TestClientRouteFallsBackToIndex(t *testing.T) {
	navigate(t, "/projects/does-not-exist")
	assertVisible(t, page.Locator("#app"), "app root on deep link")
}

func TestProjectLifecycleFromBrowser(t *testing.T) {
	navigate(t, "/")

	content := evaluate(t, `async () => {
		const json = { "Content-Type": "application/json" };
		let r = await fetch("/api/projects", { method: "POST", headers: json,
			body: JSON.stringify({ name: "pw-lab", description: "browser test" }) });
		if (r.status !== 201) return "create: " + r.status + " " + await r.text();
		const p = await r.json();

		r = await fetch("/api/projects/" + p.id + "/vms", { method: "POST", headers: json,
			body: JSON.stringify({ name: "web", box: "generic/ubuntu2204", memory: 1024, cpus: 1,
				network_interfaces: [{ type: "private_network", ip_assignment: "static", ip_address: "192.168.56.20" }] }) });
		if (r.status !== 201) return "vm: " + r.status + " " + await r.text();

		r = await fetch("/api/projects/" + p.id + "/download");
		const text = await r.text();
		await fetch("/api/projects/" + p.id, { method: "DELETE" });
		return text;
	}`)
	if !strings.Contains(content, "Vagrant.configure") {
		t.Fatalf("download did not return a Vagrantfile: %s", content)
	}
	if !strings.Contains(content, `"192.168.56.20"`) {
		t.Errorf("Vagrantfile missing VM address: %s", content)
	}
}

func TestEventStreamInBrowser(t *testing.T) {
	if os.Getenv("E2E_BASE_URL") != "" {
		t.Skip("event stream assertions need the in-process server")
	}
	navigate(t, "/")

	got := evaluate(t, `async () => {
		const url = location.origin.replace(/^http/, "ws") + "/api/events";
		const ws = new WebSocket(url);
		await new Promise((resolve, reject) => { ws.onopen = resolve; ws.onerror = reject; });
		const first = new Promise(resolve => { ws.onmessage = e => resolve(e.data); });
		const r = await fetch("/api/projects", { method: "POST",
			headers: { "Content-Type": "application/json" },
			body: JSON.stringify({ name: "pw-events" }) });
		const p = await r.json();
		const msg = await Promise.race([first, new Promise(r => setTimeout(() => r("timeout"), 5000))]);
		ws.close();
		await fetch("/api/projects/" + p.id, { method: "DELETE" });
		return msg;
	}`)
	if !strings.Contains(got, `"entity":"project"`) || !strings.Contains(got, `"type":"created"`) {
		t.Fatalf("unexpected first event: %s", got)
	}
}

// --- helpers ---

func navigate(t *testing.T, path string) {
	t.Helper()
	if _, err := page.Goto(baseURL+path, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(15000),
	}); err != nil {
		t.Fatalf("navigate to %s: %v", path, err)
	}
}

func assertVisible(t *testing.T, loc playwright.Locator, name string) {
	t.Helper()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	}); err != nil {
		t.Errorf("%s not visible: %v", name, err)
	}
}

// evaluate runs an async function in the page and returns its string result.
func evaluate(t *testing.T, fn string) string {
	t.Helper()
	v, err := page.Evaluate(fn)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	s, ok := v.(string)
	if !ok {
		t.Fatalf("evaluate returned %T, want string", v)
	}
	return s
}

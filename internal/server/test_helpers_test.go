package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/battlewithbytes/vagrantgen/internal/config"
	"github.com/battlewithbytes/vagrantgen/internal/events"
	"github.com/battlewithbytes/vagrantgen/internal/history"
	"github.com/battlewithbytes/vagrantgen/internal/store"
)

const testVM = `{"name":"web","box":"generic/ubuntu2204","memory":2048,"cpus":2,
	"network_interfaces":[{"type":"private_network","ip_assignment":"static","ip_address":"192.168.56.10"}]}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Service.BindAddress = "127.0.0.1"
	cfg.Service.Port = 0
	cfg.Storage.DataDir = t.TempDir()
	cfg.Footer.Dir = t.TempDir()
	cfg.Auth.Mode = config.AuthModeNone
	return cfg
}

func testServerWith(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	hub := events.NewHub(nil)
	t.Cleanup(hub.Close)
	st, err := store.Open(cfg.Storage.DataDir, store.WithPublisher(hub))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	hist, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"), 0)
	if err != nil {
		t.Fatalf("history.NewStore: %v", err)
	}
	t.Cleanup(func() { hist.Close() })
	return New(cfg, st, nil, WithHistory(hist), WithHub(hub))
}

func testServer(t *testing.T) *Server {
	t.Helper()
	return testServerWith(t, testConfig(t))
}

func doRequest(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, w.Body.String())
	}
	return result
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var result []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode JSON list: %v (body: %s)", err, w.Body.String())
	}
	return result
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}

// createProject creates a project with one VM and returns its ID.
func createProject(t *testing.T, srv *Server, name string) string {
	t.Helper()
	w := doRequest(t, srv, "POST", "/api/projects", `{"name":"`+name+`","description":"test lab"}`)
	expectStatus(t, w, http.StatusCreated)
	id, _ := decodeJSON(t, w)["id"].(string)
	if id == "" {
		t.Fatal("created project has no id")
	}
	expectStatus(t, doRequest(t, srv, "POST", "/api/projects/"+id+"/vms", testVM), http.StatusCreated)
	return id
}

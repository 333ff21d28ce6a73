// Package installer runs the interactive first-time setup that writes
// config.yml.
package installer

import (
	"fmt"
	"net"
	"os"

	"github.com/battlewithbytes/vagrantgen/internal/config"
	"github.com/battlewithbytes/vagrantgen/internal/store"
	"github.com/battlewithbytes/vagrantgen/internal/ui"
)

// Run is the main entrypoint for the setup wizard.
func Run(configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		cfg = config.Default()
	}

	answers := DefaultAnswers(cfg)
	form := BuildForm(configPath, answers)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	if !answers.Confirmed {
		fmt.Println("Setup cancelled.")
		return nil
	}

	if err := answers.Apply(cfg); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := checkPortAvailable(cfg.Service.BindAddress, cfg.Service.Port); err != nil {
		return fmt.Errorf("port %d is already in use: %w", cfg.Service.Port, err)
	}

	if err := cfg.Save(configPath); err != nil {
		return err
	}

	// Create the data layout and seed the box catalog now so the first
	// serve does not race the CLI.
	st, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("preparing data directory: %w", err)
	}
	if err := st.SeedBoxes(); err != nil {
		return fmt.Errorf("seeding boxes: %w", err)
	}
	if err := os.MkdirAll(cfg.Footer.Dir, 0750); err != nil {
		return fmt.Errorf("creating footer directory: %w", err)
	}

	displayAddr := cfg.Service.BindAddress
	if displayAddr == "0.0.0.0" || displayAddr == "" {
		if ip := PrimaryIP(); ip != "" {
			displayAddr = ip
		}
	}

	fmt.Println()
	fmt.Println(ui.Green.Render("Setup complete!"))
	fmt.Println()
	fmt.Printf("  Web UI:    http://%s:%d\n", displayAddr, cfg.Service.Port)
	fmt.Printf("  Health:    http://%s:%d/api/health\n", displayAddr, cfg.Service.Port)
	fmt.Printf("  Config:    %s\n", configPath)
	fmt.Printf("  Data:      %s/\n", cfg.Storage.DataDir)
	fmt.Printf("  Start:     vagrantgen serve --config %s\n", configPath)
	fmt.Println()

	return nil
}

// checkPortAvailable tries to listen on the port to verify it's free.
func checkPortAvailable(addr string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

// PrimaryIP returns the first non-loopback IPv4 address of the host.
func PrimaryIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return ""
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/battlewithbytes/vagrantgen/internal/config"
	"github.com/battlewithbytes/vagrantgen/internal/events"
	"github.com/battlewithbytes/vagrantgen/internal/installer"
	"github.com/battlewithbytes/vagrantgen/internal/logging"
	"github.com/battlewithbytes/vagrantgen/internal/server"
	"github.com/battlewithbytes/vagrantgen/internal/store"
	"github.com/battlewithbytes/vagrantgen/internal/ui"
	"github.com/battlewithbytes/vagrantgen/web"
)

const shutdownTimeout = 10 * time.Second

var (
	serveDataDir string
	serveSPADir  string
	serveDev     bool
)

func init() {
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "override storage.data_dir")
	serveCmd.Flags().StringVar(&serveSPADir, "spa-dir", "", "serve the frontend from this directory instead of the embedded build")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "run with default settings when the config file is missing")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vagrantgen web service",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg *config.Config
			err error
		)
		if serveDev {
			cfg, err = config.LoadOrDefault(configPath)
		} else {
			cfg, err = config.Load(configPath)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if serveDataDir != "" {
			cfg.Storage.DataDir = serveDataDir
		}

		log, err := logging.FromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer log.Sync()

		hub := events.NewHub(log.Named("events"))
		defer hub.Close()

		st, err := openStore(cfg, log.Named("store"), store.WithPublisher(hub))
		if err != nil {
			return err
		}
		if err := st.SeedBoxes(); err != nil {
			return fmt.Errorf("seeding boxes: %w", err)
		}

		opts := []server.Option{server.WithLogger(log), server.WithHub(hub)}
		hist, err := openHistory(cfg)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		if hist != nil {
			defer hist.Close()
			opts = append(opts, server.WithHistory(hist))
		}

		watcher, err := events.NewWatcher(st.Dir(), st.WatchDirs(), hub, log.Named("watcher"),
			events.WithIgnore(st.WroteRecently))
		if err != nil {
			return err
		}

		spaFS, spaSource := frontendFS()
		srv := server.New(cfg, st, spaFS, opts...)

		fmt.Println(ui.Green.Render("vagrantgen") + " starting...")
		fmt.Printf("  data:     %s\n", st.Dir())
		fmt.Printf("  footer:   %s\n", cfg.Footer.Dir)
		fmt.Printf("  auth:     %s\n", cfg.Auth.Mode)
		fmt.Printf("  history:  %s\n", onOff(hist != nil))
		fmt.Printf("  terminal: %s\n", onOff(cfg.Terminal.Enabled))
		fmt.Printf("  spa:      %s\n", spaSource)
		printListen(srv.Addr())

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			return watcher.Run(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			fmt.Println("\nShutting down...")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			hub.Close()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn("graceful shutdown failed", zap.Error(err))
				return err
			}
			return nil
		})
		return g.Wait()
	},
}

// frontendFS prefers --spa-dir, then the embedded build. A build holding only
// the placeholder index.html still serves it so the API-only binary has a
// landing page.
func frontendFS() (fs.FS, string) {
	if serveSPADir != "" {
		if info, err := os.Stat(filepath.Join(serveSPADir, "index.html")); err == nil && !info.IsDir() {
			return os.DirFS(serveSPADir), "serving from disk (" + serveSPADir + ")"
		}
		fmt.Fprintf(os.Stderr, "warning: %s has no index.html, falling back to embedded build\n", serveSPADir)
	}
	if sub, err := fs.Sub(web.FrontendFS, "dist"); err == nil {
		if _, err := fs.Stat(sub, "index.html"); err == nil {
			return sub, "serving from embedded binary"
		}
	}
	return nil, "no frontend build found (API-only mode)"
}

func printListen(addr string) {
	if strings.HasPrefix(addr, "0.0.0.0:") {
		if ip := installer.PrimaryIP(); ip != "" {
			fmt.Printf("\nListening on http://%s (http://%s)\n", addr, ip+addr[len("0.0.0.0"):])
			return
		}
	}
	fmt.Printf("\nListening on http://%s\n", addr)
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

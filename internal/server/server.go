package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/battlewithbytes/vagrantgen/internal/config"
	"github.com/battlewithbytes/vagrantgen/internal/events"
	"github.com/battlewithbytes/vagrantgen/internal/history"
	"github.com/battlewithbytes/vagrantgen/internal/store"
)

// Server is the HTTP API for the Vagrantfile generator.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	history *history.Store
	hub     *events.Hub
	log     *zap.Logger
	auth    *sessionStore
	http    *http.Server
	spa     fs.FS // embedded or disk-based SPA assets
	origins map[string]bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithHistory records every generation and download in h.
func WithHistory(h *history.Store) Option {
	return func(s *Server) { s.history = h }
}

// WithHub streams store events from h over /api/events.
func WithHub(h *events.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// New creates a new Server.
func New(cfg *config.Config, st *store.Store, spaFS fs.FS, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		log:     zap.NewNop(),
		auth:    newSessionStore(),
		spa:     spaFS,
		origins: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("server")
	for _, o := range cfg.CORS.Origins {
		s.origins[o] = true
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Projects
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.withAuth(s.handleCreateProject))
	mux.HandleFunc("POST /api/projects/import", s.withAuth(s.handleImportProject))
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.withAuth(s.handleUpdateProject))
	mux.HandleFunc("DELETE /api/projects/{id}", s.withAuth(s.handleDeleteProject))
	mux.HandleFunc("PUT /api/projects/{id}/status", s.withAuth(s.handleSetStatus))
	mux.HandleFunc("POST /api/projects/{id}/validate", s.handleValidateProject)
	mux.HandleFunc("POST /api/projects/{id}/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/projects/{id}/download", s.handleDownload)
	mux.HandleFunc("GET /api/projects/{id}/history", s.handleHistory)
	mux.HandleFunc("POST /api/projects/{id}/export", s.withAuth(s.handleExportProject))
	mux.HandleFunc("GET /api/projects/{id}/terminal", s.withAuth(s.handleTerminal))

	// VMs and network interfaces
	mux.HandleFunc("POST /api/projects/{id}/vms", s.withAuth(s.handleAddVM))
	mux.HandleFunc("POST /api/projects/{id}/vms/bulk", s.withAuth(s.handleBulkVMs))
	mux.HandleFunc("PUT /api/projects/{id}/vms/{vm}", s.withAuth(s.handleUpdateVM))
	mux.HandleFunc("DELETE /api/projects/{id}/vms/{vm}", s.withAuth(s.handleDeleteVM))
	mux.HandleFunc("POST /api/projects/{id}/vms/{vm}/network-interfaces", s.withAuth(s.handleAddInterface))
	mux.HandleFunc("PUT /api/projects/{id}/vms/{vm}/network-interfaces/{iface}", s.withAuth(s.handleUpdateInterface))
	mux.HandleFunc("DELETE /api/projects/{id}/vms/{vm}/network-interfaces/{iface}", s.withAuth(s.handleDeleteInterface))

	// Project plugins, provisioners and triggers
	mux.HandleFunc("GET /api/projects/{id}/plugins", s.handleListProjectPlugins)
	mux.HandleFunc("POST /api/projects/{id}/plugins", s.withAuth(s.handleAddProjectPlugin))
	mux.HandleFunc("PUT /api/projects/{id}/plugins/{name}", s.withAuth(s.handleUpdateProjectPlugin))
	mux.HandleFunc("DELETE /api/projects/{id}/plugins/{name}", s.withAuth(s.handleDeleteProjectPlugin))
	mux.HandleFunc("GET /api/projects/{id}/provisioners", s.handleListProjectProvisioners)
	mux.HandleFunc("POST /api/projects/{id}/provisioners/{pid}", s.withAuth(s.handleAttachProvisioner))
	mux.HandleFunc("DELETE /api/projects/{id}/provisioners/{pid}", s.withAuth(s.handleDetachProvisioner))
	mux.HandleFunc("GET /api/projects/{id}/triggers", s.handleListProjectTriggers)
	mux.HandleFunc("POST /api/projects/{id}/triggers/{tid}", s.withAuth(s.handleAttachTrigger))
	mux.HandleFunc("DELETE /api/projects/{id}/triggers/{tid}", s.withAuth(s.handleDetachTrigger))

	// Shared catalogs
	mux.HandleFunc("GET /api/boxes", s.handleListBoxes)
	mux.HandleFunc("POST /api/boxes", s.withAuth(s.handleCreateBox))
	mux.HandleFunc("GET /api/boxes/{id}", s.handleGetBox)
	mux.HandleFunc("PUT /api/boxes/{id}", s.withAuth(s.handleUpdateBox))
	mux.HandleFunc("DELETE /api/boxes/{id}", s.withAuth(s.handleDeleteBox))
	mux.HandleFunc("GET /api/plugins", s.handleListPlugins)
	mux.HandleFunc("POST /api/plugins", s.withAuth(s.handleCreatePlugin))
	mux.HandleFunc("GET /api/plugins/{id}", s.handleGetPlugin)
	mux.HandleFunc("PUT /api/plugins/{id}", s.withAuth(s.handleUpdatePlugin))
	mux.HandleFunc("DELETE /api/plugins/{id}", s.withAuth(s.handleDeletePlugin))
	mux.HandleFunc("GET /api/provisioners", s.handleListProvisioners)
	mux.HandleFunc("POST /api/provisioners", s.withAuth(s.handleCreateProvisioner))
	mux.HandleFunc("GET /api/provisioners/{id}", s.handleGetProvisioner)
	mux.HandleFunc("PUT /api/provisioners/{id}", s.withAuth(s.handleUpdateProvisioner))
	mux.HandleFunc("DELETE /api/provisioners/{id}", s.withAuth(s.handleDeleteProvisioner))
	mux.HandleFunc("GET /api/provisioners/{id}/preview", s.handlePreviewProvisioner)
	mux.HandleFunc("GET /api/triggers", s.handleListTriggers)
	mux.HandleFunc("POST /api/triggers", s.withAuth(s.handleCreateTrigger))
	mux.HandleFunc("GET /api/triggers/{id}", s.handleGetTrigger)
	mux.HandleFunc("PUT /api/triggers/{id}", s.withAuth(s.handleUpdateTrigger))
	mux.HandleFunc("DELETE /api/triggers/{id}", s.withAuth(s.handleDeleteTrigger))
	mux.HandleFunc("GET /api/triggers/{id}/preview", s.handlePreviewTrigger)
	mux.HandleFunc("GET /api/vagrant/boxes", s.handleSuggestedBoxes)
	mux.HandleFunc("GET /api/vagrant/plugins", s.handleSuggestedPlugins)

	// Footer, system and events
	mux.HandleFunc("GET /api/footer/files", s.handleFooterFiles)
	mux.HandleFunc("GET /api/footer/content/{filename}", s.handleFooterContent)
	mux.HandleFunc("GET /api/system/stats", s.handleSystemStats)
	mux.HandleFunc("GET /api/system/health", s.handleSystemHealth)
	mux.HandleFunc("POST /api/system/backups/cleanup", s.withAuth(s.handleCleanupBackups))
	mux.HandleFunc("GET /api/events", s.withAuth(s.handleEvents))

	// Auth
	if cfg.Auth.Mode == config.AuthModePassword {
		mux.HandleFunc("POST /api/auth/login", s.handleLogin)
		mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
		mux.HandleFunc("GET /api/auth/check", s.handleAuthCheck)
	}

	// SPA fallback: serve index.html for all non-API routes
	if spaFS != nil {
		mux.Handle("/", s.spaHandler())
	}

	var handler http.Handler = mux
	handler = maxBodyMiddleware(handler, 1<<20)
	handler = s.corsMiddleware(handler)
	handler = s.logMiddleware(handler)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Service.BindAddress, cfg.Service.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

func maxBodyMiddleware(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades and static assets are left alone
		if r.Body != nil && strings.HasPrefix(r.URL.Path, "/api/") && r.Method != "GET" &&
			!strings.Contains(r.Header.Get("Upgrade"), "websocket") {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed by the websocket upgrade, which asserts http.Hijacker
// directly on the writer it is given.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
		)
	})
}

// corsMiddleware allows the configured origins plus same-host and localhost
// origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin, r.Host) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Upgrade, Connection, X-Allow-Public-IPs")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin, host string) bool {
	if s.origins["*"] || s.origins[origin] {
		return true
	}
	if strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
		return true
	}
	return strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:")
}

// allowedOriginPatterns returns WebSocket origin patterns for this request.
func (s *Server) allowedOriginPatterns(r *http.Request) []string {
	patterns := []string{"localhost:*", "127.0.0.1:*"}
	if host := r.Host; host != "" {
		h := host
		if idx := strings.LastIndex(h, ":"); idx > 0 {
			h = h[:idx]
		}
		patterns = append(patterns, h+":*", host)
	}
	for o := range s.origins {
		if i := strings.Index(o, "://"); i >= 0 {
			patterns = append(patterns, o[i+3:])
		} else {
			patterns = append(patterns, o)
		}
	}
	return patterns
}

// spaHandler serves static files from the SPA filesystem, falling back to index.html.
func (s *Server) spaHandler() http.Handler {
	fileServer := http.FileServerFS(s.spa)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		path := r.URL.Path
		if path == "/" {
			path = "index.html"
		}
		cleanPath := strings.TrimPrefix(path, "/")

		if f, err := s.spa.Open(cleanPath); err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		// Client-side routes get index.html
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

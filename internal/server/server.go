package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/apibuilder/internal/config"
	"github.com/yourorg/apibuilder/internal/generator"
	"github.com/yourorg/apibuilder/internal/har"
	"github.com/yourorg/apibuilder/internal/store"
	"github.com/yourorg/apibuilder/pkg/render"
	"github.com/yourorg/apibuilder/pkg/types"
)

// maxUpload bounds request bodies of the import endpoints.
const maxUpload = 32 << 20

var (
	//go:embed ui.html
	uiHTML string

	uiTemplate = template.Must(template.New("ui").Parse(uiHTML))
)

// Server wraps the preview UI and API handlers.
type Server struct {
	cfg      *config.Config
	store    store.Store
	pipeline *generator.Pipeline
	router   *mux.Router
	Logger   *slog.Logger

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	imports  *prometheus.CounterVec
	renders  *prometheus.CounterVec
}

type uiData struct {
	Title     string
	Documents []types.Document
	Document  *types.Document
	Output    string
}

// New constructs a new Server with routes registered.
func New(cfg *config.Config, st store.Store, p *generator.Pipeline) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	if p == nil {
		return nil, errors.New("pipeline is nil")
	}

	srv := &Server{
		cfg:      cfg,
		store:    st,
		pipeline: p,
		router:   mux.NewRouter(),
		Logger:   p.Logger,
	}
	srv.initMetrics()
	srv.registerRoutes()
	return srv, nil
}

func (s *Server) initMetrics() {
	s.registry = prometheus.NewRegistry()
	s.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apibuilder_http_requests_total",
			Help: "HTTP requests by route template, method and status code",
		},
		[]string{"route", "method", "code"},
	)
	s.imports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apibuilder_imports_total",
			Help: "Stored tree versions by import source",
		},
		[]string{"source"},
	)
	s.renders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apibuilder_renders_total",
			Help: "Rendered outputs by format and cache result",
		},
		[]string{"format", "cache"},
	)
	s.registry.MustRegister(s.requests, s.imports, s.renders)
}

// Handler returns the http handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	s.log().Info("server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(s.countRequests)
	// middleware only wraps matched routes
	r.NotFoundHandler = s.countRequests(http.NotFoundHandler())
	r.MethodNotAllowedHandler = s.countRequests(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}))

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	// Static file server for generated docs.
	r.PathPrefix("/docs/").Handler(http.StripPrefix("/docs/", http.FileServer(http.Dir(s.cfg.Output.Dir))))

	// UI routes.
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/view/{id}", s.handleDocumentPage).Methods("GET")

	// API routes.
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/documents", s.handleDocuments).Methods("GET")
	api.HandleFunc("/documents/{id}", s.handleDocumentDetail).Methods("GET")
	api.HandleFunc("/documents/{id}", s.handleDocumentDelete).Methods("DELETE")
	api.HandleFunc("/documents/{id}/render", s.handleRender).Methods("GET")
	api.HandleFunc("/documents/{id}/rebuild", s.handleRebuild).Methods("POST")
	api.HandleFunc("/documents/{id}/generate", s.handleGenerate).Methods("POST")
	api.HandleFunc("/documents/{id}/trees", s.handleTreeUpload).Methods("POST")
	api.HandleFunc("/trees", s.handleTreeUpload).Methods("POST")
	api.HandleFunc("/har", s.handleHAR).Methods("POST")
	api.HandleFunc("/traffic", s.handleTraffic).Methods("POST", "OPTIONS")
	api.HandleFunc("/formats", s.handleFormats).Methods("GET")
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.renderUI(w, uiData{Title: "Documents", Documents: docs})
}

func (s *Server) handleDocumentPage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, err := s.store.GetDocument(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.render(id, 0, "markdown", false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.renderUI(w, uiData{Title: d.Title, Document: d, Output: out.Output})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleDocumentDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	version, ok := intParam(w, r, "version")
	if !ok {
		return
	}
	d, err := s.store.GetDocument(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tv, err := s.store.GetTree(id, version)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := struct {
		Document *types.Document    `json:"document"`
		Tree     *types.TreeVersion `json:"tree"`
	}{
		Document: d,
		Tree:     tv,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteDocument(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	version, ok := intParam(w, r, "version")
	if !ok {
		return
	}
	noCache, _ := strconv.ParseBool(r.URL.Query().Get("no_cache"))
	out, err := s.render(id, version, r.URL.Query().Get("format"), noCache)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", mediaType(out.Format)+"; charset=utf-8")
	w.Header().Set("X-Document-Version", strconv.Itoa(out.Version))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out.Output)
}

func (s *Server) render(id string, version int, format string, noCache bool) (*types.Render, error) {
	out, hit, err := s.pipeline.Render(id, version, format, noCache)
	if err != nil {
		return nil, err
	}
	cache := "miss"
	if hit {
		cache = "hit"
	}
	s.renders.WithLabelValues(out.Format, cache).Inc()
	return out, nil
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.Rebuild(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.imports.WithLabelValues("rebuild").Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	version, ok := intParam(w, r, "version")
	if !ok {
		return
	}
	var formats []string
	if f := r.URL.Query().Get("formats"); f != "" {
		formats = strings.Split(f, ",")
	}
	paths, err := s.pipeline.Generate(r.Context(), id, version, formats, s.cfg.Output.Dir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "files": paths})
}

func (s *Server) handleTreeUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.pipeline.ImportTree(mux.Vars(r)["id"], data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.imports.WithLabelValues("tree").Inc()
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleHAR(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.ImportHAR(http.MaxBytesReader(w, r.Body, maxUpload), r.URL.Query().Get("title"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.imports.WithLabelValues("har").Inc()
	writeJSON(w, http.StatusCreated, res)
}

// handleTraffic accepts logs captured by a browser extension.
func (s *Server) handleTraffic(w http.ResponseWriter, r *http.Request) {
	setCORS(w, s.cfg.Server.CORSOrigin)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var req struct {
		Title string `json:"title"`
		Logs  []struct {
			Method              string              `json:"method"`
			Host                string              `json:"host"`
			Path                string              `json:"path"`
			QueryParams         map[string][]string `json:"query_params"`
			RequestHeaders      map[string]string   `json:"request_headers"`
			RequestBody         string              `json:"request_body"`
			ContentType         string              `json:"content_type"`
			StatusCode          int                 `json:"status_code"`
			ResponseHeaders     map[string]string   `json:"response_headers"`
			ResponseBody        string              `json:"response_body"`
			ResponseContentType string              `json:"response_content_type"`
			LatencyMs           int64               `json:"latency_ms"`
		} `json:"logs"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpload)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Logs) == 0 {
		http.Error(w, "logs required", http.StatusBadRequest)
		return
	}

	logs := make([]types.TrafficLog, 0, len(req.Logs))
	now := time.Now().UTC()
	for i, l := range req.Logs {
		logs = append(logs, types.TrafficLog{
			Seq:                 i + 1,
			Method:              l.Method,
			Host:                l.Host,
			Path:                l.Path,
			QueryParams:         l.QueryParams,
			RequestHeaders:      l.RequestHeaders,
			RequestBody:         l.RequestBody,
			ContentType:         l.ContentType,
			StatusCode:          l.StatusCode,
			ResponseHeaders:     l.ResponseHeaders,
			ResponseBody:        l.ResponseBody,
			ResponseContentType: l.ResponseContentType,
			LatencyMs:           l.LatencyMs,
			Timestamp:           now,
		})
	}

	res, err := s.pipeline.ImportLogs("extension", req.Title, logs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.imports.WithLabelValues("extension").Inc()
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, render.Names())
}

func (s *Server) renderUI(w http.ResponseWriter, data uiData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := uiTemplate.Execute(w, data); err != nil {
		s.log().Error("render ui", "err", err)
	}
}

// writeError maps pipeline and store errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, generator.ErrNoTraffic):
		status = http.StatusConflict
	case errors.Is(err, render.ErrUnknownFormat),
		errors.Is(err, generator.ErrInvalidTree),
		errors.Is(err, har.ErrInvalid):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log().Error("request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// intParam reads an optional non-negative integer query parameter. On a bad
// value it writes the error response and reports false.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func mediaType(format string) string {
	switch format {
	case "openapi+json", "json":
		return "application/json"
	case "openapi+yaml":
		return "application/yaml"
	case "markdown":
		return "text/markdown"
	default:
		return "text/vnd.apiblueprint"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setCORS(w http.ResponseWriter, origin string) {
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Package server exposes a loaded config store over HTTP.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/service"
	"github.com/davidthor/smartcfg/pkg/store"
)

// Options configures a Server.
type Options struct {
	Addr string

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	Logger *zap.Logger
}

// Server serves lookups, language selection, reloads and change events.
type Server struct {
	svc    *service.Service
	store  *store.Store
	logger *zap.Logger
	addr   string
	mux    *http.ServeMux
	hub    *hub

	removeListener func()
}

// New creates a server for svc and subscribes to its store.
func New(svc *service.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	s := &Server{
		svc:    svc,
		store:  svc.Store(),
		logger: opts.Logger,
		addr:   opts.Addr,
		mux:    http.NewServeMux(),
		hub:    newHub(opts.Logger),
	}

	s.mux.HandleFunc("GET /v1/values/{key}", s.handleValue)
	s.mux.HandleFunc("GET /v1/language", s.handleGetLanguage)
	s.mux.HandleFunc("PUT /v1/language", s.handleSelectLanguage)
	s.mux.HandleFunc("GET /v1/languages", s.handleLanguages)
	s.mux.HandleFunc("POST /v1/reload", s.handleReload)
	s.mux.HandleFunc("GET /v1/events", s.hub.serveWS)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.Metrics != nil {
		s.mux.Handle("GET /metrics", opts.Metrics)
	}

	s.removeListener = s.store.AddListener(store.ListenerFuncs{
		Loaded: func() {
			s.hub.broadcast(EventConfigLoaded, string(s.store.CurrentLanguage()))
		},
		LanguageSelected: func() {
			s.hub.broadcast(EventLanguageSelected, string(s.store.CurrentLanguage()))
		},
	})

	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving config", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close unsubscribes from the store and disconnects event subscribers.
func (s *Server) Close() {
	s.removeListener()
	s.hub.closeAll()
}

type valueResponse struct {
	Key   string      `json:"key"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	typ := r.URL.Query().Get("type")

	var (
		value interface{}
		ok    bool
	)
	switch typ {
	case "":
		typ = "text"
		value, ok = s.store.Text(key)
	case "int":
		value, ok = s.store.GetInt(key)
	case "float":
		value, ok = s.store.GetFloat(key)
	case "bool":
		value, ok = s.store.GetBool(key)
	case "string":
		value, ok = s.store.GetString(key)
	default:
		writeError(w, http.StatusBadRequest, "type must be one of int, float, bool, string")
		return
	}

	if !ok {
		writeError(w, http.StatusNotFound, "config key not found: "+key)
		return
	}
	writeJSON(w, http.StatusOK, valueResponse{Key: key, Type: typ, Value: value})
}

type languageRequest struct {
	Language string `json:"language"`
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, languageRequest{Language: string(s.store.CurrentLanguage())})
}

func (s *Server) handleSelectLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	lang, err := config.ParseLanguage(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.svc.SelectLanguage(lang)
	writeJSON(w, http.StatusOK, languageRequest{Language: string(lang)})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs := s.store.Languages()
	if langs == nil {
		langs = []config.Language{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current":   s.store.CurrentLanguage(),
		"languages": langs,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	src, err := s.svc.LoadFromCloud(r.Context(), nil)
	switch {
	case stderrors.Is(err, service.ErrLoadInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("reload failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"source": string(src)})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loaded":      s.store.Loaded(),
		"platform":    s.store.Platform(),
		"subscribers": s.hub.count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

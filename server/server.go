package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vietscribe/vietscribe/audio"
	"github.com/vietscribe/vietscribe/pipeline"
	"github.com/vietscribe/vietscribe/store"
	"github.com/vietscribe/vietscribe/translate"
)

const (
	// Upload ceiling for the multipart audio endpoint. Large files are
	// segmented downstream; this only guards against unbounded request
	// bodies.
	maxUploadBytes = 512 * 1024 * 1024

	defaultHistoryLimit = 50
)

// Config for the HTTP/WebSocket server. TLS is used when both CertFile and
// KeyFile are set.
type Config struct {
	Addr     string
	CertFile string
	KeyFile  string
}

// Server exposes the translation pipeline over REST and broadcasts completed
// records to WebSocket subscribers.
type Server struct {
	config Config

	pipe  *pipeline.Pipeline
	store *store.Store

	upgrader    websocket.Upgrader
	subscribers sync.Map // map[*wsConnection]struct{}

	server *http.Server
}

// New creates a Server wired to its pipeline and store.
func New(cfg Config, pipe *pipeline.Pipeline, st *store.Store) *Server {
	s := &Server{
		config: cfg,
		pipe:   pipe,
		store:  st,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // TODO: Implement proper origin checking
			},
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/translate/text", s.handleTranslateText).Methods("POST")
	router.HandleFunc("/api/translate/audio", s.handleTranslateAudio).Methods("POST")
	router.HandleFunc("/api/history", s.handleHistory).Methods("GET")
	router.HandleFunc("/api/translation/{id}", s.handleGetTranslation).Methods("GET")
	router.HandleFunc("/ws/translations", s.handleWebSocket)

	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return s
}

// Handler exposes the route table for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		var err error
		if s.config.CertFile != "" && s.config.KeyFile != "" {
			err = s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("HTTP server listening", "addr", s.config.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	total, err := s.store.Count(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"total_translations": total,
	})
}

type translateTextRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTranslateText(w http.ResponseWriter, r *http.Request) {
	var req translateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "Field 'text' is required", http.StatusBadRequest)
		return
	}

	rec, err := s.pipe.ProcessText(r.Context(), req.Text)
	if err != nil {
		slog.Error("Text translation failed", "error", err)
		httpError(w, err)
		return
	}

	s.persistAndRespond(w, r, rec)
}

func (s *Server) handleTranslateAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Multipart field 'file' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	slog.Info("Received audio upload",
		"file", header.Filename,
		"bytes", len(data))

	rec, err := s.pipe.ProcessAudio(r.Context(), data)
	if err != nil {
		slog.Error("Audio translation failed",
			"error", err,
			"file", header.Filename)
		httpError(w, err)
		return
	}

	s.persistAndRespond(w, r, rec)
}

func (s *Server) persistAndRespond(w http.ResponseWriter, r *http.Request, rec pipeline.Record) {
	row, err := s.store.Save(r.Context(), rec)
	if err != nil {
		httpError(w, err)
		return
	}

	s.Broadcast(row)
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var (
		rows []store.Translation
		err  error
	)

	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	if source != "" && target != "" {
		rows, err = s.store.ByLanguagePair(r.Context(), source, target, limit)
	} else {
		rows, err = s.store.Recent(r.Context(), limit)
	}
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"returned":     len(rows),
		"translations": rows,
	})
}

func (s *Server) handleGetTranslation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	row, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Translation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, row)
}

// httpError maps pipeline error types onto HTTP statuses.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, audio.ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, audio.ErrIndivisibleSegment):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case isRemoteFailure(err):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func isRemoteFailure(err error) bool {
	var refusal *translate.RefusalError
	if errors.As(err, &refusal) {
		return true
	}
	var tmp interface{ Temporary() bool }
	return errors.As(err, &tmp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

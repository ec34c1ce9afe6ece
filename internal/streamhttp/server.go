package streamhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"walkeryt/internal/config"
	"walkeryt/internal/logging"
	"walkeryt/internal/pcm"
	"walkeryt/internal/runstore"
)

// Server exposes buffers and progress for runs recorded in a store.
type Server struct {
	cfg      *config.Config
	store    *runstore.Store
	logger   *slog.Logger
	upgrader websocket.Upgrader

	listener net.Listener
	server   *http.Server
}

// New builds a server. Call Start to listen on cfg.Paths.APIBind, or mount
// Handler elsewhere.
func New(cfg *config.Config, store *runstore.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "streamhttp"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Streams stay open for the length of a track; no WriteTimeout.
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	r.HandleFunc("/tracks/{id}", s.handleTrack).Methods(http.MethodGet)
	r.HandleFunc("/tracks/{id}/stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/tracks/{id}/progress", s.handleProgress).Methods(http.MethodGet)
	return r
}

// Start listens and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("paths.api_bind is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("stream server listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("stream server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("stream server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

// RunView is the JSON form of a recorded run.
type RunView struct {
	ID                string  `json:"id"`
	TrackID           string  `json:"track_id"`
	Keep              string  `json:"keep,omitempty"`
	Status            string  `json:"status"`
	SegmentsTotal     int     `json:"segments_total"`
	SegmentsCompleted int     `json:"segments_completed"`
	SegmentsDegraded  int     `json:"segments_degraded"`
	BufferedBytes     int64   `json:"buffered_bytes"`
	BufferedSeconds   float64 `json:"buffered_seconds"`
	Error             string  `json:"error,omitempty"`
	UpdatedAt         string  `json:"updated_at,omitempty"`
	ReadyAt           string  `json:"ready_at,omitempty"`
	FinishedAt        string  `json:"finished_at,omitempty"`
}

// ViewOf converts a stored run.
func ViewOf(run *runstore.Run) RunView {
	return RunView{
		ID:                run.ID,
		TrackID:           run.TrackID,
		Keep:              run.Keep,
		Status:            string(run.Status),
		SegmentsTotal:     run.SegmentsTotal,
		SegmentsCompleted: run.SegmentsCompleted,
		SegmentsDegraded:  run.SegmentsDegraded,
		BufferedBytes:     run.BufferedBytes,
		BufferedSeconds:   pcm.Stream.Duration(run.BufferedBytes).Seconds(),
		Error:             run.ErrorMessage,
		UpdatedAt:         formatTime(run.UpdatedAt),
		ReadyAt:           formatTime(run.ReadyAt),
		FinishedAt:        formatTime(run.FinishedAt),
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, ViewOf(run))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.store.LatestForTrack(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "no run for track")
		return
	}
	s.writeJSON(w, http.StatusOK, ViewOf(run))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	logger := s.logger.With(logging.String(logging.FieldTrackID, id))

	reader, follower, err := OpenStream(r.Context(), s.cfg, s.store, id, logger)
	if err != nil {
		if errors.Is(err, ErrNoRun) {
			s.writeError(w, http.StatusNotFound, "no run for track")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer reader.Close()

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Audio-Rate", strconv.Itoa(pcm.Stream.SampleRate))
	h.Set("X-Audio-Channels", strconv.Itoa(pcm.Stream.Channels))
	h.Set("X-Audio-Format", pcm.Stream.Codec())
	h.Set("X-Run-ID", follower.Run.ID)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()
	buf := make([]byte, 64*1024)
	var sent int64
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				logger.Debug("stream client went away", logging.Error(err), logging.Int64("sent_bytes", sent))
				return
			}
			sent += int64(n)
			_ = rc.Flush()
		}
		if readErr != nil {
			logger.Info("stream ended", logging.Int64("sent_bytes", sent), logging.String("reason", readErr.Error()))
			return
		}
	}
}

// ProgressMessage is pushed over the progress websocket.
type ProgressMessage struct {
	Run   RunView `json:"run"`
	Final bool    `json:"final"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.store.LatestForTrack(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "no run for track")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()
	var last RunView
	for {
		view := ViewOf(run)
		final := run.Status.IsTerminal()
		if view != last || final {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ProgressMessage{Run: view, Final: final}); err != nil {
				return
			}
			last = view
		}
		if final {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(run.Status)),
				time.Now().Add(time.Second))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		current, err := s.store.GetRun(ctx, run.ID)
		if err != nil || current == nil {
			return
		}
		run = current
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("encode response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

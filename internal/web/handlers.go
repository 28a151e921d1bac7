package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/justestif/artist-pulse/internal/aggregate"
	"github.com/justestif/artist-pulse/internal/ingest"
	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/persist"
	"github.com/justestif/artist-pulse/internal/progress"
)

const (
	maxBodyBytes      = 1 << 20
	keepAliveInterval = 15 * time.Second
	healthTimeout     = 2 * time.Second
)

// Ingester accepts ingestion requests.
type Ingester interface {
	Submit(ctx context.Context, req aggregate.Request) error
	SubmitBatch(ctx context.Context, reqs []aggregate.Request) ingest.BatchResult
}

// ArtistReader loads persisted artists.
type ArtistReader interface {
	GetArtistBySlug(ctx context.Context, slug string) (*model.PersistedArtist, error)
}

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// Handlers contains the HTTP handlers of the API.
type Handlers struct {
	ingester Ingester
	progress progress.Notifier
	artists  ArtistReader
	checks   map[string]Checker
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance. checks are run by /healthz.
func NewHandlers(ingester Ingester, notifier progress.Notifier, artists ArtistReader, checks map[string]Checker, logger *zap.Logger) *Handlers {
	return &Handlers{
		ingester: ingester,
		progress: notifier,
		artists:  artists,
		checks:   checks,
		logger:   logger.With(zap.String("pkg", "web")),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Ingest starts an ingestion (POST /api/artists/ingest).
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var req aggregate.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	err := h.ingester.Submit(r.Context(), req)
	var ve *ingest.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, ingest.ErrAlreadyRunning):
		h.logger.Info("ingestion already running", zap.String("id", req.ID()))
	case errors.As(err, &ve):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: ingest.UserMessage(err)})
		return
	case errors.Is(err, ingest.ErrQueueFull), errors.Is(err, ingest.ErrShuttingDown):
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: ingest.UserMessage(err)})
		return
	default:
		h.logger.Error("submitting ingestion", zap.String("id", req.ID()), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: ingest.UserMessage(err)})
		return
	}

	h.writeJSON(w, http.StatusAccepted, messageResponse{Message: "Processing started"})
}

type batchRequest struct {
	Artists []aggregate.Request `json:"artists"`
}

type batchResponse struct {
	Message string `json:"message"`
	ingest.BatchResult
}

// IngestBatch starts one ingestion per artist (POST /api/artists/batch).
func (h *Handlers) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if len(req.Artists) == 0 {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing required fields"})
		return
	}

	res := h.ingester.SubmitBatch(r.Context(), req.Artists)
	h.writeJSON(w, http.StatusAccepted, batchResponse{
		Message:     fmt.Sprintf("Processing %d of %d artists", len(res.Accepted), len(req.Artists)),
		BatchResult: res,
	})
}

// Artist returns a persisted artist (GET /api/artists/{slug}).
func (h *Handlers) Artist(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	artist, err := h.artists.GetArtistBySlug(r.Context(), slug)
	if errors.Is(err, persist.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Artist not found"})
		return
	}
	if err != nil {
		h.logger.Error("loading artist", zap.String("slug", slug), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	h.writeJSON(w, http.StatusOK, artist)
}

// progressFrame is the client-facing shape of a progress update.
type progressFrame struct {
	Stage    progress.Stage `json:"stage"`
	Message  string         `json:"message"`
	Details  string         `json:"details"`
	Progress int            `json:"progress"`
	Payload  any            `json:"payload,omitempty"`
}

// Progress streams a run's updates as server-sent events (GET /api/progress/{id}).
// The stream ends after a terminal update.
func (h *Handlers) Progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("clearing write deadline", zap.Error(err))
	}

	updates, err := h.progress.Subscribe(ctx, id)
	if err != nil {
		h.logger.Error("subscribing to progress", zap.String("id", id), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case u, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(progressFrame{
				Stage:    u.Stage,
				Message:  u.Message,
				Details:  u.Details,
				Progress: u.Progress,
				Payload:  u.Payload,
			})
			if err != nil {
				h.logger.Error("encoding progress frame", zap.String("id", id), zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Health pings every dependency (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[name] = err.Error()
		}
	}

	status := http.StatusOK
	if len(resp.Errors) > 0 {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encoding response", zap.Int("status", status), zap.Error(err))
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("writing response", zap.Error(err))
	}
}

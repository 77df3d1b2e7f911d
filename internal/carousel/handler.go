package carousel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"service-carousel/internal/eventloop"

	"github.com/go-chi/chi/v5"
)

// ChunkContentType is the media type clients send chunks with. The body is
// sniffed, so any content type is accepted.
const ChunkContentType = "application/vnd.apache.arrow.file"

// DefaultMaxChunkBytes bounds the size of an uploaded chunk.
const DefaultMaxChunkBytes = 32 << 20

// Handler exposes the carousel over HTTP using go-chi.
type Handler struct {
	svc      *Service
	log      *slog.Logger
	maxBytes int64
}

// NewHandler returns a Handler for svc. A non-positive maxBytes uses
// DefaultMaxChunkBytes.
func NewHandler(svc *Service, log *slog.Logger, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChunkBytes
	}
	return &Handler{svc: svc, log: log, maxBytes: maxBytes}
}

// Mount registers the carousel routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/chunks", h.AppendChunk)
	r.Route("/replay", func(r chi.Router) {
		r.Post("/", h.ReplaceOrMerge)
		r.Get("/", h.GetReplay)
	})
	r.Route("/animation", func(r chi.Router) {
		r.Get("/", h.GetAnimation)
		r.Post("/start", h.StartAnimation)
		r.Post("/stop", h.StopAnimation)
		r.Post("/refresh", h.RefreshAnimation)
	})
	r.Get("/services/count", h.ServiceCount)
	r.Post("/services/{index}/render", h.RenderService)
	r.Post("/canvas/clear", h.ClearCanvas)
	r.Route("/demo", func(r chi.Router) {
		r.Get("/hello", h.Hello)
		r.Get("/add", h.Add)
		r.Get("/greet", h.Greet)
	})
}

type appendResponse struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

type countResponse struct {
	Count int `json:"count"`
}

// AppendChunk handles POST /chunks. Body: one Arrow IPC file or stream.
func (h *Handler) AppendChunk(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	added, total, err := h.svc.AppendChunk(r.Context(), data)
	if err != nil {
		h.writeError(w, "append chunk", err)
		return
	}
	writeJSON(w, http.StatusOK, appendResponse{Added: added, Total: total})
}

// ReplaceOrMerge handles POST /replay. Body: one Arrow IPC replay file.
func (h *Handler) ReplaceOrMerge(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	st, err := h.svc.ReplaceOrMerge(r.Context(), data)
	if err != nil {
		h.writeError(w, "replay", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetReplay handles GET /replay.
func (h *Handler) GetReplay(w http.ResponseWriter, r *http.Request) {
	st, ok, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, "snapshot", err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetAnimation handles GET /animation.
func (h *Handler) GetAnimation(w http.ResponseWriter, r *http.Request) {
	h.respondAnimation(w, r, "animation state", nil)
}

// StartAnimation handles POST /animation/start.
func (h *Handler) StartAnimation(w http.ResponseWriter, r *http.Request) {
	h.respondAnimation(w, r, "start animation", h.svc.Start)
}

// StopAnimation handles POST /animation/stop.
func (h *Handler) StopAnimation(w http.ResponseWriter, r *http.Request) {
	h.respondAnimation(w, r, "stop animation", h.svc.Stop)
}

// RefreshAnimation handles POST /animation/refresh.
func (h *Handler) RefreshAnimation(w http.ResponseWriter, r *http.Request) {
	h.respondAnimation(w, r, "refresh animation", h.svc.RenderReplay)
}

func (h *Handler) respondAnimation(w http.ResponseWriter, r *http.Request, op string, action func(context.Context) error) {
	if action != nil {
		if err := action(r.Context()); err != nil {
			h.writeError(w, op, err)
			return
		}
	}
	st, err := h.svc.Animation(r.Context())
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// RenderService handles POST /services/{index}/render.
func (h *Handler) RenderService(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.svc.RenderByIndex(r.Context(), index); err != nil {
		h.writeError(w, "render service", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServiceCount handles GET /services/count.
func (h *Handler) ServiceCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ServiceCount(r.Context())
	if err != nil {
		h.writeError(w, "service count", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// ClearCanvas handles POST /canvas/clear.
func (h *Handler) ClearCanvas(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		h.writeError(w, "clear canvas", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Hello handles GET /demo/hello.
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Hello(r.Context()); err != nil {
		h.writeError(w, "hello", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": helloText})
}

// Add handles GET /demo/add?a=1&b=2.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	a, errA := strconv.Atoi(r.URL.Query().Get("a"))
	b, errB := strconv.Atoi(r.URL.Query().Get("b"))
	if errA != nil || errB != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sum, err := h.svc.Add(r.Context(), a, b)
	if err != nil {
		h.writeError(w, "add", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"result": sum})
}

// Greet handles GET /demo/greet?name=x.
func (h *Handler) Greet(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	greeting, err := h.svc.Greet(r.Context(), name)
	if err != nil {
		h.writeError(w, "greet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"greeting": greeting})
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Info("chunk too large", slog.Int64("limit", tooLarge.Limit))
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return nil, false
		}
		h.log.Debug("read body failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

// writeError maps service errors to status codes.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrDecode):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNoData):
		status = http.StatusConflict
	case errors.Is(err, ErrRendererUnavailable), errors.Is(err, eventloop.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.Error(op+" failed", slog.String("error", err.Error()))
	} else {
		h.log.Info(op+" rejected", slog.Int("status", status), slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

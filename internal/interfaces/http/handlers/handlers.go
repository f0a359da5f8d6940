// Package handlers implements the API endpoints over the settlement engine.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sawpanic/rankforum/internal/domain"
	"github.com/sawpanic/rankforum/internal/forum"
	httpContracts "github.com/sawpanic/rankforum/internal/http"
	"github.com/sawpanic/rankforum/internal/infrastructure/cache"
	"github.com/sawpanic/rankforum/internal/infrastructure/db"
	"github.com/sawpanic/rankforum/internal/metrics"
	"github.com/sawpanic/rankforum/internal/ratelimit"
)

// Config wires the handler dependencies. Engine is required; the rest
// may be nil and the matching behavior degrades gracefully.
type Config struct {
	Engine       *forum.Engine
	Sessions     *SessionStore
	Scores       *cache.ScoreCache
	Metrics      *metrics.Registry
	Limiter      *ratelimit.Limiter
	DB           *db.Manager
	MaxBodyBytes int64
}

// Handlers holds every API endpoint.
type Handlers struct {
	engine   *forum.Engine
	sessions *SessionStore
	scores   *cache.ScoreCache
	metrics  *metrics.Registry
	limiter  *ratelimit.Limiter
	hub      *EventHub
	db       *db.Manager
	maxBody  int64
}

func NewHandlers(cfg Config) *Handlers {
	h := &Handlers{
		engine:   cfg.Engine,
		sessions: cfg.Sessions,
		scores:   cfg.Scores,
		metrics:  cfg.Metrics,
		limiter:  cfg.Limiter,
		db:       cfg.DB,
		maxBody:  cfg.MaxBodyBytes,
	}
	if h.sessions == nil {
		h.sessions = NewSessionStore(0)
	}
	if h.maxBody <= 0 {
		h.maxBody = 1 << 20
	}
	var onCount func(int)
	if h.metrics != nil {
		onCount = func(delta int) { h.metrics.ActiveClients.Add(float64(delta)) }
	}
	h.hub = NewEventHub(onCount)
	return h
}

// Hub exposes the event hub so settlement paths outside HTTP can publish.
func (h *Handlers) Hub() *EventHub { return h.hub }

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID := RequestID(r.Context())
	if requestID == "" {
		requestID = "unknown"
	}

	h.writeJSON(w, status, httpContracts.ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}

// requestIDKey is the context key the server middleware stores the
// request ID under.
type requestIDKey struct{}

// SetRequestID stamps a request ID onto the context.
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID reads the request ID back, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_body", "Request body could not be parsed")
		return false
	}
	return true
}

// authenticate resolves the Bearer SID to an account address.
func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		h.writeError(w, r, http.StatusUnauthorized, "missing_session", "Authorization: Bearer <sid> header required")
		return "", false
	}
	account, ok := h.sessions.Lookup(strings.TrimPrefix(auth, "Bearer "))
	if !ok {
		h.writeError(w, r, http.StatusUnauthorized, "invalid_session", "Session is unknown or expired")
		return "", false
	}
	return account, true
}

// domainStatus maps engine errors onto HTTP semantics.
func (h *Handlers) domainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownAccount),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrUnknownTarget):
		h.writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrDuplicateField),
		errors.Is(err, domain.ErrNameTaken):
		h.writeError(w, r, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrBanned):
		h.writeError(w, r, http.StatusForbidden, "banned", "Account is banned")
	case errors.Is(err, domain.ErrLevelTooLow):
		h.writeError(w, r, http.StatusForbidden, "level_too_low", err.Error())
	default:
		h.writeError(w, r, http.StatusInternalServerError, "internal", "Unexpected failure")
	}
}

// NotFound handles unmatched routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "The requested endpoint does not exist")
}

func targetResponse(t domain.Target) httpContracts.TargetResponse {
	return httpContracts.TargetResponse{
		Address:         string(t.Address),
		Author:          string(t.Author),
		Field:           string(t.Field),
		Parent:          string(t.Parent),
		PostedLevel:     t.PostedLevel,
		VoteLedger:      t.VoteLedger.String(),
		MinCommentLevel: t.MinCommentLevel,
		Upvotes:         t.Upvotes,
		Downvotes:       t.Downvotes,
		ContentRef:      t.ContentRef,
		CreatedAt:       t.CreatedAt,
	}
}

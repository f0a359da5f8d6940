package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/rankforum/internal/domain"
	"github.com/sawpanic/rankforum/internal/forum"
	httpContracts "github.com/sawpanic/rankforum/internal/http"
	"github.com/sawpanic/rankforum/internal/level"
	"github.com/sawpanic/rankforum/internal/settle"
)

// CreateField registers a new reputation field.
func (h *Handlers) CreateField(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	var req httpContracts.CreateFieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.writeError(w, r, http.StatusBadRequest, "empty_name", "Field name must not be empty")
		return
	}

	field, err := h.engine.CreateField(r.Context(), req.Name)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, httpContracts.FieldResponse{
		Address: string(field.Address),
		Name:    field.Name,
	})
}

// GetField resolves a field by name.
func (h *Handlers) GetField(w http.ResponseWriter, r *http.Request) {
	field, err := h.engine.FieldByName(mux.Vars(r)["name"])
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, httpContracts.FieldResponse{
		Address: string(field.Address),
		Name:    field.Name,
	})
}

// CreatePost creates a top-level post.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req httpContracts.CreatePostRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.MinCommentLevel < 0 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_level", "min_comment_level must not be negative")
		return
	}

	post, err := h.engine.CreatePost(r.Context(), account, domain.Address(req.Field), req.ContentRef, req.MinCommentLevel)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, targetResponse(post))
}

// CreateComment creates a comment under an existing target.
func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req httpContracts.CreateCommentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.MinCommentLevel < 0 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_level", "min_comment_level must not be negative")
		return
	}

	comment, err := h.engine.CreateComment(r.Context(), account, domain.Address(req.Parent), req.ContentRef, req.MinCommentLevel)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, targetResponse(comment))
}

// GetTarget returns one post or comment.
func (h *Handlers) GetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := h.engine.Target(domain.Address(mux.Vars(r)["address"]))
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, targetResponse(t))
}

// filterOptions parses the shared listing query parameters.
func filterOptions(r *http.Request) forum.FilterOptions {
	q := r.URL.Query()

	opts := forum.FilterOptions{MinLevel: -1}
	if raw := q.Get("min_level"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			opts.MinLevel = v
		}
	}
	if raw := q.Get("order"); raw != "" {
		opts.Ordering = forum.ParseOrdering(raw)
	}
	opts.Keyword = q.Get("keyword")
	if raw := q.Get("asc"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			opts.Ascending = v
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			opts.MaxResults = v
		}
	}
	return opts
}

// ListPosts lists a field's posts with filtering and ordering.
func (h *Handlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	fieldName := r.URL.Query().Get("field")
	if fieldName == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_field", "field query parameter required")
		return
	}
	field, err := h.engine.FieldByName(fieldName)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	posts, err := h.engine.FilterPosts(field.Address, filterOptions(r))
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	out := make([]httpContracts.TargetResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, targetResponse(p))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ListComments lists the direct comments under a target.
func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	parent := domain.Address(mux.Vars(r)["address"])

	comments, err := h.engine.FilterComments(parent, filterOptions(r))
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	out := make([]httpContracts.TargetResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, targetResponse(c))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// CastVote settles a vote and publishes the outcome.
func (h *Handlers) CastVote(w http.ResponseWriter, r *http.Request) {
	voter, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(voter) {
		h.writeError(w, r, http.StatusTooManyRequests, "rate_limited", "Vote rate limit exceeded")
		return
	}

	var req httpContracts.VoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	dir, err := domain.ParseDirection(req.Direction)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_direction", "Direction must be up or down")
		return
	}

	var timer *settleTimer
	if h.metrics != nil {
		timer = &settleTimer{inner: h.metrics.StartSettleTimer(dir.String())}
	}

	outcome, err := h.engine.CastVote(r.Context(), voter, domain.Address(req.Target), dir)
	if err != nil {
		timer.stop("error")
		h.domainError(w, r, err)
		return
	}
	timer.stop(outcome.Status.String())

	h.observeOutcome(r, voter, domain.Address(req.Target), dir, outcome)

	resp := httpContracts.VoteResponse{
		Status:   outcome.Status.String(),
		Switched: outcome.Switched,
		Wipeout:  outcome.Wipeout,
	}
	if outcome.Magnitude != nil {
		resp.Magnitude = outcome.Magnitude.String()
	}
	if outcome.NewScore != nil {
		resp.NewScore = outcome.NewScore.String()
		resp.NewLevel = outcome.NewLevel
	}
	if outcome.Banned != "" {
		resp.Banned = string(outcome.Banned)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// settleTimer tolerates a nil metrics timer.
type settleTimer struct {
	inner interface{ Stop(string) }
}

func (t *settleTimer) stop(outcome string) {
	if t != nil && t.inner != nil {
		t.inner.Stop(outcome)
	}
}

// observeOutcome updates metrics, cache, and event subscribers after a
// settlement. Rejected votes leave no trace beyond the counter.
func (h *Handlers) observeOutcome(r *http.Request, voter, targetAddr domain.Address, dir domain.Direction, outcome settle.Outcome) {
	if outcome.Status != settle.Applied && outcome.Status != settle.BanTriggered {
		return
	}

	target, err := h.engine.Target(targetAddr)
	if err != nil {
		log.Error().Err(err).Str("target", string(targetAddr)).Msg("Settled target vanished")
		return
	}

	ev := httpContracts.Event{
		Target:    string(targetAddr),
		Author:    string(target.Author),
		Field:     string(target.Field),
		Direction: dir.String(),
		Timestamp: time.Now().UTC(),
	}

	switch outcome.Status {
	case settle.Applied:
		ev.Type = "vote_applied"
		if outcome.Magnitude != nil {
			ev.Magnitude = outcome.Magnitude.String()
		}
		if outcome.NewScore != nil {
			ev.NewScore = outcome.NewScore.String()
			if h.scores != nil {
				h.scores.Set(r.Context(), target.Author, target.Field, outcome.NewScore)
			}
		}
		if h.metrics != nil && outcome.Wipeout {
			h.metrics.RecordWipeout()
		}
	case settle.BanTriggered:
		ev.Type = "author_banned"
		if h.metrics != nil {
			h.metrics.RecordBan()
		}
		if h.scores != nil {
			h.scores.Invalidate(r.Context(), target.Author, target.Field)
		}
	}

	h.hub.Broadcast(ev)
}

// GetScore returns one (account, field) score, cache first.
func (h *Handlers) GetScore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account := domain.Address(vars["account"])
	field := domain.Address(vars["field"])

	// Counters live in engine memory either way; only the score itself
	// is worth the cache round trip.
	ups, downs := h.engine.ScoreCounters(account, field)

	if h.scores != nil {
		if score, ok := h.scores.Get(r.Context(), account, field); ok {
			if h.metrics != nil {
				h.metrics.RecordCacheHit("redis")
			}
			h.writeJSON(w, http.StatusOK, httpContracts.ScoreResponse{
				Account:   string(account),
				Field:     string(field),
				Score:     score.String(),
				Level:     level.Level(score),
				Upvotes:   ups,
				Downvotes: downs,
			})
			return
		}
		if h.metrics != nil {
			h.metrics.RecordCacheMiss("redis")
		}
	}

	score, lvl := h.engine.GetScore(account, field)
	if h.scores != nil {
		h.scores.Set(r.Context(), account, field, score)
	}

	h.writeJSON(w, http.StatusOK, httpContracts.ScoreResponse{
		Account:   string(account),
		Field:     string(field),
		Score:     score.String(),
		Level:     lvl,
		Upvotes:   ups,
		Downvotes: downs,
	})
}

// CanComment answers whether an account may comment under a target.
func (h *Handlers) CanComment(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	targetAddr := domain.Address(mux.Vars(r)["address"])

	allowed, err := h.engine.CanComment(account, targetAddr)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, httpContracts.CanCommentResponse{
		Account: string(account),
		Target:  string(targetAddr),
		Allowed: allowed,
	})
}

// Events upgrades to a websocket subscription for settlement events.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	h.hub.Serve(w, r)
}

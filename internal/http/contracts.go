// Package http defines the wire contracts shared by the API server and
// its clients.
package http

import "time"

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// LoginRequest carries a self-signed public key. Both fields are
// base64-encoded: Pubkey is the raw Ed25519 public key, Signature is
// that key signed by its own private half.
type LoginRequest struct {
	Pubkey    string `json:"pubkey"`
	Signature string `json:"signed_pubkey"`
}

// LoginResponse returns the session and the account it authenticates.
type LoginResponse struct {
	SID     string `json:"sid"`
	Address string `json:"address"`
	Banned  bool   `json:"banned"`
}

// RegisterNameRequest claims a display name for the session's account.
type RegisterNameRequest struct {
	Name string `json:"name"`
}

// AccountResponse describes a registered account.
type AccountResponse struct {
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateFieldRequest creates a reputation field.
type CreateFieldRequest struct {
	Name string `json:"name"`
}

// FieldResponse describes a field.
type FieldResponse struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// CreatePostRequest creates a top-level post in a field.
type CreatePostRequest struct {
	Field           string `json:"field"`
	ContentRef      string `json:"content_ref,omitempty"`
	MinCommentLevel int    `json:"min_comment_level"`
}

// CreateCommentRequest creates a comment under an existing target.
type CreateCommentRequest struct {
	Parent          string `json:"parent"`
	ContentRef      string `json:"content_ref,omitempty"`
	MinCommentLevel int    `json:"min_comment_level"`
}

// TargetResponse describes a post or comment. Big-integer quantities are
// decimal strings.
type TargetResponse struct {
	Address         string    `json:"address"`
	Author          string    `json:"author"`
	Field           string    `json:"field"`
	Parent          string    `json:"parent,omitempty"`
	PostedLevel     int       `json:"posted_level"`
	VoteLedger      string    `json:"vote_ledger"`
	MinCommentLevel int       `json:"min_comment_level"`
	Upvotes         uint64    `json:"upvotes"`
	Downvotes       uint64    `json:"downvotes"`
	ContentRef      string    `json:"content_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// VoteRequest casts or switches a vote on a target.
type VoteRequest struct {
	Target    string `json:"target"`
	Direction string `json:"direction"`
}

// VoteResponse reports how a vote settled.
type VoteResponse struct {
	Status    string `json:"status"`
	Magnitude string `json:"magnitude,omitempty"`
	NewScore  string `json:"new_score,omitempty"`
	NewLevel  int    `json:"new_level,omitempty"`
	Wipeout   bool   `json:"wipeout,omitempty"`
	Switched  bool   `json:"switched,omitempty"`
	Banned    string `json:"banned,omitempty"`
}

// ScoreResponse reports one (account, field) score, its level and the
// received-vote counters.
type ScoreResponse struct {
	Account   string `json:"account"`
	Field     string `json:"field"`
	Score     string `json:"score"`
	Level     int    `json:"level"`
	Upvotes   uint64 `json:"upvotes"`
	Downvotes uint64 `json:"downvotes"`
}

// CanCommentResponse answers a comment-permission probe.
type CanCommentResponse struct {
	Account string `json:"account"`
	Target  string `json:"target"`
	Allowed bool   `json:"allowed"`
}

// HealthResponse reports service liveness and backend state.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Backends  map[string]string `json:"backends"`
	Accounts  int               `json:"accounts"`
	Fields    int               `json:"fields"`
	Targets   int               `json:"targets"`
	Votes     int               `json:"votes"`
	Banned    int               `json:"banned"`
}

// Event is pushed to websocket subscribers after each applied settlement.
type Event struct {
	Type      string    `json:"type"`
	Target    string    `json:"target"`
	Author    string    `json:"author,omitempty"`
	Field     string    `json:"field,omitempty"`
	Direction string    `json:"direction,omitempty"`
	Magnitude string    `json:"magnitude,omitempty"`
	NewScore  string    `json:"new_score,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

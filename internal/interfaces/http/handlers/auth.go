package handlers

import (
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/rankforum/internal/domain"
	httpContracts "github.com/sawpanic/rankforum/internal/http"
)

// accountAddress derives a stable address from an Ed25519 public key, so
// the same keypair always authenticates the same account.
func accountAddress(pub ed25519.PublicKey) domain.Address {
	return domain.Address(uuid.NewSHA1(uuid.NameSpaceOID, pub).String())
}

// Login verifies a self-signed public key and opens a session. Banned
// accounts may still log in; their writes are refused downstream.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req httpContracts.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	pub, err := base64.StdEncoding.DecodeString(req.Pubkey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		h.writeError(w, r, http.StatusBadRequest, "invalid_pubkey", "Pubkey must be a base64 Ed25519 public key")
		return
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		h.writeError(w, r, http.StatusBadRequest, "invalid_signature", "Signature must be a base64 Ed25519 signature")
		return
	}
	if !ed25519.Verify(pub, pub, sig) {
		h.writeError(w, r, http.StatusUnauthorized, "bad_signature", "Signature does not match public key")
		return
	}

	addr := accountAddress(pub)
	if _, err := h.engine.RegisterAccount(r.Context(), addr, ""); err != nil {
		h.domainError(w, r, err)
		return
	}

	sid := h.sessions.Create(addr)
	log.Info().Str("account", string(addr)).Msg("Session opened")

	h.writeJSON(w, http.StatusOK, httpContracts.LoginResponse{
		SID:     sid,
		Address: string(addr),
		Banned:  h.engine.IsBanned(addr),
	})
}

// Logout revokes the presented session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		h.sessions.Revoke(strings.TrimPrefix(auth, "Bearer "))
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAccount resolves a display name to its account.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.engine.AccountByName(mux.Vars(r)["name"])
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, httpContracts.AccountResponse{
		Address:   string(acct.Address),
		Name:      acct.Name,
		CreatedAt: acct.CreatedAt,
	})
}

// RegisterName claims a display name for the session's account.
func (h *Handlers) RegisterName(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req httpContracts.RegisterNameRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.writeError(w, r, http.StatusBadRequest, "empty_name", "Name must not be empty")
		return
	}

	acct, err := h.engine.RegisterAccount(r.Context(), account, req.Name)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, httpContracts.AccountResponse{
		Address:   string(acct.Address),
		Name:      acct.Name,
		CreatedAt: acct.CreatedAt,
	})
}

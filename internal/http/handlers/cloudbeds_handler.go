package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/roomquest/idverify/internal/cloudbeds"
	"github.com/roomquest/idverify/internal/http/response"
	"github.com/roomquest/idverify/pkg/config"
	"github.com/roomquest/idverify/pkg/logger"
)

// CloudbedsHandler covers the property-connection lifecycle: the one-time
// OAuth dance, manual refresh, and a couple of operator diagnostics.
type CloudbedsHandler struct {
	Client   *cloudbeds.Client
	Vault    *cloudbeds.Vault
	Resolver *cloudbeds.Resolver
	Config   config.CloudbedsConfig
}

func NewCloudbedsHandler(client *cloudbeds.Client, vault *cloudbeds.Vault, resolver *cloudbeds.Resolver, cfg config.CloudbedsConfig) *CloudbedsHandler {
	return &CloudbedsHandler{Client: client, Vault: vault, Resolver: resolver, Config: cfg}
}

func (h *CloudbedsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/start", h.start)
	r.Get("/callback", h.callback)
	r.Post("/refresh", h.refresh)
	r.Get("/reservation", h.reservation)
	r.Get("/ping", h.ping)
	return r
}

// start redirects the operator's browser into the Cloudbeds consent screen.
func (h *CloudbedsHandler) start(w http.ResponseWriter, r *http.Request) {
	state, err := cloudbeds.NewStateToken(h.Config.StateSecret, h.Config.StateTTL)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to mint oauth state", "error", err)
		response.InternalError(w, "Server error")
		return
	}
	http.Redirect(w, r, h.Client.AuthorizeURL(state), http.StatusFound)
}

func (h *CloudbedsHandler) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" {
		response.BadRequest(w, "missing authorization code")
		return
	}
	if err := cloudbeds.VerifyStateToken(state, h.Config.StateSecret); err != nil {
		logger.WarnContext(ctx, "OAuth callback with bad state", "error", err)
		response.WriteError(w, http.StatusBadRequest, "invalid state", response.CodeInvalidInput)
		return
	}

	if err := h.Vault.Exchange(ctx, code); err != nil {
		logger.ErrorContext(ctx, "Authorization code exchange failed", "error", err)
		response.BadGateway(w, "Cloudbeds authorization failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Cloudbeds property connected",
	})
}

type refreshResponse struct {
	Success   bool      `json:"success"`
	ExpiresAt time.Time `json:"expires_at"`
	Scope     string    `json:"scope,omitempty"`
}

func (h *CloudbedsHandler) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.Vault.ForceRefresh(ctx); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	cred, err := h.Vault.Status(ctx)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Success:   true,
		ExpiresAt: cred.ExpiresAt(),
		Scope:     cred.Scope,
	})
}

// reservation is an operator diagnostic: resolve a booking reference exactly
// the way the guest flow does.
func (h *CloudbedsHandler) reservation(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("booking_ref")
	if ref == "" {
		ref = r.URL.Query().Get("reservation_id")
	}

	res, err := h.Resolver.Resolve(r.Context(), ref)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"reservation": res,
	})
}

func (h *CloudbedsHandler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.Resolver.Ping(r.Context()); err != nil {
		response.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Cloudbeds API reachable",
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/roomquest/idverify/internal/domain"
	"github.com/roomquest/idverify/internal/http/response"
	"github.com/roomquest/idverify/internal/service"
	"github.com/roomquest/idverify/pkg/logger"
)

// VerifyHandler exposes the whole verification flow on a single POST
// endpoint dispatched by an action field, matching what the kiosk frontend
// sends.
type VerifyHandler struct {
	Sessions *service.VerificationService
}

func NewVerifyHandler(sessions *service.VerificationService) *VerifyHandler {
	return &VerifyHandler{Sessions: sessions}
}

func (h *VerifyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.dispatch)
	return r
}

type verifyRequest struct {
	Action       string `json:"action"`
	SessionToken string `json:"session_token"`
	FlowType     string `json:"flow_type"`

	ConsentGiven  *bool      `json:"consent_given"`
	ConsentAt     *time.Time `json:"consent_at"`
	ConsentLocale string     `json:"consent_locale"`

	GuestName  string `json:"guest_name"`
	RoomNumber string `json:"room_number"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Reason    string `json:"reason"`

	ImageData string `json:"image_data"`

	AdditionalGuests int `json:"additional_guests"`
}

type sessionResponse struct {
	Success bool `json:"success"`
	*domain.Session
}

type uploadResponse struct {
	Success    bool `json:"success"`
	GuestIndex int  `json:"guest_index"`
	*domain.Session
}

type verifyFaceResponse struct {
	Success       bool    `json:"success"`
	GuestIndex    int     `json:"guest_index"`
	GuestVerified bool    `json:"guest_verified"`
	Score         float64 `json:"score"`
	*domain.Session
}

func (h *VerifyHandler) dispatch(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	ctx := r.Context()
	if in.SessionToken != "" {
		ctx = contextWithSession(ctx, in.SessionToken)
	}

	switch in.Action {
	case "start":
		sess, err := h.Sessions.Start(ctx, in.FlowType)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to start session", "error", err)
			response.WriteDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse{Success: true, Session: sess})

	case "get_session":
		if in.SessionToken == "" {
			response.BadRequest(w, "session_token is required")
			return
		}
		sess, err := h.Sessions.GetSession(ctx, in.SessionToken)
		if err != nil {
			response.WriteDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: sess})

	case "log_consent":
		if in.SessionToken == "" {
			response.BadRequest(w, "session_token is required")
			return
		}
		given := in.ConsentGiven == nil || *in.ConsentGiven
		sess, err := h.Sessions.LogConsent(ctx, in.SessionToken, given, in.ConsentAt, in.ConsentLocale)
		if err != nil {
			response.WriteDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: sess})

	case "update_guest":
		if in.SessionToken == "" {
			response.BadRequest(w, "session_token is required")
			return
		}
		sess, err := h.Sessions.UpdateGuest(ctx, in.SessionToken, in.GuestName, in.RoomNumber)
		if err != nil {
			logger.WarnContext(ctx, "Guest update failed", "error", err)
			response.WriteDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: sess})

	case "visitor_intake":
		if in.SessionToken == "" {
			response.BadRequest(w, "session_token is required")
			return
		}
		sess, err := h.Sessions.VisitorIntake(ctx, in.SessionToken, in.FirstName, in.LastName, in.Phone, in.Reason)
		if err != nil {
			response.WriteDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: sess})

	case "upload_document":
		if in.SessionToken == "" {
			response.BadRequest(w, "session_token is required")
			return
		}
		sess, slot, err := h.Sessions.UploadDocument(ctx, in.SessionToken, in.ImageData)
		if err != nil {
			logger.WarnContext(ctx, "Document upload failed", "error", err)
			response.WriteDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, uploadResponse{Success: true, GuestIndex: slot, Session: sess})

	case "verify_face":
		if in.SessionToken == "" {
			response.BadRequest(w, "session_token is required")
			return
		}
		res, err := h.Sessions.VerifyFace(ctx, in.SessionToken, in.ImageData)
		if err != nil {
			logger.WarnContext(ctx, "Face verification failed", "error", err)
			response.WriteDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, verifyFaceResponse{
			Success:       true,
			GuestIndex:    res.GuestIndex,
			GuestVerified: res.GuestVerified,
			Score:         res.Outcome.Score,
			Session:       res.Session,
		})

	case "add_guest":
		if in.SessionToken == "" {
			response.BadRequest(w, "session_token is required")
			return
		}
		sess, err := h.Sessions.AddGuest(ctx, in.SessionToken, in.AdditionalGuests)
		if err != nil {
			response.WriteDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: sess})

	default:
		response.BadRequest(w, "unknown action")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// contextWithSession tags the request context so every log line carries the
// session token.
func contextWithSession(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, logger.SessionKey, token)
}

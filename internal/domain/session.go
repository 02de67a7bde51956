package domain

import (
	"strings"
	"time"
)

type FlowType string

const (
	FlowGuest   FlowType = "guest"
	FlowVisitor FlowType = "visitor"
)

// NormalizeFlowType maps any unknown value to the guest flow, matching the
// behavior the check-in frontend has always relied on. Matching is
// case-insensitive.
func NormalizeFlowType(s string) FlowType {
	if strings.EqualFold(s, string(FlowVisitor)) {
		return FlowVisitor
	}
	return FlowGuest
}

type SessionStatus string

const (
	StatusStarted          SessionStatus = "started"
	StatusConsentLogged    SessionStatus = "consent_logged"
	StatusGuestVerified    SessionStatus = "guest_verified"
	StatusVisitorInfoSaved SessionStatus = "visitor_info_saved"
	StatusDocumentUploaded SessionStatus = "document_uploaded"
	StatusVerified         SessionStatus = "verified"
)

// Step names surfaced to the UI as a cursor. Informational only; the
// service validates per-action preconditions, not step order.
const (
	StepConsent  = "consent"
	StepIdentity = "identity"
	StepDocument = "document"
	StepSelfie   = "selfie"
	StepComplete = "complete"
)

// MaxGuestsPerSession bounds expected_guest_count on a single session.
const MaxGuestsPerSession = 10

// Session is one end-to-end verification attempt, identified by an opaque
// token. A guest session walks consent -> reservation lookup -> document ->
// selfie; a visitor session stops after intake (expected count 0 means it is
// verified as soon as it exists).
type Session struct {
	Token       string        `json:"session_token"`
	FlowType    FlowType      `json:"flow_type"`
	Status      SessionStatus `json:"status"`
	CurrentStep string        `json:"current_step"`

	ConsentGiven  bool       `json:"consent_given"`
	ConsentAt     *time.Time `json:"consent_at,omitempty"`
	ConsentLocale string     `json:"consent_locale,omitempty"`

	GuestName  string `json:"guest_name,omitempty"`
	RoomNumber string `json:"room_number,omitempty"` // booking reference, not a literal room

	VisitorFirstName string `json:"visitor_first_name,omitempty"`
	VisitorLastName  string `json:"visitor_last_name,omitempty"`
	VisitorPhone     string `json:"visitor_phone,omitempty"`
	VisitorReason    string `json:"visitor_reason,omitempty"`

	ExpectedGuestCount      int  `json:"expected_guest_count"`
	VerifiedGuestCount      int  `json:"verified_guest_count"`
	RequiresAdditionalGuest bool `json:"requires_additional_guest"`
	IsVerified              bool `json:"is_verified"`

	DocumentURL string `json:"document_url,omitempty"`
	SelfieURL   string `json:"selfie_url,omitempty"`

	VerificationScore float64 `json:"verification_score"`
	LivenessScore     float64 `json:"liveness_score"`
	FaceMatchScore    float64 `json:"face_match_score"`

	PhysicalRoom           string `json:"physical_room,omitempty"`
	RoomAccessCode         string `json:"room_access_code,omitempty"`
	CloudbedsReservationID string `json:"cloudbeds_reservation_id,omitempty"`

	// Version backs optimistic concurrency on the sessions table. Writers
	// bump it on every update; a stale writer gets a conflict and re-reads.
	Version int64 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultExpectedGuests returns the initial expected_guest_count for a flow.
func DefaultExpectedGuests(flow FlowType) int {
	if flow == FlowVisitor {
		return 0
	}
	return 1
}

// Recount recomputes the derived verification fields from the guest counters.
// It is the only way IsVerified and RequiresAdditionalGuest change, so the
// invariant is_verified == (verified >= expected) holds after every mutation.
func (s *Session) Recount() {
	if s.VerifiedGuestCount < 0 {
		s.VerifiedGuestCount = 0
	}
	if s.VerifiedGuestCount > s.ExpectedGuestCount {
		s.VerifiedGuestCount = s.ExpectedGuestCount
	}
	s.IsVerified = s.VerifiedGuestCount >= s.ExpectedGuestCount
	s.RequiresAdditionalGuest = s.VerifiedGuestCount < s.ExpectedGuestCount
}

// NextGuestSlot is the 1-based slot the next document/selfie pair belongs to.
func (s *Session) NextGuestSlot() int {
	return ClampInt(s.VerifiedGuestCount+1, 1, max(s.ExpectedGuestCount, 1))
}

func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

package domain

import "errors"

// Sentinel errors for the verification core. Handlers map these onto HTTP
// status codes; everything else surfaces as a generic server error.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidImage        = errors.New("invalid or too-small image payload")
	ErrDocumentMissing     = errors.New("document not uploaded for this guest")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNoCredential        = errors.New("no cloudbeds credential stored")
	ErrRefreshFailed       = errors.New("cloudbeds token refresh failed")
	ErrProvider            = errors.New("upstream provider error")
)

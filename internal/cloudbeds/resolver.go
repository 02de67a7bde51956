package cloudbeds

import (
	"context"
	"errors"
	"fmt"

	"github.com/roomquest/idverify/internal/domain"
	"github.com/roomquest/idverify/pkg/logger"
)

// Resolver turns a booking reference into the reservation facts check-in
// needs. The reference may be the native Cloudbeds reservation ID or a
// third-party/channel identifier; either resolves to the same shape with
// ReservationID always the native ID.
type Resolver struct {
	client *Client
	vault  *Vault
}

func NewResolver(client *Client, vault *Vault) *Resolver {
	return &Resolver{client: client, vault: vault}
}

// withToken runs fn with a valid bearer token, retrying exactly once after a
// forced refresh when the upstream answers 401.
func (r *Resolver) withToken(ctx context.Context, fn func(token string) error) error {
	token, err := r.vault.AccessToken(ctx)
	if err != nil {
		return err
	}

	err = fn(token)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	token, err = r.vault.ForceRefresh(ctx)
	if err != nil {
		return err
	}
	return fn(token)
}

// Resolve looks up a reservation by booking reference: direct ID lookup
// first, then a list scan matching native or third-party IDs, re-fetching
// full details by the discovered native ID. The door access code is a
// best-effort secondary lookup that never fails the resolution.
func (r *Resolver) Resolve(ctx context.Context, bookingRef string) (*domain.Reservation, error) {
	if bookingRef == "" {
		return nil, fmt.Errorf("%w: empty booking reference", domain.ErrInvalidInput)
	}

	rec, err := r.getReservation(ctx, bookingRef)
	if err != nil {
		if isCredentialFailure(err) {
			return nil, err
		}
		logger.DebugContext(ctx, "Direct reservation lookup failed, scanning list",
			"booking_ref", bookingRef, "error", err,
		)
		rec, err = r.resolveViaList(ctx, bookingRef)
		if err != nil {
			return nil, err
		}
	}

	res := &domain.Reservation{
		ReservationID: rec.ReservationID,
		GuestName:     rec.GuestName,
		RoomName:      rec.RoomLabel(),
		CheckInDate:   rec.StartDate,
		CheckOutDate:  rec.EndDate,
		Status:        rec.Status,
	}

	res.AccessCode = r.lookupAccessCode(ctx, rec.ReservationID)
	return res, nil
}

func (r *Resolver) resolveViaList(ctx context.Context, bookingRef string) (*Reservation, error) {
	list, err := r.listReservations(ctx)
	if err != nil {
		if isCredentialFailure(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: list fallback: %v", domain.ErrProvider, err)
	}

	for i := range list {
		if list[i].ReservationID == bookingRef || list[i].ThirdPartyIdentifier == bookingRef {
			// List entries may be abbreviated; re-fetch by native ID.
			return r.getReservation(ctx, list[i].ReservationID)
		}
	}
	return nil, domain.ErrReservationNotFound
}

// lookupAccessCode returns the door PIN for a reservation, or empty when the
// door-lock integration is absent or failing.
func (r *Resolver) lookupAccessCode(ctx context.Context, reservationID string) string {
	var keys []AccessKey
	err := r.withToken(ctx, func(token string) error {
		var kerr error
		keys, kerr = r.client.GetAccessKeys(ctx, token, reservationID)
		return kerr
	})
	if err != nil {
		logger.WarnContext(ctx, "Door lock key lookup failed",
			"reservation_id", reservationID, "error", err,
		)
		return ""
	}

	for _, k := range keys {
		if code := k.Value(); code != "" {
			return code
		}
	}
	return ""
}

func (r *Resolver) getReservation(ctx context.Context, id string) (*Reservation, error) {
	var rec *Reservation
	err := r.withToken(ctx, func(token string) error {
		var gerr error
		rec, gerr = r.client.GetReservation(ctx, token, id)
		return gerr
	})
	return rec, err
}

func (r *Resolver) listReservations(ctx context.Context) ([]Reservation, error) {
	var list []Reservation
	err := r.withToken(ctx, func(token string) error {
		var lerr error
		list, lerr = r.client.ListReservations(ctx, token)
		return lerr
	})
	return list, err
}

// Ping checks upstream connectivity with the stored credential.
func (r *Resolver) Ping(ctx context.Context) error {
	return r.withToken(ctx, func(token string) error {
		return r.client.Ping(ctx, token)
	})
}

func isCredentialFailure(err error) bool {
	return errors.Is(err, domain.ErrNoCredential) || errors.Is(err, domain.ErrRefreshFailed)
}

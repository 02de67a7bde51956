package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomquest/idverify/internal/domain"
)

// SessionRepo persists verification sessions. Updates are guarded by an
// optimistic version check so concurrent verify_face calls cannot both apply
// counter arithmetic from the same stale read.
type SessionRepo interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByToken returns (nil, nil) when the token is unknown.
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	// Update writes the session if s.Version still matches the stored row.
	// On success the session's Version and UpdatedAt are refreshed in place
	// and it returns true; a version conflict returns false with no error.
	Update(ctx context.Context, s *domain.Session) (bool, error)
}

type SessionRepoImpl struct{ pool *pgxpool.Pool }

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepoImpl { return &SessionRepoImpl{pool: pool} }

const sessionCols = `session_token, flow_type, status, current_step,
consent_given, consent_at, consent_locale,
guest_name, room_number,
visitor_first_name, visitor_last_name, visitor_phone, visitor_reason,
expected_guest_count, verified_guest_count, requires_additional_guest, is_verified,
document_url, selfie_url,
verification_score, liveness_score, face_match_score,
physical_room, room_access_code, cloudbeds_reservation_id,
version, created_at, updated_at`

func (r *SessionRepoImpl) Create(ctx context.Context, s *domain.Session) error {
	const q = `INSERT INTO verification_sessions (
    session_token, flow_type, status, current_step,
    expected_guest_count, verified_guest_count, requires_additional_guest, is_verified,
    version
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1)
  RETURNING version, created_at, updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		s.Token, s.FlowType, s.Status, s.CurrentStep,
		s.ExpectedGuestCount, s.VerifiedGuestCount, s.RequiresAdditionalGuest, s.IsVerified,
	).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
}

func (r *SessionRepoImpl) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM verification_sessions WHERE session_token=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.Session
	err := r.pool.QueryRow(ctx, q, token).Scan(
		&s.Token, &s.FlowType, &s.Status, &s.CurrentStep,
		&s.ConsentGiven, &s.ConsentAt, &s.ConsentLocale,
		&s.GuestName, &s.RoomNumber,
		&s.VisitorFirstName, &s.VisitorLastName, &s.VisitorPhone, &s.VisitorReason,
		&s.ExpectedGuestCount, &s.VerifiedGuestCount, &s.RequiresAdditionalGuest, &s.IsVerified,
		&s.DocumentURL, &s.SelfieURL,
		&s.VerificationScore, &s.LivenessScore, &s.FaceMatchScore,
		&s.PhysicalRoom, &s.RoomAccessCode, &s.CloudbedsReservationID,
		&s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepoImpl) Update(ctx context.Context, s *domain.Session) (bool, error) {
	const q = `UPDATE verification_sessions SET
    status=$3, current_step=$4,
    consent_given=$5, consent_at=$6, consent_locale=$7,
    guest_name=$8, room_number=$9,
    visitor_first_name=$10, visitor_last_name=$11, visitor_phone=$12, visitor_reason=$13,
    expected_guest_count=$14, verified_guest_count=$15, requires_additional_guest=$16, is_verified=$17,
    document_url=$18, selfie_url=$19,
    verification_score=$20, liveness_score=$21, face_match_score=$22,
    physical_room=$23, room_access_code=$24, cloudbeds_reservation_id=$25,
    version=version+1, updated_at=now()
  WHERE session_token=$1 AND version=$2
  RETURNING version, updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := r.pool.QueryRow(ctx, q,
		s.Token, s.Version,
		s.Status, s.CurrentStep,
		s.ConsentGiven, s.ConsentAt, s.ConsentLocale,
		s.GuestName, s.RoomNumber,
		s.VisitorFirstName, s.VisitorLastName, s.VisitorPhone, s.VisitorReason,
		s.ExpectedGuestCount, s.VerifiedGuestCount, s.RequiresAdditionalGuest, s.IsVerified,
		s.DocumentURL, s.SelfieURL,
		s.VerificationScore, s.LivenessScore, s.FaceMatchScore,
		s.PhysicalRoom, s.RoomAccessCode, s.CloudbedsReservationID,
	).Scan(&s.Version, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

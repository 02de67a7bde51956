package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roomquest/idverify/internal/domain"
	"github.com/roomquest/idverify/internal/face"
	"github.com/roomquest/idverify/internal/repo/postgres"
	"github.com/roomquest/idverify/internal/storage"
	"github.com/roomquest/idverify/internal/utils"
	"github.com/roomquest/idverify/pkg/events"
	"github.com/roomquest/idverify/pkg/logger"
)

// ReservationResolver is the slice of the Cloudbeds integration the session
// service needs.
type ReservationResolver interface {
	Resolve(ctx context.Context, bookingRef string) (*domain.Reservation, error)
}

// VerificationService owns the session lifecycle: creation, consent,
// identity intake, document/selfie capture and the face-verification
// decision. Callers may invoke steps out of order; each operation checks
// only its own minimal precondition.
type VerificationService struct {
	sessions postgres.SessionRepo
	blobs    storage.BlobStore
	faces    face.Analyzer
	resolver ReservationResolver
	bus      events.Publisher
}

func NewVerificationService(
	sessions postgres.SessionRepo,
	blobs storage.BlobStore,
	faces face.Analyzer,
	resolver ReservationResolver,
	bus events.Publisher,
) *VerificationService {
	return &VerificationService{
		sessions: sessions,
		blobs:    blobs,
		faces:    faces,
		resolver: resolver,
		bus:      bus,
	}
}

// casRetries bounds the read-modify-write loop on version conflicts. Two
// concurrent writers against one session is already rare; three losses in a
// row means something is wrong.
const casRetries = 3

// mutate loads the session, applies fn and writes it back under the
// optimistic version check, retrying against a fresh read on conflict.
func (s *VerificationService) mutate(ctx context.Context, token string, fn func(*domain.Session) error) (*domain.Session, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		sess, err := s.sessions.GetByToken(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if sess == nil {
			return nil, domain.ErrSessionNotFound
		}

		if err := fn(sess); err != nil {
			return nil, err
		}

		ok, err := s.sessions.Update(ctx, sess)
		if err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
		if ok {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("session %s: concurrent update conflict", token)
}

func (s *VerificationService) publish(ctx context.Context, subject string, data interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

// Start creates a new session. Guest flows expect one verified guest by
// default; visitor flows expect zero, so they count as verified from the
// moment they exist.
func (s *VerificationService) Start(ctx context.Context, flowType string) (*domain.Session, error) {
	flow := domain.NormalizeFlowType(flowType)

	sess := &domain.Session{
		Token:              uuid.NewString(),
		FlowType:           flow,
		Status:             domain.StatusStarted,
		CurrentStep:        domain.StepConsent,
		ExpectedGuestCount: domain.DefaultExpectedGuests(flow),
	}
	sess.Recount()

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.publish(ctx, events.SessionStarted, events.SessionStartedEvent{
		SessionToken: sess.Token,
		FlowType:     string(sess.FlowType),
		CreatedAt:    sess.CreatedAt,
	})

	return sess, nil
}

// GetSession is the read-only projection used by the UI to resume a flow.
func (s *VerificationService) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// LogConsent records (or re-records) the consent decision. Overwrites are
// tolerated; repeating the call with the same payload is a no-op.
func (s *VerificationService) LogConsent(ctx context.Context, token string, given bool, at *time.Time, locale string) (*domain.Session, error) {
	sess, err := s.mutate(ctx, token, func(sess *domain.Session) error {
		ts := time.Now()
		if at != nil {
			ts = *at
		}
		sess.ConsentGiven = given
		sess.ConsentAt = &ts
		if locale != "" {
			sess.ConsentLocale = locale
		}
		if sess.Status == domain.StatusStarted {
			sess.Status = domain.StatusConsentLogged
			sess.CurrentStep = domain.StepIdentity
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.SessionConsentLogged, events.ConsentLoggedEvent{
		SessionToken: sess.Token,
		Given:        given,
		Locale:       locale,
		LoggedAt:     time.Now(),
	})

	return sess, nil
}

// UpdateGuest stores the guest identity after resolving the booking
// reference upstream. Resolution failure leaves the session untouched.
func (s *VerificationService) UpdateGuest(ctx context.Context, token, guestName, bookingRef string) (*domain.Session, error) {
	guestName = utils.NormalizeString(guestName)
	bookingRef = utils.NormalizeString(bookingRef)
	if guestName == "" || bookingRef == "" {
		return nil, fmt.Errorf("%w: guest name and booking reference are required", domain.ErrInvalidInput)
	}

	// Confirm the session exists before spending an upstream call.
	if _, err := s.GetSession(ctx, token); err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(ctx, bookingRef)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve reservation: %w", err)
	}

	sess, err := s.mutate(ctx, token, func(sess *domain.Session) error {
		sess.GuestName = guestName
		sess.RoomNumber = bookingRef
		sess.PhysicalRoom = res.RoomName
		sess.RoomAccessCode = res.AccessCode
		sess.CloudbedsReservationID = res.ReservationID
		sess.Status = domain.StatusGuestVerified
		sess.CurrentStep = domain.StepDocument
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.SessionGuestUpdated, events.GuestUpdatedEvent{
		SessionToken:  sess.Token,
		GuestName:     guestName,
		ReservationID: res.ReservationID,
	})

	return sess, nil
}

// VisitorIntake stores the visitor's contact details. Visitors have no
// reservation; this is informational capture only.
func (s *VerificationService) VisitorIntake(ctx context.Context, token, firstName, lastName, phone, reason string) (*domain.Session, error) {
	firstName = utils.NormalizeString(firstName)
	lastName = utils.NormalizeString(lastName)
	phone = utils.NormalizePhone(phone)
	reason = utils.NormalizeString(reason)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: visitor first and last name are required", domain.ErrInvalidInput)
	}

	firstIntake := false
	sess, err := s.mutate(ctx, token, func(sess *domain.Session) error {
		firstIntake = sess.Status != domain.StatusVisitorInfoSaved
		sess.VisitorFirstName = firstName
		sess.VisitorLastName = lastName
		sess.VisitorPhone = phone
		sess.VisitorReason = reason
		sess.Status = domain.StatusVisitorInfoSaved
		sess.CurrentStep = domain.StepDocument
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.SessionVisitorSaved, events.VisitorSavedEvent{
		SessionToken: sess.Token,
		FirstName:    firstName,
		LastName:     lastName,
	})

	// Visitor sessions expect zero verified guests, so intake is the moment
	// the flow completes. Re-submitting the form does not notify twice.
	if sess.IsVerified && firstIntake {
		s.publish(ctx, events.SessionVerified, events.SessionVerifiedEvent{
			SessionToken:   sess.Token,
			FlowType:       string(sess.FlowType),
			GuestName:      firstName + " " + lastName,
			VerifiedGuests: sess.VerifiedGuestCount,
			VerifiedAt:     time.Now(),
		})
	}

	return sess, nil
}

// UploadDocument stores an ID document image for the next unverified guest
// slot. Re-uploading to the same slot overwrites the previous capture, which
// is how retakes work.
func (s *VerificationService) UploadDocument(ctx context.Context, token, imageData string) (*domain.Session, int, error) {
	data, err := decodeImagePayload(imageData)
	if err != nil {
		return nil, 0, err
	}

	sess, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, 0, err
	}
	slot := sess.NextGuestSlot()

	docURL, err := s.blobs.Put(ctx, storage.DocumentKey(token, slot), data, "image/jpeg")
	if err != nil {
		return nil, 0, fmt.Errorf("%w: store document: %v", domain.ErrProvider, err)
	}

	sess, err = s.mutate(ctx, token, func(sess *domain.Session) error {
		sess.DocumentURL = docURL
		sess.Status = domain.StatusDocumentUploaded
		sess.CurrentStep = domain.StepSelfie
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.publish(ctx, events.DocumentUploaded, events.DocumentUploadedEvent{
		SessionToken: token,
		GuestIndex:   slot,
		DocumentURL:  docURL,
	})

	return sess, slot, nil
}

// AddGuest raises the expected guest count so one session can verify a
// party. The count never drops below what has already been verified.
func (s *VerificationService) AddGuest(ctx context.Context, token string, additional int) (*domain.Session, error) {
	if additional <= 0 {
		additional = 1
	}

	return s.mutate(ctx, token, func(sess *domain.Session) error {
		sess.ExpectedGuestCount = domain.ClampInt(
			sess.ExpectedGuestCount+additional,
			sess.VerifiedGuestCount,
			domain.MaxGuestsPerSession,
		)
		sess.Recount()
		if sess.RequiresAdditionalGuest {
			sess.Status = domain.StatusDocumentUploaded
			sess.CurrentStep = domain.StepDocument
		}
		return nil
	})
}

// VerifyResult is what verify_face reports back to the client.
type VerifyResult struct {
	Session       *domain.Session
	GuestIndex    int
	GuestVerified bool
	Outcome       FaceOutcome
}

// VerifyFace runs the face-verification policy for the next guest slot: the
// stored document for that slot against a freshly submitted selfie. On a
// newly successful guest-flow verification it also resolves the physical
// room and door code, best-effort.
func (s *VerificationService) VerifyFace(ctx context.Context, token, selfieData string) (*VerifyResult, error) {
	sess, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	selfie, err := decodeImagePayload(selfieData)
	if err != nil {
		return nil, err
	}

	slot := sess.NextGuestSlot()
	docKey := storage.DocumentKey(token, slot)

	document, err := s.blobs.Get(ctx, docKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: guest %d", domain.ErrDocumentMissing, slot)
		}
		return nil, fmt.Errorf("%w: read document: %v", domain.ErrProvider, err)
	}

	selfieURL, err := s.blobs.Put(ctx, storage.SelfieKey(token, slot), selfie, "image/jpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: store selfie: %v", domain.ErrProvider, err)
	}

	live, err := s.faces.DetectFace(ctx, selfie)
	if err != nil {
		return nil, fmt.Errorf("%w: liveness detection: %v", domain.ErrProvider, err)
	}

	similarity, err := s.faces.CompareFaces(ctx, selfie, document, SimilarityFloor)
	if err != nil {
		return nil, fmt.Errorf("%w: face comparison: %v", domain.ErrProvider, err)
	}

	outcome := scoreFaceMatch(live, similarity)

	// Room resolution happens outside the write loop so a CAS retry never
	// repeats upstream calls. Failure here never fails the verification.
	var reservation *domain.Reservation
	if outcome.Verified && sess.FlowType == domain.FlowGuest && sess.RoomNumber != "" {
		reservation, err = s.resolver.Resolve(ctx, sess.RoomNumber)
		if err != nil {
			logger.WarnContext(ctx, "Reservation lookup after verification failed",
				"session_token", token, "booking_ref", sess.RoomNumber, "error", err,
			)
			reservation = nil
		}
	}

	wasVerified := false
	sess, err = s.mutate(ctx, token, func(sess *domain.Session) error {
		wasVerified = sess.IsVerified

		sess.DocumentURL = docKeyURL(sess.DocumentURL, docKey)
		sess.SelfieURL = selfieURL
		sess.VerificationScore = outcome.Score
		sess.LivenessScore = outcome.LivenessScore
		sess.FaceMatchScore = outcome.Similarity

		if outcome.Verified && sess.VerifiedGuestCount < sess.ExpectedGuestCount {
			sess.VerifiedGuestCount++
		}
		sess.Recount()

		if reservation != nil {
			sess.PhysicalRoom = reservation.RoomName
			sess.RoomAccessCode = reservation.AccessCode
			sess.CloudbedsReservationID = reservation.ReservationID
		}

		switch {
		case sess.IsVerified:
			sess.Status = domain.StatusVerified
			sess.CurrentStep = domain.StepComplete
		case outcome.Verified:
			// This guest passed but more are expected.
			sess.CurrentStep = domain.StepDocument
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.FaceVerified, events.FaceVerifiedEvent{
		SessionToken:      token,
		GuestIndex:        slot,
		GuestVerified:     outcome.Verified,
		VerificationScore: outcome.Score,
		LivenessScore:     outcome.LivenessScore,
		FaceMatchScore:    outcome.Similarity,
	})

	if sess.IsVerified && !wasVerified {
		s.publish(ctx, events.SessionVerified, events.SessionVerifiedEvent{
			SessionToken:   token,
			FlowType:       string(sess.FlowType),
			GuestName:      sess.GuestName,
			PhysicalRoom:   sess.PhysicalRoom,
			RoomAccessCode: sess.RoomAccessCode,
			VerifiedGuests: sess.VerifiedGuestCount,
			VerifiedAt:     time.Now(),
		})
	}

	return &VerifyResult{
		Session:       sess,
		GuestIndex:    slot,
		GuestVerified: outcome.Verified,
		Outcome:       outcome,
	}, nil
}

// docKeyURL keeps an existing stored URL if the blob store already recorded
// one for this document, otherwise falls back to the bare key.
func docKeyURL(existing, key string) string {
	if existing != "" {
		return existing
	}
	return key
}

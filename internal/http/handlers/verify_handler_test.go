package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roomquest/idverify/internal/domain"
	"github.com/roomquest/idverify/internal/face"
	"github.com/roomquest/idverify/internal/http/handlers"
	"github.com/roomquest/idverify/internal/service"
	"github.com/roomquest/idverify/internal/storage"
)

// ---------- Mocks ----------

type memSessionRepo struct {
	sessions map[string]*domain.Session
}

func (m *memSessionRepo) Create(_ context.Context, s *domain.Session) error {
	s.Version = 1
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *memSessionRepo) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) Update(_ context.Context, s *domain.Session) (bool, error) {
	stored, ok := m.sessions[s.Token]
	if !ok || stored.Version != s.Version {
		return false, nil
	}
	s.Version++
	cp := *s
	m.sessions[s.Token] = &cp
	return true, nil
}

type memBlobStore struct {
	objects map[string][]byte
}

func (m *memBlobStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.objects[key] = data
	return "s3://test/" + key, nil
}

func (m *memBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

type stubAnalyzer struct {
	live       face.Liveness
	similarity float64
}

func (s *stubAnalyzer) DetectFace(_ context.Context, _ []byte) (face.Liveness, error) {
	return s.live, nil
}

func (s *stubAnalyzer) CompareFaces(_ context.Context, _, _ []byte, _ float32) (float64, error) {
	return s.similarity, nil
}

type stubResolver struct {
	reservation *domain.Reservation
	err         error
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (*domain.Reservation, error) {
	return s.reservation, s.err
}

// ---------- Helpers ----------

func newTestServer(t *testing.T) (*httptest.Server, *stubResolver) {
	t.Helper()
	resolver := &stubResolver{
		reservation: &domain.Reservation{
			ReservationID: "RES-1",
			GuestName:     "Dana Cole",
			RoomName:      "Suite 12",
			AccessCode:    "4821",
		},
	}
	svc := service.NewVerificationService(
		&memSessionRepo{sessions: make(map[string]*domain.Session)},
		&memBlobStore{objects: make(map[string][]byte)},
		&stubAnalyzer{live: face.Liveness{EyesOpen: true, Confidence: 99}, similarity: 90},
		resolver,
		nil,
	)
	srv := httptest.NewServer(handlers.NewVerifyHandler(svc).Routes())
	t.Cleanup(srv.Close)
	return srv, resolver
}

func post(t *testing.T, url string, body map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	buf, _ := json.Marshal(body)
	res, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	return res.StatusCode, out
}

func imagePayload() string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x55}, 4096))
}

// ---------- Tests ----------

func TestVerifyDispatchFullGuestFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	status, out := post(t, srv.URL, map[string]interface{}{
		"action": "start", "flow_type": "guest",
	})
	if status != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", status)
	}
	token, _ := out["session_token"].(string)
	if token == "" {
		t.Fatal("no session_token in start response")
	}

	status, out = post(t, srv.URL, map[string]interface{}{
		"action": "log_consent", "session_token": token, "consent_locale": "en-US",
	})
	if status != http.StatusOK {
		t.Fatalf("log_consent status = %d, want 200", status)
	}
	if out["current_step"] != "identity" {
		t.Errorf("current_step = %v, want identity", out["current_step"])
	}

	status, out = post(t, srv.URL, map[string]interface{}{
		"action": "update_guest", "session_token": token,
		"guest_name": "Dana Cole", "room_number": "RES-1",
	})
	if status != http.StatusOK {
		t.Fatalf("update_guest status = %d, want 200", status)
	}
	if out["physical_room"] != "Suite 12" {
		t.Errorf("physical_room = %v, want Suite 12", out["physical_room"])
	}

	status, out = post(t, srv.URL, map[string]interface{}{
		"action": "upload_document", "session_token": token, "image_data": imagePayload(),
	})
	if status != http.StatusOK {
		t.Fatalf("upload_document status = %d, want 200", status)
	}
	if out["guest_index"] != float64(1) {
		t.Errorf("guest_index = %v, want 1", out["guest_index"])
	}

	status, out = post(t, srv.URL, map[string]interface{}{
		"action": "verify_face", "session_token": token, "image_data": imagePayload(),
	})
	if status != http.StatusOK {
		t.Fatalf("verify_face status = %d, want 200", status)
	}
	if out["guest_verified"] != true {
		t.Error("guest_verified should be true")
	}
	if out["is_verified"] != true {
		t.Error("is_verified should be true")
	}
	if out["room_access_code"] != "4821" {
		t.Errorf("room_access_code = %v, want 4821", out["room_access_code"])
	}

	status, out = post(t, srv.URL, map[string]interface{}{
		"action": "get_session", "session_token": token,
	})
	if status != http.StatusOK {
		t.Fatalf("get_session status = %d, want 200", status)
	}
	if out["status"] != "verified" {
		t.Errorf("status = %v, want verified", out["status"])
	}
}

func TestVerifyDispatchUnknownAction(t *testing.T) {
	srv, _ := newTestServer(t)

	status, out := post(t, srv.URL, map[string]interface{}{"action": "explode"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if out["code"] != "INVALID_INPUT" {
		t.Errorf("code = %v, want INVALID_INPUT", out["code"])
	}
}

func TestVerifyDispatchUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	status, out := post(t, srv.URL, map[string]interface{}{
		"action": "get_session", "session_token": "nope",
	})
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if out["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", out["code"])
	}
}

func TestVerifyDispatchMissingToken(t *testing.T) {
	srv, _ := newTestServer(t)

	status, _ := post(t, srv.URL, map[string]interface{}{"action": "log_consent"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestVerifyDispatchInvalidImageCode(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out := post(t, srv.URL, map[string]interface{}{
		"action": "start", "flow_type": "guest",
	})
	token := out["session_token"].(string)

	status, out := post(t, srv.URL, map[string]interface{}{
		"action": "upload_document", "session_token": token, "image_data": "xx",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if out["code"] != "INVALID_IMAGE" {
		t.Errorf("code = %v, want INVALID_IMAGE", out["code"])
	}
}

func TestVerifyDispatchDocumentMissingCode(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out := post(t, srv.URL, map[string]interface{}{
		"action": "start", "flow_type": "guest",
	})
	token := out["session_token"].(string)

	status, out := post(t, srv.URL, map[string]interface{}{
		"action": "verify_face", "session_token": token, "image_data": imagePayload(),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if out["code"] != "DOCUMENT_MISSING" {
		t.Errorf("code = %v, want DOCUMENT_MISSING", out["code"])
	}
}

func TestVerifyDispatchReservationNotFound(t *testing.T) {
	srv, resolver := newTestServer(t)

	_, out := post(t, srv.URL, map[string]interface{}{
		"action": "start", "flow_type": "guest",
	})
	token := out["session_token"].(string)

	resolver.reservation = nil
	resolver.err = domain.ErrReservationNotFound

	status, out := post(t, srv.URL, map[string]interface{}{
		"action": "update_guest", "session_token": token,
		"guest_name": "Dana", "room_number": "BAD",
	})
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if out["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", out["code"])
	}
}

func TestVerifyDispatchVisitorFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	status, out := post(t, srv.URL, map[string]interface{}{
		"action": "start", "flow_type": "visitor",
	})
	if status != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", status)
	}
	if out["is_verified"] != true {
		t.Error("visitor session should report verified immediately")
	}
	token := out["session_token"].(string)

	status, out = post(t, srv.URL, map[string]interface{}{
		"action": "visitor_intake", "session_token": token,
		"first_name": "Jo", "last_name": "Ward", "phone": "555-0101", "reason": "delivery",
	})
	if status != http.StatusOK {
		t.Fatalf("visitor_intake status = %d, want 200", status)
	}
	if out["status"] != "visitor_info_saved" {
		t.Errorf("status = %v, want visitor_info_saved", out["status"])
	}
}

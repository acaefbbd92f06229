package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eventregis/internal/api/api"
	"eventregis/internal/auth"
	"eventregis/internal/filestore"
	"eventregis/internal/geo"
	"eventregis/internal/model"
	"eventregis/internal/repo"
	"eventregis/internal/service"
	"eventregis/internal/status"
)

// memRepo is an in-memory Repository good enough for handler tests. The
// admission path mirrors the SQL transaction's decision order under a mutex.
type memRepo struct {
	mu           sync.Mutex
	events       map[int64]*model.Event
	participants map[int64]*model.Participant
	nextEventID  int64
	nextPartID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		events:       make(map[int64]*model.Event),
		participants: make(map[int64]*model.Participant),
	}
}

func (m *memRepo) CreateEvent(_ context.Context, e *model.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	cp := *e
	cp.ID = m.nextEventID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.events[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memRepo) GetEventByID(_ context.Context, id int64) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, repo.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memRepo) GetAllEvents(_ context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memRepo) UpdateEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.events[e.ID]
	if !ok {
		return repo.ErrEventNotFound
	}
	cp := *e
	cp.Registered = stored.Registered
	m.events[e.ID] = &cp
	return nil
}

func (m *memRepo) SetRegisClosed(_ context.Context, id int64, closed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return repo.ErrEventNotFound
	}
	e.RegisClosed = closed
	return nil
}

func (m *memRepo) AdmitParticipantTx(_ context.Context, p *model.Participant, source string, pos *repo.Position) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[p.EventID]
	if !ok {
		return 0, repo.ErrEventNotFound
	}
	now := time.Now()
	if e.RegisClosed || status.IsFull(e) || status.IsPastEvent(e.BeginDate, e.EndDate, now) {
		e.RegisClosed = true
		return 0, repo.ErrRegistrationClosed
	}
	if (source == repo.SourceForm && e.RegisterMethod == model.RegisterProviderOnly) ||
		(source == repo.SourceProvider && e.RegisterMethod == model.RegisterFormOnly) {
		return 0, repo.ErrMethodNotAllowed
	}
	if e.NeedOriginApprovePaper && p.DocPath == "" {
		return 0, repo.ErrMissingDocument
	}
	if e.HasGeofence() {
		if pos == nil || !geo.WithinRadius(*e.Latitude, *e.Longitude, pos.Lat, pos.Lon, *e.CheckInRadiusMeters) {
			return 0, repo.ErrGeofenceDenied
		}
	}
	willBeFull := e.Registered+1 >= e.Capacity
	m.nextPartID++
	p.Status = model.ParticipantConfirmed
	cp := *p
	cp.ID = m.nextPartID
	m.participants[cp.ID] = &cp
	e.Registered++
	if willBeFull {
		e.RegisClosed = true
	}
	return cp.ID, nil
}

func (m *memRepo) DeleteParticipantTx(_ context.Context, eventID, participantID int64) (string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok || p.EventID != eventID {
		return "", 0, repo.ErrParticipantNotFound
	}
	delete(m.participants, participantID)
	registered := 0
	if e, ok := m.events[eventID]; ok {
		if e.Registered > 0 {
			e.Registered--
		}
		registered = e.Registered
	}
	return p.DocPath, registered, nil
}

func (m *memRepo) GetParticipantsByEventID(_ context.Context, eventID int64) ([]model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Participant
	for _, p := range m.participants {
		if p.EventID == eventID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memRepo) CountParticipants(_ context.Context, eventID int64) (int, error) {
	ps, _ := m.GetParticipantsByEventID(context.Background(), eventID)
	return len(ps), nil
}

func (m *memRepo) SyncRegisteredTx(_ context.Context, eventID int64) (int, error) {
	count, _ := m.CountParticipants(context.Background(), eventID)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return 0, repo.ErrEventNotFound
	}
	e.Registered = count
	return count, nil
}

func (m *memRepo) MigrateUp(string) error   { return nil }
func (m *memRepo) MigrateDown(string) error { return nil }

type testEnv struct {
	srv      *httptest.Server
	repo     *memRepo
	verifier *auth.Verifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	mem := newMemRepo()
	verifier := auth.NewVerifier("handler-test-secret")
	files := filestore.NewStore(t.TempDir(), &log)

	svc := service.NewService(mem, &log, nil, verifier, files, time.Hour)
	app := api.NewRouters(&api.Routers{Service: svc})
	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, repo: mem, verifier: verifier}
}

func (env *testEnv) token(t *testing.T, c auth.Claims) string {
	t.Helper()
	tok, err := env.verifier.Issue(c, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (env *testEnv) seedEvent(t *testing.T, e *model.Event) int64 {
	t.Helper()
	id, err := env.repo.CreateEvent(context.Background(), e)
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return id
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, env.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var envelope map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	return resp, envelope
}

func registerForm(t *testing.T, env *testEnv, eventID int64, fields map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()

	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/v1/events/%d/register", env.srv.URL, eventID), &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var envelope map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	return resp, envelope
}

func openEvent(capacity int) *model.Event {
	return &model.Event{
		Name:           "Handler Test Event",
		BeginDate:      "2099-01-01",
		Capacity:       capacity,
		Status:         model.StatusOpen,
		RegisterMethod: model.RegisterBoth,
	}
}

func TestRegisterHappyPath(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedEvent(t, openEvent(2))

	resp, envelope := registerForm(t, env, id, map[string]string{
		"full_name": "Somchai Jaidee",
		"phone":     "081 234 5678",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%v)", resp.StatusCode, envelope)
	}
	data := envelope["data"].(map[string]any)
	if data["phone"] != "0812345678" {
		t.Errorf("phone not normalized: %v", data["phone"])
	}
	if data["status"] != model.ParticipantConfirmed {
		t.Errorf("status = %v, want confirmed", data["status"])
	}
	if data["legacy_status"] != "approved" {
		t.Errorf("legacy_status = %v, want approved", data["legacy_status"])
	}
}

func TestRegisterRejectsBadPhone(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedEvent(t, openEvent(2))

	resp, _ := registerForm(t, env, id, map[string]string{
		"full_name": "Somchai Jaidee",
		"phone":     "12345",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRegisterCapacityOne(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedEvent(t, openEvent(1))

	resp, _ := registerForm(t, env, id, map[string]string{
		"full_name": "First In", "phone": "0812345678",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first admission status = %d, want 201", resp.StatusCode)
	}

	e, _ := env.repo.GetEventByID(context.Background(), id)
	if e.Registered != 1 || !e.RegisClosed {
		t.Errorf("after admission: registered=%d regis_closed=%v, want 1/true", e.Registered, e.RegisClosed)
	}

	resp, envelope := registerForm(t, env, id, map[string]string{
		"full_name": "Too Late", "phone": "0899999999",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("second admission status = %d, want 403 (%v)", resp.StatusCode, envelope)
	}
}

func TestRosterRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedEvent(t, openEvent(5))

	resp, _ := env.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d/participants", id), "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRosterMasking(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedEvent(t, openEvent(5))
	registerForm(t, env, id, map[string]string{
		"full_name": "สมชาย ใจดี",
		"phone":     "0812345678",
		"email":     "somchai@example.com",
	})

	path := fmt.Sprintf("/v1/events/%d/participants", id)

	publicToken := env.token(t, auth.Claims{UserID: "u-pub", Scope: auth.ScopePublic})
	_, envelope := env.do(t, http.MethodGet, path, publicToken, nil)
	rows := envelope["data"].([]any)
	row := rows[0].(map[string]any)
	if row["full_name"] != "สมชาย *" {
		t.Errorf("public roster name = %v, want masked", row["full_name"])
	}
	if row["phone"] != "*" || row["email"] != "*" {
		t.Errorf("public roster contact fields not masked: %v", row)
	}

	sessionToken := env.token(t, auth.Claims{UserID: "u-org", ProviderID: "prov-1", Scope: auth.ScopeSession})
	_, envelope = env.do(t, http.MethodGet, path, sessionToken, nil)
	rows = envelope["data"].([]any)
	row = rows[0].(map[string]any)
	if row["full_name"] != "สมชาย ใจดี" {
		t.Errorf("session roster name = %v, want unmasked", row["full_name"])
	}
	if row["phone"] != "0812345678" {
		t.Errorf("session roster phone = %v, want unmasked", row["phone"])
	}
}

func TestUpdateEventOwnership(t *testing.T) {
	env := newTestEnv(t)
	ev := openEvent(5)
	ev.ProviderIDCreated = "prov-owner"
	id := env.seedEvent(t, ev)

	path := fmt.Sprintf("/v1/events/%d", id)
	patch := map[string]any{"name": "Renamed"}

	stranger := env.token(t, auth.Claims{UserID: "u-2", ProviderID: "prov-other", Scope: auth.ScopeSession})
	resp, _ := env.do(t, http.MethodPut, path, stranger, patch)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("stranger update status = %d, want 403", resp.StatusCode)
	}

	owner := env.token(t, auth.Claims{UserID: "u-1", ProviderID: "prov-owner", Scope: auth.ScopeSession})
	resp, _ = env.do(t, http.MethodPut, path, owner, patch)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner update status = %d, want 200", resp.StatusCode)
	}

	e, _ := env.repo.GetEventByID(context.Background(), id)
	if e.Name != "Renamed" {
		t.Errorf("event name = %q, want Renamed", e.Name)
	}
}

func TestUpdateAdoptsOwnerlessEvent(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedEvent(t, openEvent(5))

	caller := env.token(t, auth.Claims{UserID: "u-1", ProviderID: "prov-new", Scope: auth.ScopeSession})
	resp, _ := env.do(t, http.MethodPut, fmt.Sprintf("/v1/events/%d", id), caller,
		map[string]any{"description": "now owned"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}

	e, _ := env.repo.GetEventByID(context.Background(), id)
	if e.ProviderIDCreated != "prov-new" {
		t.Errorf("owner = %q, want prov-new", e.ProviderIDCreated)
	}
}

func TestDeleteParticipantDecrements(t *testing.T) {
	env := newTestEnv(t)
	ev := openEvent(5)
	ev.ProviderIDCreated = "prov-owner"
	id := env.seedEvent(t, ev)

	resp, envelope := registerForm(t, env, id, map[string]string{
		"full_name": "To Remove", "phone": "0812345678",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admission failed: %v", envelope)
	}
	pid := int64(envelope["data"].(map[string]any)["id"].(float64))

	owner := env.token(t, auth.Claims{UserID: "u-1", ProviderID: "prov-owner", Scope: auth.ScopeSession})
	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/events/%d/participants/%d", id, pid), owner, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	e, _ := env.repo.GetEventByID(context.Background(), id)
	if e.Registered != 0 {
		t.Errorf("registered = %d, want 0", e.Registered)
	}
}

func TestDeleteParticipantReportsClampedCount(t *testing.T) {
	env := newTestEnv(t)
	ev := openEvent(5)
	ev.ProviderIDCreated = "prov-owner"
	id := env.seedEvent(t, ev)

	resp, envelope := registerForm(t, env, id, map[string]string{
		"full_name": "Drifted Row", "phone": "0812345678",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admission failed: %v", envelope)
	}
	pid := int64(envelope["data"].(map[string]any)["id"].(float64))

	// Simulate counter drift: the row exists but the counter already reads 0.
	env.repo.mu.Lock()
	env.repo.events[id].Registered = 0
	env.repo.mu.Unlock()

	owner := env.token(t, auth.Claims{UserID: "u-1", ProviderID: "prov-owner", Scope: auth.ScopeSession})
	resp, envelope = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/events/%d/participants/%d", id, pid), owner, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}
	if got := envelope["data"].(map[string]any)["registered"].(float64); got != 0 {
		t.Errorf("reported registered = %v, want 0 (never negative)", got)
	}
}

func TestEligibilityEndpoint(t *testing.T) {
	env := newTestEnv(t)
	lat, lon, radius := 16.8175, 100.26082, 500.0
	ev := openEvent(5)
	ev.Latitude = &lat
	ev.Longitude = &lon
	ev.EnableCheckInRadius = true
	ev.CheckInRadiusMeters = &radius
	id := env.seedEvent(t, ev)

	path := fmt.Sprintf("/v1/events/%d/eligibility", id)

	_, envelope := env.do(t, http.MethodPost, path, "", map[string]any{
		"latitude": lat, "longitude": lon,
	})
	data := envelope["data"].(map[string]any)
	if data["eligible"] != true {
		t.Errorf("same point must be eligible: %v", data)
	}
	if d := data["distance_meters"].(float64); d != 0 {
		t.Errorf("distance = %v, want 0", d)
	}

	// No device position fails closed.
	_, envelope = env.do(t, http.MethodPost, path, "", map[string]any{})
	data = envelope["data"].(map[string]any)
	if data["eligible"] != false {
		t.Errorf("missing position must not be eligible: %v", data)
	}
}

func TestPublicTokenEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.do(t, http.MethodPost, "/v1/auth/token", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data := envelope["data"].(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("no token in response")
	}

	claims, err := env.verifier.Verify(token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Scope != auth.ScopePublic {
		t.Errorf("scope = %q, want public", claims.Scope)
	}
	if claims.Privileged() {
		t.Error("public token must not be privileged")
	}
}

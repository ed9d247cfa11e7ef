package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/attendance"
	"checkin/internal/auth"
	"checkin/internal/config"
	"checkin/internal/diploma"
	"checkin/internal/mailer"
	"checkin/internal/metrics"
	"checkin/internal/queue"
	"checkin/internal/registration"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// ---- fakes ----

type fakeAttendanceRepo struct {
	attendees map[int64]bool
	events    []attendance.Event
}

func (f *fakeAttendanceRepo) AttendeeExists(ctx context.Context, id int64) (bool, error) {
	return f.attendees[id], nil
}

func (f *fakeAttendanceRepo) InsertEvent(ctx context.Context, evt attendance.Event) (attendance.Event, error) {
	f.events = append(f.events, evt)
	return evt, nil
}

type fakeRegistrationRepo struct {
	nextID int64
}

func (f *fakeRegistrationRepo) CreateAttendee(ctx context.Context, a registration.Attendee) (int64, error) {
	f.nextID++
	return f.nextID, nil
}

func (f *fakeRegistrationRepo) SaveBadge(ctx context.Context, attendeeID int64, token string, qrPNG []byte) error {
	return nil
}

func (f *fakeRegistrationRepo) CreateEnrollments(ctx context.Context, attendeeID int64, activityIDs []int64) error {
	return nil
}

func (f *fakeRegistrationRepo) ListActivities(ctx context.Context) ([]registration.Activity, error) {
	return []registration.Activity{{ID: 1, Kind: "taller", Name: "Robótica"}}, nil
}

type fakeDiplomaStore struct {
	enrollments map[int64]*diploma.Enrollment
}

func (f *fakeDiplomaStore) Enrollment(ctx context.Context, attendeeID, activityID int64) (*diploma.Enrollment, error) {
	for _, e := range f.enrollments {
		if e.AttendeeID == attendeeID && e.ActivityID == activityID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeDiplomaStore) EnrollmentByID(ctx context.Context, id int64) (*diploma.Enrollment, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeDiplomaStore) MarkSent(ctx context.Context, enrollmentID int64) (bool, error) {
	e, ok := f.enrollments[enrollmentID]
	if !ok || e.DiplomaSent {
		return false, nil
	}
	e.DiplomaSent = true
	return true, nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) (mailer.Result, error) {
	if f.err != nil {
		return mailer.Result{}, f.err
	}
	f.sent = append(f.sent, msg)
	return mailer.Result{Transport: "smtp-primary"}, nil
}

type fakeQueue struct {
	published []queue.Message
}

func (f *fakeQueue) Publish(ctx context.Context, msg queue.Message) error {
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeQueue) Consume(ctx context.Context) (<-chan queue.Message, error) {
	return nil, nil
}

// ---- harness ----

type harness struct {
	router *gin.Engine
	cfg    config.App
	queue  *fakeQueue
	sender *fakeSender
	store  *fakeDiplomaStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.App{
		JWTIssuer:       "checkin",
		JWTSigningKey:   "test-secret",
		AccessTTL:       time.Hour,
		RateLimitPerMin: 10000,
		AllowedDomain:   "@miumg.edu.gt",
	}
	q := &fakeQueue{}
	sender := &fakeSender{}
	dstore := &fakeDiplomaStore{enrollments: map[int64]*diploma.Enrollment{
		11: {ID: 11, AttendeeID: 7, ActivityID: 2, AttendeeName: "Ana López",
			AttendeeEmail: "ana@example.com", ActivityName: "Taller de Robótica"},
	}}
	d := deps{
		cfg:          cfg,
		registration: registration.NewService(&fakeRegistrationRepo{}, sender, cfg.AllowedDomain),
		recorder:     attendance.NewRecorder(&fakeAttendanceRepo{attendees: map[int64]bool{7: true}}),
		diplomas:     diploma.NewService(dstore, diploma.NewPDFRenderer(""), sender),
		queue:        q,
		metrics:      metrics.New(prometheus.NewRegistry()),
	}
	return &harness{router: newRouter(d), cfg: cfg, queue: q, sender: sender, store: dstore}
}

func (h *harness) stationToken(t *testing.T) string {
	t.Helper()
	token, _, err := auth.Issue("gate-1", h.cfg.JWTIssuer, h.cfg.JWTSigningKey, time.Hour)
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// ---- tests ----

func TestScanRequiresStationAuth(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/scan", "", gin.H{"token": "USER-7"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScanAcceptedPublishesDiplomaJob(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/scan", h.stationToken(t), gin.H{"token": "USER-7", "activity_id": 2})
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, float64(7), out["user_id"])

	require.Len(t, h.queue.published, 1)
	job, err := queue.ParseDiplomaJob(h.queue.published[0])
	require.NoError(t, err)
	assert.Equal(t, int64(7), job.AttendeeID)
	assert.Equal(t, int64(2), job.ActivityID)
}

func TestScanWithoutActivitySkipsQueue(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/scan", h.stationToken(t), gin.H{"token": "USER-7"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, h.queue.published, "general attendance triggers no diploma flow")
}

func TestScanBadToken(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/scan", h.stationToken(t), gin.H{"token": "USER-abc"})
	require.Equal(t, http.StatusOK, w.Code, "client input errors are not server errors")

	out := decode(t, w)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "QR inválido", out["msg"])
	assert.Empty(t, h.queue.published)
}

func TestScanUnknownUser(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/scan", h.stationToken(t), gin.H{"token": "USER-999999"})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "usuario no registrado", out["msg"])
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/register", "", gin.H{
		"name": "Ana López", "email": "ana@gmail.com", "activities": []int64{2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	out := decode(t, w)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "USER-1", out["badge_token"])
	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "Tu código QR de asistencia", h.sender.sent[0].Subject)
}

func TestRegisterInternalWrongDomain(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/register", "", gin.H{
		"name": "Luis", "email": "luis@gmail.com", "category": "internal",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["ok"])
}

func TestActivities(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/v1/activities", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["ok"])
	assert.Len(t, out["activities"], 1)
}

func TestResend(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/enrollments/11/diploma/resend", h.stationToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "smtp-primary", out["transport"])
	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "Diploma de participación", h.sender.sent[0].Subject)
}

func TestResendUnknownEnrollment(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/enrollments/404/diploma/resend", h.stationToken(t), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResendReportsDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.sender.err = mailer.ErrChannelUnavailable
	w := h.do(t, http.MethodPost, "/v1/enrollments/11/diploma/resend", h.stationToken(t), nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	out := decode(t, w)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "channel_unavailable", out["msg"])
	assert.False(t, h.store.enrollments[11].DiplomaSent, "failed resend leaves the marker untouched")
}

func TestDiplomaDownload(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/v1/enrollments/11/diploma", h.stationToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Diploma_Ana_López.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

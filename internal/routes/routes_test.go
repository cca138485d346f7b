package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/events"
	"clinic-booking-server/internal/lock"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/scheduling"
	"clinic-booking-server/internal/testutil"
	"clinic-booking-server/internal/utils"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type harness struct {
	t       *testing.T
	db      *gorm.DB
	cfg     *config.Config
	router  *gin.Engine
	events  *recordingPublisher
	admin   *models.User
	doctor  *models.User
	patient *models.User
	other   *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	cfg := &config.Config{
		Environment:               "test",
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
	}
	planner, err := scheduling.NewPlanner(
		scheduling.WithLocation(time.UTC),
		scheduling.WithLocale(scheduling.Translator("en")),
	)
	require.NoError(t, err)

	h := &harness{
		t:       t,
		db:      db,
		cfg:     cfg,
		router:  gin.New(),
		events:  &recordingPublisher{},
		admin:   testutil.CreateUser(t, db, models.RoleAdmin, "admin@example.com", "100000000001"),
		doctor:  testutil.CreateUser(t, db, models.RoleDoctor, "doctor@example.com", "100000000002"),
		patient: testutil.CreateUser(t, db, models.RolePatient, "patient@example.com", "100000000003"),
		other:   testutil.CreateUser(t, db, models.RolePatient, "other@example.com", "100000000004"),
	}
	require.NoError(t, db.Create(&models.DoctorProfile{
		UserID:         h.doctor.ID,
		Specialization: models.SpecCardiologist,
		Education:      "Medical University",
		Experience:     "10 years",
		Description:    "Heart specialist",
	}).Error)

	SetupRoutes(h.router, Dependencies{
		DB:        db,
		Config:    cfg,
		Planner:   planner,
		Locker:    lock.NewLocal(),
		Publisher: h.events,
	})
	return h
}

func (h *harness) token(u *models.User) string {
	h.t.Helper()
	access, _, err := utils.GenerateTokens(u, h.cfg)
	require.NoError(h.t, err)
	return access
}

func (h *harness) do(method, path string, as *models.User, body any) (int, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+h.token(as))
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (h *harness) book(as *models.User, slotID string) (int, envelope) {
	return h.do(http.MethodPost, "/api/v1/appointments", as, map[string]string{
		"doctorId":   h.doctor.ID,
		"timeSlotId": slotID,
	})
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}

func TestBookingFlow(t *testing.T) {
	h := newHarness(t)

	code, env := h.book(h.patient, "2024-03-18-10-00")
	require.Equal(t, http.StatusCreated, code, env.Error)
	var appt models.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, models.StatusConfirmed, appt.Status)
	assert.Equal(t, h.patient.ID, appt.PatientID)
	assert.True(t, appt.AppointmentDate.Equal(time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC)))

	code, env = h.book(h.other, "2024-03-18-10-00")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "This time slot is already booked", env.Error)

	code, env = h.do(http.MethodGet, "/api/v1/appointments/available-slots/"+h.doctor.ID+"?date=2024-03-18", h.other, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var plan scheduling.Plan
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	require.Len(t, plan.Slots, 45)
	for _, s := range plan.Slots {
		assert.Equal(t, s.ID != "2024-03-18-10-00", s.IsAvailable, s.ID)
	}

	assert.Equal(t, []events.Type{events.AppointmentCreated}, h.events.types())
}

func TestBookingValidation(t *testing.T) {
	h := newHarness(t)

	code, env := h.book(h.patient, "2024-03-18T10:00")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, env.Error)

	code, _ = h.do(http.MethodPost, "/api/v1/appointments", h.patient, map[string]string{
		"doctorId":   h.other.ID,
		"timeSlotId": "2024-03-18-10-00",
	})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.book(h.doctor, "2024-03-18-10-00")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = h.book(nil, "2024-03-18-10-00")
	assert.Equal(t, http.StatusUnauthorized, code)

	for _, id := range []string{"2024-03-23-10-00", "2024-03-18-03-17", "2024-03-18-18-00"} {
		code, env = h.book(h.patient, id)
		assert.Equal(t, http.StatusBadRequest, code, id)
		assert.Equal(t, "Time slot is outside of working hours", env.Error, id)
	}

	code, _ = h.do(http.MethodGet, "/api/v1/appointments/available-slots/"+h.doctor.ID+"?date=18.03.2024", h.patient, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Empty(t, h.events.types())
}

func TestAdminBooksForPatient(t *testing.T) {
	h := newHarness(t)

	code, env := h.book(h.admin, "2024-03-18-11-00")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "patientId")

	code, env = h.do(http.MethodPost, "/api/v1/appointments", h.admin, map[string]string{
		"doctorId":   h.doctor.ID,
		"patientId":  h.patient.ID,
		"timeSlotId": "2024-03-18-11-00",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = h.do(http.MethodGet, "/api/v1/appointments/me", h.patient, nil)
	require.Equal(t, http.StatusOK, code)
	var mine []models.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)
}

func TestStatusChanges(t *testing.T) {
	h := newHarness(t)

	code, env := h.book(h.patient, "2024-03-19-09-00")
	require.Equal(t, http.StatusCreated, code, env.Error)
	var appt models.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	path := "/api/v1/appointments/" + appt.ID

	code, _ = h.do(http.MethodPatch, path+"/status", h.patient, map[string]string{"status": "COMPLETED"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = h.do(http.MethodGet, path, h.other, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = h.do(http.MethodPatch, path+"/status", h.patient, map[string]string{"status": "CANCELLED"})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, models.StatusCancelled, appt.Status)

	// The cancelled slot is free again.
	code, env = h.book(h.other, "2024-03-19-09-00")
	assert.Equal(t, http.StatusCreated, code, env.Error)

	code, _ = h.do(http.MethodPatch, path+"/status", h.doctor, map[string]string{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Equal(t, []events.Type{
		events.AppointmentCreated,
		events.AppointmentStatusChanged,
		events.AppointmentCreated,
	}, h.events.types())
}

func TestCancelAndReschedule(t *testing.T) {
	h := newHarness(t)

	code, env := h.book(h.patient, "2024-03-20-14-00")
	require.Equal(t, http.StatusCreated, code, env.Error)
	var appt models.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	path := "/api/v1/appointments/" + appt.ID

	code, env = h.book(h.other, "2024-03-20-15-00")
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = h.do(http.MethodPatch, path+"/reschedule", h.patient, map[string]string{"timeSlotId": "2024-03-20-15-00"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "This time slot is already booked", env.Error)

	code, env = h.do(http.MethodPatch, path+"/reschedule", h.patient, map[string]string{"timeSlotId": "2024-03-24-09-00"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Time slot is outside of working hours", env.Error)

	code, env = h.do(http.MethodPatch, path+"/reschedule", h.patient, map[string]string{"timeSlotId": "2024-03-21-09-00"})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.True(t, appt.AppointmentDate.Equal(time.Date(2024, 3, 21, 9, 0, 0, 0, time.UTC)))

	// The old slot was released by the move.
	code, env = h.book(h.other, "2024-03-20-14-00")
	assert.Equal(t, http.StatusCreated, code, env.Error)

	code, _ = h.do(http.MethodDelete, path, h.other, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = h.do(http.MethodDelete, path, h.patient, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, models.StatusCancelled, appt.Status)
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	register := map[string]string{
		"firstName": "Anna",
		"lastName":  "Smirnova",
		"email":     "anna@example.com",
		"inn":       "770000000001",
		"phone":     "+79990000000",
		"password":  "hunter22",
	}
	code, env := h.do(http.MethodPost, "/api/v1/auth/register", nil, register)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var user models.UserSanitized
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, models.RolePatient, user.Role)

	code, _ = h.do(http.MethodPost, "/api/v1/auth/register", nil, register)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPost, "/api/v1/auth/login", nil, map[string]string{"identifier": "770000000001", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = h.do(http.MethodPost, "/api/v1/auth/login", nil, map[string]string{"identifier": "770000000001", "password": "hunter22"})
	require.Equal(t, http.StatusOK, code, env.Error)
	var login struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.AccessToken)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anna@example.com")

	code, env = h.do(http.MethodPost, "/api/v1/auth/refresh-token", nil, map[string]string{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, code, env.Error)
	var refreshed struct {
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &refreshed))
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The presented refresh token is single use.
	code, _ = h.do(http.MethodPost, "/api/v1/auth/refresh-token", nil, map[string]string{"refreshToken": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = h.do(http.MethodPost, "/api/v1/auth/logout", nil, map[string]string{"refreshToken": refreshed.RefreshToken})
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodPost, "/api/v1/auth/refresh-token", nil, map[string]string{"refreshToken": refreshed.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDoctors(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodGet, "/api/v1/doctors", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var doctors []models.DoctorView
	require.NoError(t, json.Unmarshal(env.Data, &doctors))
	require.Len(t, doctors, 1)
	assert.Equal(t, h.doctor.ID, doctors[0].User.ID)

	code, _ = h.do(http.MethodGet, "/api/v1/doctors?specialization=astrologer", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(http.MethodGet, "/api/v1/doctors/"+h.doctor.ID, nil, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	create := map[string]string{
		"userId":         h.other.ID,
		"specialization": "dentist",
		"education":      "Dental School",
		"experience":     "3 years",
		"description":    "Teeth",
	}
	code, _ = h.do(http.MethodPost, "/api/v1/doctors", h.patient, create)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = h.do(http.MethodPost, "/api/v1/doctors", h.admin, create)
	require.Equal(t, http.StatusCreated, code, env.Error)

	var promoted models.User
	require.NoError(t, h.db.First(&promoted, "id = ?", h.other.ID).Error)
	assert.Equal(t, models.RoleDoctor, promoted.Role)

	code, env = h.do(http.MethodGet, "/api/v1/doctors?specialization=dentist", nil, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &doctors))
	assert.Len(t, doctors, 1)

	code, env = h.do(http.MethodGet, "/api/v1/doctors/specializations", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "cardiologist")
}

func TestTestResults(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodPost, "/api/v1/test-results", h.doctor, map[string]any{
		"patientId":   h.patient.ID,
		"testType":    "BLOOD_TEST",
		"testDate":    "2024-03-18T10:00:00Z",
		"description": "Complete blood count",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var result models.TestResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, models.TestPending, result.Status)
	assert.Equal(t, h.doctor.ID, result.DoctorID)

	code, _ = h.do(http.MethodPost, "/api/v1/test-results", h.patient, map[string]any{
		"patientId": h.patient.ID,
		"testType":  "BLOOD_TEST",
		"testDate":  "2024-03-18T10:00:00Z",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = h.do(http.MethodGet, "/api/v1/test-results/me", h.patient, nil)
	require.Equal(t, http.StatusOK, code)
	var mine []models.TestResult
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)

	path := "/api/v1/test-results/" + result.ID
	code, _ = h.do(http.MethodGet, path, h.other, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = h.do(http.MethodPut, path, h.doctor, map[string]string{"status": "COMPLETED", "results": "Normal"})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, models.TestCompleted, result.Status)
	assert.Equal(t, "Normal", result.Results)

	code, _ = h.do(http.MethodDelete, path, h.admin, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodGet, path, h.admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

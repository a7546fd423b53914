package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/physio-api/internal/email"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/report"
	"github.com/jwalitptl/physio-api/internal/repository/memory"
	"github.com/jwalitptl/physio-api/internal/router"
	"github.com/jwalitptl/physio-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sentMail struct {
	to          string
	attachments []email.Attachment
}

type fakeMailer struct{ sent []sentMail }

func (f *fakeMailer) Send(_ context.Context, to, _, _ string, attachments ...email.Attachment) error {
	f.sent = append(f.sent, sentMail{to: to, attachments: attachments})
	return nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type testAPI struct {
	t      *testing.T
	engine http.Handler
	store  *memory.Store
	svc    *Services
	mailer *fakeMailer
}

func memoryRepositories(s *memory.Store) Repositories {
	return Repositories{
		Patients:     s.Patients(),
		Records:      s.ClinicalRecords(),
		Anamneses:    s.Anamneses(),
		VitalSigns:   s.VitalSigns(),
		TherapyTypes: s.TherapyTypes(),
		Therapies:    s.Therapies(),
		Users:        s.Users(),
		Audit:        s.Audit(),
		Outbox:       s.Outbox(),
		Tokens:       s.Tokens(),
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	mailer := &fakeMailer{}
	svc, r := NewEngine(memoryRepositories(store), Options{
		JWT:        auth.Config{Secret: "test-secret", Issuer: "physio-api", TTL: time.Hour},
		BcryptCost: bcrypt.MinCost,
		CatalogTTL: time.Minute,
		Letterhead: report.Letterhead{Name: "Studio Fisioterapico"},
		Mailer:     mailer,
		Registry:   prometheus.NewRegistry(),
		Namespace:  "physio",
		Health:     okPinger{},
		RouterConfig: router.Config{
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
	})

	ctx := context.Background()
	_, err := svc.TherapyTypes.Seed(ctx)
	require.NoError(t, err)
	for _, u := range []model.CreateUserRequest{
		{Email: "admin@physio.local", Password: "admin-pass", FirstName: "Ada", LastName: "Admin", Role: model.RoleAdmin},
		{Email: "desk@physio.local", Password: "desk-pass1", FirstName: "Rita", LastName: "Desk", Role: model.RoleReceptionist},
	} {
		_, err := svc.Users.CreateUser(ctx, &u)
		require.NoError(t, err)
	}

	return &testAPI{t: t, engine: r, store: store, svc: svc, mailer: mailer}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testAPI) decode(w *httptest.ResponseRecorder, data interface{}) envelope {
	a.t.Helper()
	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(a.t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var resp model.LoginResponse
	a.decode(w, &resp)
	require.NotEmpty(a.t, resp.Token)
	return resp.Token
}

func TestTherapyWorkflowEndToEnd(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("admin@physio.local", "admin-pass")

	w := api.do(http.MethodPost, "/api/patients", token, map[string]interface{}{
		"fiscalCode": "rssmra80a01h501u",
		"firstName":  "Mario",
		"lastName":   "Rossi",
		"birthDate":  "1980-01-01T00:00:00Z",
		"gender":     "M",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p model.Patient
	api.decode(w, &p)
	assert.Equal(t, "RSSMRA80A01H501U", p.FiscalCode)

	w = api.do(http.MethodPost, "/api/clinical-records", token, map[string]interface{}{
		"patientId": p.ID,
		"diagnosis": "Lombalgia acuta",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec model.ClinicalRecord
	api.decode(w, &rec)
	assert.True(t, strings.HasPrefix(rec.RecordNumber, "CR-"))

	w = api.do(http.MethodPost, "/api/therapies", token, map[string]interface{}{
		"clinicalRecordId":   rec.ID,
		"therapyType":        "TENS",
		"prescribedSessions": 1,
		"parameters":         map[string]interface{}{"time": 20, "type": "burst", "district": "lombare"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var th model.Therapy
	api.decode(w, &th)
	assert.Equal(t, model.TherapyStatusScheduled, th.Status)

	w = api.do(http.MethodPost, "/api/therapies/schedule-session", token, map[string]interface{}{
		"therapyId":      th.ID,
		"sessionDate":    time.Now().UTC().Format(time.RFC3339),
		"vasScoreBefore": 7,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sess model.TherapySession
	api.decode(w, &sess)
	assert.Equal(t, 1, sess.SessionNumber)

	w = api.do(http.MethodPost, "/api/therapies/schedule-session", token, map[string]interface{}{
		"therapyId":   th.ID,
		"sessionDate": time.Now().UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPut, "/api/therapies/sessions/"+sess.ID.String()+"/progress", token, map[string]interface{}{
		"status":             "COMPLETED",
		"vasScoreAfter":      4,
		"patientSignature":   "M. Rossi",
		"therapistSignature": "Dr. Bianchi",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/therapies/"+th.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		model.Therapy
		Sessions []*model.TherapySession `json:"sessions"`
	}
	api.decode(w, &detail)
	assert.Equal(t, model.TherapyStatusCompleted, detail.Status)
	assert.Equal(t, 1, detail.CompletedSessions)
	require.Len(t, detail.Sessions, 1)

	w = api.do(http.MethodGet, "/api/therapies/"+th.ID.String()+"/vas-improvement", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var vas model.VASImprovement
	api.decode(w, &vas)
	assert.Equal(t, 3.0, vas.Improvement)

	w = api.do(http.MethodGet, "/api/therapies/"+th.ID.String()+"/report", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = api.do(http.MethodPost, "/api/therapies/"+th.ID.String()+"/report/email", token, map[string]string{"to": "mario@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, api.mailer.sent, 1)
	assert.Equal(t, "mario@example.com", api.mailer.sent[0].to)

	w = api.do(http.MethodGet, "/api/search?q=ros", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var found model.SearchResult
	api.decode(w, &found)
	assert.Len(t, found.Patients, 1)
	assert.Len(t, found.Therapies, 1)

	w = api.do(http.MethodPost, "/api/clinical-records/"+rec.ID.String()+"/close", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodPut, "/api/clinical-records/"+rec.ID.String(), token, map[string]string{"diagnosis": "Altro"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodGet, "/api/audit-logs?entityType=therapy", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []model.AuditLog
	api.decode(w, &logs)
	assert.NotEmpty(t, logs)

	assert.NotEmpty(t, api.store.OutboxEvents())
}

func TestValidationErrorsNameFields(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("admin@physio.local", "admin-pass")

	w := api.do(http.MethodPost, "/api/patients", token, map[string]interface{}{
		"fiscalCode": "short",
		"firstName":  "Mario",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := api.decode(w, nil)
	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["fiscalCode"])
	assert.True(t, fields["lastName"])
}

func TestPolicyAndAuthentication(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/patients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	desk := api.login("desk@physio.local", "desk-pass1")
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/patients", desk, nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/clinical-records", desk, nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/users", desk, nil).Code)

	w = api.do(http.MethodGet, "/api/auth/me", desk, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User        model.User `json:"user"`
		Permissions []string   `json:"permissions"`
	}
	api.decode(w, &me)
	assert.Equal(t, model.RoleReceptionist, me.User.Role)
	assert.Contains(t, me.Permissions, "patient:write")
	assert.NotContains(t, me.Permissions, "record:read")

	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/auth/logout", desk, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/patients", desk, nil).Code)
}

func TestForbiddenDeleteLeavesPatientIntact(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("admin@physio.local", "admin-pass")
	desk := api.login("desk@physio.local", "desk-pass1")

	w := api.do(http.MethodPost, "/api/patients", desk, map[string]interface{}{
		"fiscalCode": "BNCLCU85B41F205X",
		"firstName":  "Lucia",
		"lastName":   "Bianchi",
		"birthDate":  "1985-02-01T00:00:00Z",
		"gender":     "F",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p model.Patient
	api.decode(w, &p)

	w = api.do(http.MethodDelete, "/api/patients/"+p.ID.String(), desk, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	env := api.decode(w, nil)
	assert.False(t, env.Success)
	assert.Equal(t, "insufficient permissions for patient:delete", env.Message)

	_, err := api.store.Patients().Get(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/patients/"+p.ID.String(), admin, nil).Code)
	_, err = api.store.Patients().Get(context.Background(), p.ID)
	assert.Error(t, err)
}

func TestOperationalEndpoints(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health/ready", "", nil).Code)

	api.do(http.MethodGet, "/api/patients", "", nil)
	w := api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "physio_http_requests_total")

	w = api.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

package therapy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository/memory"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	"github.com/jwalitptl/physio-api/internal/service/event"
	"github.com/jwalitptl/physio-api/internal/service/record"
	"github.com/jwalitptl/physio-api/internal/service/therapytype"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
	"github.com/jwalitptl/physio-api/pkg/metrics"
)

type fixture struct {
	svc     *Service
	store   *memory.Store
	records *record.Service
	types   *therapytype.Service
	record  *model.ClinicalRecord
	metrics *metrics.Metrics
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	auditor := audit.NewService(store.Audit())
	events := event.NewEventService(store.Outbox())

	types := therapytype.NewService(store.TherapyTypes(), auditor, time.Minute)
	_, err := types.Seed(ctx)
	require.NoError(t, err)

	records := record.NewService(store.ClinicalRecords(), store.Patients(), store.Anamneses(), store.VitalSigns(), auditor, events)
	p := &model.Patient{Base: model.NewBase(time.Now()), FiscalCode: "RSSMRA80A01H501U", FirstName: "Mario", LastName: "Rossi"}
	require.NoError(t, store.Patients().Create(ctx, p))
	rec, err := records.CreateRecord(ctx, &model.CreateClinicalRecordRequest{PatientID: p.ID, Diagnosis: "epicondilite"})
	require.NoError(t, err)

	m := metrics.NewNop()
	return &fixture{
		svc:     NewService(store.Therapies(), types, records, auditor, events, m),
		store:   store,
		records: records,
		types:   types,
		record:  rec,
		metrics: m,
	}
}

func (f *fixture) tens(t *testing.T, sessions int) *model.Therapy {
	t.Helper()
	th, err := f.svc.CreateTherapy(context.Background(), &model.CreateTherapyRequest{
		ClinicalRecordID:   f.record.ID,
		TherapyType:        "TENS",
		PrescribedSessions: &sessions,
		Parameters:         json.RawMessage(`{"time":20,"type":"burst","district":"gomito"}`),
	})
	require.NoError(t, err)
	return th
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func completion(before, after int) *model.UpdateProgressRequest {
	status := model.SessionStatusCompleted
	return &model.UpdateProgressRequest{
		VASBefore:          intPtr(before),
		VASAfter:           intPtr(after),
		PatientSignature:   strPtr("patient-sig"),
		TherapistSignature: strPtr("therapist-sig"),
		Status:             &status,
	}
}

func TestCreateTherapyDefaults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	params := `{"sessions":6,"program":"P1","mode":"auto"}`
	th, err := f.svc.CreateTherapy(ctx, &model.CreateTherapyRequest{
		ClinicalRecordID: f.record.ID,
		TherapyType:      "LIMFATERAPY",
		Parameters:       json.RawMessage(params),
	})
	require.NoError(t, err)
	assert.Equal(t, model.TherapyStatusScheduled, th.Status)
	assert.Equal(t, 6, th.PrescribedSessions)
	assert.JSONEq(t, params, string(th.Parameters))

	sit, err := f.svc.CreateTherapy(ctx, &model.CreateTherapyRequest{
		ClinicalRecordID: f.record.ID,
		TherapyType:      "SIT",
		Parameters:       json.RawMessage(`{"district":"spalla","drug":"ialuronico"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, sit.PrescribedSessions)

	sessions, err := f.svc.ListSessions(ctx, th.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TherapiesCreated.WithLabelValues("LIMFATERAPY")))
}

func TestCreateTherapyRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateTherapy(ctx, &model.CreateTherapyRequest{ClinicalRecordID: f.record.ID, TherapyType: "CRYO", Parameters: json.RawMessage(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid therapy type")

	_, err = f.svc.CreateTherapy(ctx, &model.CreateTherapyRequest{ClinicalRecordID: f.record.ID, TherapyType: "TENS", Parameters: json.RawMessage(`{"time":20,"type":"burst"}`)})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrValidation, appErr.Code)
	require.NotEmpty(t, appErr.Fields)
	assert.Equal(t, "parameters.district", appErr.Fields[0].Field)

	_, err = f.svc.CreateTherapy(ctx, &model.CreateTherapyRequest{ClinicalRecordID: uuid.New(), TherapyType: "TENS", Parameters: json.RawMessage(`{"time":20,"type":"burst","district":"x"}`)})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))

	_, err = f.records.CloseRecord(ctx, f.record.ID)
	require.NoError(t, err)
	_, err = f.svc.CreateTherapy(ctx, &model.CreateTherapyRequest{ClinicalRecordID: f.record.ID, TherapyType: "TENS", Parameters: json.RawMessage(`{"time":20,"type":"burst","district":"x"}`)})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
	all, err := f.store.Therapies().ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSessionLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	th := f.tens(t, 2)

	first, err := f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, first.SessionNumber)
	assert.Equal(t, 20, first.Duration)

	detail, err := f.svc.GetTherapy(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TherapyStatusInProgress, detail.Status)
	require.NotNil(t, detail.StartDate)

	second, err := f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now(), Duration: 30})
	require.NoError(t, err)
	assert.Equal(t, 2, second.SessionNumber)

	_, err = f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum sessions reached")

	_, err = f.svc.UpdateProgress(ctx, first.ID, completion(7, 4))
	require.NoError(t, err)
	detail, err = f.svc.GetTherapy(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.CompletedSessions)
	assert.Equal(t, model.TherapyStatusInProgress, detail.Status)

	_, err = f.svc.UpdateProgress(ctx, first.ID, &model.UpdateProgressRequest{Notes: strPtr("edit")})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))

	_, err = f.svc.UpdateProgress(ctx, second.ID, completion(6, 5))
	require.NoError(t, err)
	detail, err = f.svc.GetTherapy(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.CompletedSessions)
	assert.Equal(t, model.TherapyStatusCompleted, detail.Status)

	vas, err := f.svc.VASImprovement(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, vas.Improvement)

	types := []string{}
	for _, e := range f.store.OutboxEvents() {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, model.EventTherapyCompleted)
	assert.Contains(t, types, model.EventSessionCompleted)
}

func TestCompletionRequiresSignatures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	th := f.tens(t, 3)
	session, err := f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	require.NoError(t, err)

	req := completion(5, 3)
	req.TherapistSignature = nil
	_, err = f.svc.UpdateProgress(ctx, session.ID, req)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	stored, err := f.store.Therapies().GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusScheduled, stored.Status)
	assert.Nil(t, stored.VASAfter)
}

func TestSessionChangesAreAudited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	th := f.tens(t, 2)
	session, err := f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	require.NoError(t, err)
	_, err = f.svc.CancelSession(ctx, session.ID, "influenza")
	require.NoError(t, err)

	var actions []string
	for _, l := range f.store.AuditLogs() {
		if l.EntityType == model.AuditEntitySession && l.EntityID == session.ID {
			actions = append(actions, l.Action)
		}
	}
	require.Len(t, actions, 2)
	assert.Equal(t, model.AuditActionCreate, actions[0])
}

func TestCancelRescheduleAndMissed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	th := f.tens(t, 3)

	a, err := f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	require.NoError(t, err)
	b, err := f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	require.NoError(t, err)

	newDate := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	moved, err := f.svc.RescheduleSession(ctx, a.ID, &model.RescheduleRequest{NewDate: newDate, Reason: "paziente malato"})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusRescheduled, moved.Status)
	assert.True(t, newDate.Equal(moved.SessionDate))
	assert.Contains(t, moved.Notes, "paziente malato")

	missed, err := f.svc.MarkMissed(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusMissed, missed.Status)

	cancelled, err := f.svc.CancelSession(ctx, a.ID, "non necessaria")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, cancelled.Status)

	_, err = f.svc.RescheduleSession(ctx, a.ID, &model.RescheduleRequest{NewDate: newDate})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))

	c, err := f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 3, c.SessionNumber)
}

func TestCancelTherapyStopsSessions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	th := f.tens(t, 3)
	s, err := f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelTherapy(ctx, th.ID, "interrotta")
	require.NoError(t, err)
	assert.Equal(t, model.TherapyStatusCancelled, cancelled.Status)

	sessions, err := f.svc.ListSessions(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, sessions[0].Status)

	_, err = f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
	_, err = f.svc.UpdateProgress(ctx, s.ID, completion(5, 2))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
	_, err = f.svc.CancelTherapy(ctx, th.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestDeleteTherapyRemovesSessions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	th := f.tens(t, 3)
	s, err := f.svc.ScheduleSession(ctx, &model.ScheduleSessionRequest{TherapyID: th.ID, SessionDate: time.Now()})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteTherapy(ctx, th.ID))
	_, err = f.store.Therapies().GetSession(ctx, s.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
	_, err = f.svc.GetTherapy(ctx, th.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestVASImprovementWithoutScores(t *testing.T) {
	f := setup(t)
	th := f.tens(t, 3)
	vas, err := f.svc.VASImprovement(context.Background(), th.ID)
	require.NoError(t, err)
	assert.Zero(t, vas.Improvement)
	assert.Zero(t, vas.ScoredSessions)
}

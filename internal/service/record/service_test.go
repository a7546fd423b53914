package record

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository/memory"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	"github.com/jwalitptl/physio-api/internal/service/event"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

func setup(t *testing.T) (*Service, *memory.Store, *model.Patient) {
	t.Helper()
	store := memory.NewStore()
	p := &model.Patient{Base: model.NewBase(time.Now()), FiscalCode: "RSSMRA80A01H501U", FirstName: "Mario", LastName: "Rossi"}
	require.NoError(t, store.Patients().Create(context.Background(), p))

	svc := NewService(store.ClinicalRecords(), store.Patients(), store.Anamneses(), store.VitalSigns(),
		audit.NewService(store.Audit()), event.NewEventService(store.Outbox()))
	return svc, store, p
}

func TestCreateRecordNumbersSequentially(t *testing.T) {
	svc, _, p := setup(t)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	accepted := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var last *model.ClinicalRecord
	for i := 0; i < 10; i++ {
		rec, err := svc.CreateRecord(ctx, &model.CreateClinicalRecordRequest{PatientID: p.ID, Diagnosis: "cervicalgia", AcceptanceDate: &accepted})
		require.NoError(t, err)
		last = rec
	}
	assert.Equal(t, "CR-2025-010", last.RecordNumber)
	assert.True(t, last.IsActive)
}

func TestCreateRecordNumbersByCreationYear(t *testing.T) {
	svc, _, p := setup(t)
	svc.now = func() time.Time { return time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	backdated := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.CreateRecord(ctx, &model.CreateClinicalRecordRequest{PatientID: p.ID, Diagnosis: "lombalgia", AcceptanceDate: &backdated})
	require.NoError(t, err)
	assert.Equal(t, "CR-2026-001", first.RecordNumber)
	assert.Equal(t, backdated, first.AcceptanceDate)

	second, err := svc.CreateRecord(ctx, &model.CreateClinicalRecordRequest{PatientID: p.ID, Diagnosis: "cervicalgia"})
	require.NoError(t, err)
	assert.Equal(t, "CR-2026-002", second.RecordNumber)
}

func TestCreateRecordRequiresLivePatient(t *testing.T) {
	svc, store, p := setup(t)
	ctx := context.Background()

	_, err := svc.CreateRecord(ctx, &model.CreateClinicalRecordRequest{PatientID: uuid.New(), Diagnosis: "x"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))

	require.NoError(t, store.Patients().SoftDelete(ctx, p.ID, time.Now()))
	_, err = svc.CreateRecord(ctx, &model.CreateClinicalRecordRequest{PatientID: p.ID, Diagnosis: "x"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestCloseAndReopen(t *testing.T) {
	svc, _, p := setup(t)
	ctx := context.Background()
	rec, err := svc.CreateRecord(ctx, &model.CreateClinicalRecordRequest{PatientID: p.ID, Diagnosis: "gonalgia"})
	require.NoError(t, err)

	first := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	closed, err := svc.CloseRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.Equal(t, first, *closed.ClosedAt)

	second := first.Add(2 * time.Hour)
	svc.now = func() time.Time { return second }
	closed, err = svc.CloseRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, second, *closed.ClosedAt)

	diagnosis := "updated"
	_, err = svc.UpdateRecord(ctx, rec.ID, &model.UpdateClinicalRecordRequest{Diagnosis: &diagnosis})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
	_, err = svc.AddAnamnesis(ctx, rec.ID, &model.CreateAnamnesisRequest{ChiefComplaint: "dolore"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))

	reopened, err := svc.ReopenRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, reopened.IsActive)
	assert.Nil(t, reopened.ClosedAt)

	_, err = svc.UpdateRecord(ctx, rec.ID, &model.UpdateClinicalRecordRequest{Diagnosis: &diagnosis})
	assert.NoError(t, err)
}

func TestSubResources(t *testing.T) {
	svc, _, p := setup(t)
	ctx := context.Background()
	rec, err := svc.CreateRecord(ctx, &model.CreateClinicalRecordRequest{PatientID: p.ID, Diagnosis: "lombalgia"})
	require.NoError(t, err)

	_, err = svc.AddAnamnesis(ctx, rec.ID, &model.CreateAnamnesisRequest{ChiefComplaint: "dolore lombare"})
	require.NoError(t, err)
	hr := 72
	_, err = svc.AddVitalSign(ctx, rec.ID, &model.CreateVitalSignRequest{HeartRate: &hr})
	require.NoError(t, err)

	anamneses, err := svc.ListAnamneses(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, anamneses, 1)

	signs, err := svc.ListVitalSigns(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, signs, 1)
	assert.Equal(t, 72, *signs[0].HeartRate)
}

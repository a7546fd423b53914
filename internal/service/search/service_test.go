package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

func seed(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	rossi := &model.Patient{Base: model.NewBase(now), FiscalCode: "RSSMRA80A01H501U", FirstName: "Mario", LastName: "Rossi"}
	bianchi := &model.Patient{Base: model.NewBase(now), FiscalCode: "ROSLCU85B41F205X", FirstName: "Lucia", LastName: "Bianchi"}
	require.NoError(t, store.Patients().Create(ctx, rossi))
	require.NoError(t, store.Patients().Create(ctx, bianchi))

	rec := &model.ClinicalRecord{Base: model.NewBase(now), PatientID: rossi.ID, AcceptanceDate: now, Diagnosis: "lombalgia", IsActive: true}
	require.NoError(t, store.ClinicalRecords().Create(ctx, rec))
	other := &model.ClinicalRecord{Base: model.NewBase(now), PatientID: bianchi.ID, AcceptanceDate: now, Diagnosis: "cervicalgia", IsActive: true}
	require.NoError(t, store.ClinicalRecords().Create(ctx, other))

	tens := &model.TherapyType{Base: model.NewBase(now), Code: model.ModalityTENS, Name: "TENS", IsActive: true}
	require.NoError(t, store.TherapyTypes().Create(ctx, tens))
	laser := &model.TherapyType{Base: model.NewBase(now), Code: model.ModalityLaserScan, Name: "Laser Scan", IsActive: true}
	require.NoError(t, store.TherapyTypes().Create(ctx, laser))

	require.NoError(t, store.Therapies().Create(ctx, &model.Therapy{Base: model.NewBase(now), ClinicalRecordID: rec.ID, TherapyTypeID: tens.ID, Modality: model.ModalityTENS, Status: model.TherapyStatusScheduled}))
	require.NoError(t, store.Therapies().Create(ctx, &model.Therapy{Base: model.NewBase(now), ClinicalRecordID: other.ID, TherapyTypeID: laser.ID, Modality: model.ModalityLaserScan, Status: model.TherapyStatusScheduled}))

	return NewService(store.Patients(), store.ClinicalRecords(), store.Therapies(), store.TherapyTypes()), store
}

func TestSearchByNameIgnoresFiscalCode(t *testing.T) {
	svc, _ := seed(t)

	res, err := svc.Search(context.Background(), "ros")
	require.NoError(t, err)
	require.Len(t, res.Patients, 1)
	assert.Equal(t, "Rossi", res.Patients[0].LastName)
	assert.Empty(t, res.ClinicalRecords)
	require.Len(t, res.Therapies, 1)
	assert.Equal(t, model.ModalityTENS, res.Therapies[0].Modality)
}

func TestSearchFullNameBothOrders(t *testing.T) {
	svc, _ := seed(t)
	for _, q := range []string{"mario rossi", "ROSSI MARIO"} {
		res, err := svc.Search(context.Background(), q)
		require.NoError(t, err)
		assert.Len(t, res.Patients, 1, q)
	}
}

func TestSearchRecordsAndTherapyTypes(t *testing.T) {
	svc, _ := seed(t)

	res, err := svc.Search(context.Background(), "CR-2025")
	require.NoError(t, err)
	assert.Len(t, res.ClinicalRecords, 2)
	assert.Len(t, res.Therapies, 2)

	res, err = svc.Search(context.Background(), "laser")
	require.NoError(t, err)
	assert.Empty(t, res.Patients)
	require.Len(t, res.Therapies, 1)
	assert.Equal(t, model.ModalityLaserScan, res.Therapies[0].Modality)
}

func TestSearchHidesTherapiesOfDeletedPatients(t *testing.T) {
	svc, store := seed(t)
	ctx := context.Background()

	patients, err := store.Patients().ListAll(ctx)
	require.NoError(t, err)
	for _, p := range patients {
		if p.LastName == "Rossi" {
			require.NoError(t, store.Patients().SoftDelete(ctx, p.ID, time.Now()))
		}
	}

	res, err := svc.Search(ctx, "tens")
	require.NoError(t, err)
	assert.Empty(t, res.Patients)
	assert.Empty(t, res.ClinicalRecords)
	assert.Empty(t, res.Therapies)

	res, err = svc.Search(ctx, "laser")
	require.NoError(t, err)
	assert.Len(t, res.Therapies, 1)
}

func TestSearchRejectsShortQuery(t *testing.T) {
	svc, _ := seed(t)
	_, err := svc.Search(context.Background(), " r ")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

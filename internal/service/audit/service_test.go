package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/internal/repository/memory"
)

func TestLogAttributesCallerAndClient(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Audit())

	userID := uuid.New()
	ctx := model.WithPrincipal(context.Background(), &model.Principal{UserID: userID, Role: model.RoleDoctor})
	ctx = model.WithRequestInfo(ctx, model.RequestInfo{IPAddress: "10.0.0.7", UserAgent: "curl/8"})

	entityID := uuid.New()
	svc.Log(ctx, model.AuditActionUpdate, model.AuditEntityPatient, entityID, map[string]string{"city": "Roma"})

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, userID, *logs[0].UserID)
	assert.Equal(t, "10.0.0.7", logs[0].IPAddress)
	assert.Equal(t, "curl/8", logs[0].UserAgent)
	assert.Equal(t, entityID, logs[0].EntityID)
	assert.JSONEq(t, `{"city":"Roma"}`, string(logs[0].Changes))
}

func TestLogAnonymousWithoutChanges(t *testing.T) {
	store := memory.NewStore()
	NewService(store.Audit()).Log(context.Background(), model.AuditActionLogin, model.AuditEntityUser, uuid.New(), nil)

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].UserID)
	assert.Empty(t, logs[0].Changes)
}

type failingRepo struct{ repository.AuditRepository }

func (failingRepo) Create(context.Context, *model.AuditLog) error { return errors.New("disk full") }

func TestLogSwallowsWriteErrors(t *testing.T) {
	svc := NewService(failingRepo{memory.NewStore().Audit()})
	assert.NotPanics(t, func() {
		svc.Log(context.Background(), model.AuditActionCreate, model.AuditEntityTherapy, uuid.New(), nil)
	})
}

func TestCleanupDeletesOlderEntries(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Audit())

	now := time.Now()
	svc.now = func() time.Time { return now.AddDate(0, 0, -100) }
	svc.Log(context.Background(), model.AuditActionCreate, model.AuditEntityPatient, uuid.New(), nil)
	svc.now = func() time.Time { return now }
	svc.Log(context.Background(), model.AuditActionCreate, model.AuditEntityPatient, uuid.New(), nil)

	n, err := svc.Cleanup(context.Background(), now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	logs, total, err := svc.List(context.Background(), &model.AuditFilters{Page: model.Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, logs, 1)
}

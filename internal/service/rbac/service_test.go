package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/physio-api/internal/model"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		role   model.Role
		action Action
		want   bool
	}{
		{model.RoleAdmin, AuditRead, true},
		{model.RoleDoctor, AuditRead, false},
		{model.RoleDoctor, RecordClose, true},
		{model.RoleTherapist, SessionWrite, true},
		{model.RoleTherapist, TherapyWrite, false},
		{model.RoleTherapist, PatientWrite, false},
		{model.RoleReceptionist, PatientWrite, true},
		{model.RoleReceptionist, RecordRead, false},
		{model.RoleReceptionist, Search, true},
		{model.RoleReceptionist, PatientDelete, false},
		{"NURSE", PatientRead, false},
		{model.RoleAdmin, "unknown:action", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.role, tt.action))
		})
	}
}

func TestAdminHoldsEveryPermission(t *testing.T) {
	assert.Len(t, Permissions(model.RoleAdmin), len(policy))
	assert.Equal(t, []Action{PatientRead, PatientWrite, Search, TherapyTypeRead}, Permissions(model.RoleReceptionist))
}

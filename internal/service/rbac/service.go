package rbac

import (
	"sort"

	"github.com/jwalitptl/physio-api/internal/model"
)

// Action names a permission checked by the policy middleware.
type Action string

const (
	PatientRead      Action = "patient:read"
	PatientWrite     Action = "patient:write"
	PatientDelete    Action = "patient:delete"
	RecordRead       Action = "record:read"
	RecordWrite      Action = "record:write"
	RecordClose      Action = "record:close"
	TherapyTypeRead  Action = "therapy_type:read"
	TherapyTypeWrite Action = "therapy_type:write"
	TherapyRead      Action = "therapy:read"
	TherapyWrite     Action = "therapy:write"
	SessionWrite     Action = "session:write"
	ReportRead       Action = "report:read"
	Search           Action = "search"
	UserAdmin        Action = "user:admin"
	AuditRead        Action = "audit:read"
)

var (
	admin        = model.RoleAdmin
	doctor       = model.RoleDoctor
	therapist    = model.RoleTherapist
	receptionist = model.RoleReceptionist
)

// policy is the single source of truth for who may do what.
var policy = map[Action][]model.Role{
	PatientRead:      {admin, doctor, therapist, receptionist},
	PatientWrite:     {admin, doctor, receptionist},
	PatientDelete:    {admin},
	RecordRead:       {admin, doctor, therapist},
	RecordWrite:      {admin, doctor},
	RecordClose:      {admin, doctor},
	TherapyTypeRead:  {admin, doctor, therapist, receptionist},
	TherapyTypeWrite: {admin},
	TherapyRead:      {admin, doctor, therapist},
	TherapyWrite:     {admin, doctor},
	SessionWrite:     {admin, doctor, therapist},
	ReportRead:       {admin, doctor, therapist},
	Search:           {admin, doctor, therapist, receptionist},
	UserAdmin:        {admin},
	AuditRead:        {admin},
}

// Allowed reports whether role may perform action. Unknown actions are denied.
func Allowed(role model.Role, action Action) bool {
	for _, r := range policy[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Permissions lists every action granted to role.
func Permissions(role model.Role) []Action {
	var out []Action
	for action := range policy {
		if Allowed(role, action) {
			out = append(out, action)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

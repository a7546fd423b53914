// Package memory holds in-process implementations of the repository
// interfaces used by service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

// Store backs every repository with maps guarded by one mutex.
type Store struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]model.Patient
	records      map[uuid.UUID]model.ClinicalRecord
	anamneses    []model.Anamnesis
	vitalSigns   []model.VitalSign
	therapyTypes map[uuid.UUID]model.TherapyType
	therapies    map[uuid.UUID]model.Therapy
	sessions     map[uuid.UUID]model.TherapySession
	users        map[uuid.UUID]model.User
	audit        []model.AuditLog
	outbox       []model.OutboxEvent
	revoked      map[string]time.Time
}

func NewStore() *Store {
	return &Store{
		patients:     map[uuid.UUID]model.Patient{},
		records:      map[uuid.UUID]model.ClinicalRecord{},
		therapyTypes: map[uuid.UUID]model.TherapyType{},
		therapies:    map[uuid.UUID]model.Therapy{},
		sessions:     map[uuid.UUID]model.TherapySession{},
		users:        map[uuid.UUID]model.User{},
		revoked:      map[string]time.Time{},
	}
}

func (s *Store) Patients() repository.PatientRepository               { return patientRepo{s} }
func (s *Store) ClinicalRecords() repository.ClinicalRecordRepository { return recordRepo{s} }
func (s *Store) Anamneses() repository.AnamnesisRepository            { return anamnesisRepo{s} }
func (s *Store) VitalSigns() repository.VitalSignRepository           { return vitalSignRepo{s} }
func (s *Store) TherapyTypes() repository.TherapyTypeRepository       { return therapyTypeRepo{s} }
func (s *Store) Therapies() repository.TherapyRepository              { return therapyRepo{s} }
func (s *Store) Users() repository.UserRepository                     { return userRepo{s} }
func (s *Store) Audit() repository.AuditRepository                    { return auditRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository                  { return outboxRepo{s} }
func (s *Store) Tokens() repository.TokenStore                        { return tokenStore{s} }

// AuditLogs returns a snapshot of written audit entries.
func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.audit...)
}

// OutboxEvents returns a snapshot of queued events.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.outbox...)
}

func window[T any](items []T, p model.Page) []T {
	if p.Limit <= 0 {
		return items
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type patientRepo struct{ s *Store }

func (r patientRepo) Create(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.patients {
		if strings.EqualFold(existing.FiscalCode, p.FiscalCode) {
			return apperrors.Conflict("a patient with this fiscal code already exists", nil)
		}
	}
	r.s.patients[p.ID] = *p
	return nil
}

func (r patientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok || p.DeletedAt != nil {
		return nil, apperrors.NotFound("patient", nil)
	}
	return &p, nil
}

func (r patientRepo) Update(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.patients[p.ID]
	if !ok || existing.DeletedAt != nil {
		return apperrors.NotFound("patient", nil)
	}
	for id, other := range r.s.patients {
		if id != p.ID && strings.EqualFold(other.FiscalCode, p.FiscalCode) {
			return apperrors.Conflict("a patient with this fiscal code already exists", nil)
		}
	}
	r.s.patients[p.ID] = *p
	return nil
}

func (r patientRepo) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok || p.DeletedAt != nil {
		return apperrors.NotFound("patient", nil)
	}
	p.DeletedAt = &at
	r.s.patients[id] = p
	return nil
}

func (r patientRepo) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	all, _ := r.ListAll(ctx)
	var matched []*model.Patient
	for _, p := range all {
		if filters.Search == "" || model.MatchesPatient(p, filters.Search) {
			matched = append(matched, p)
		}
	}
	return window(matched, filters.Page), len(matched), nil
}

func (r patientRepo) ListAll(_ context.Context) ([]*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Patient{}
	for _, p := range r.s.patients {
		if p.DeletedAt != nil {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName+out[i].FirstName < out[j].LastName+out[j].FirstName })
	return out, nil
}

type recordRepo struct{ s *Store }

func (r recordRepo) Create(_ context.Context, rec *model.ClinicalRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	year := rec.CreatedAt.Year()
	var existing []string
	for _, other := range r.s.records {
		existing = append(existing, other.RecordNumber)
	}
	rec.RecordNumber = model.NextRecordNumber(year, existing)
	r.s.records[rec.ID] = *rec
	return nil
}

func (r recordRepo) Get(_ context.Context, id uuid.UUID) (*model.ClinicalRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.records[id]
	if !ok {
		return nil, apperrors.NotFound("clinical record", nil)
	}
	return &rec, nil
}

func (r recordRepo) Update(_ context.Context, rec *model.ClinicalRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.records[rec.ID]; !ok {
		return apperrors.NotFound("clinical record", nil)
	}
	r.s.records[rec.ID] = *rec
	return nil
}

func (r recordRepo) List(_ context.Context, filters *model.RecordFilters) ([]*model.ClinicalRecord, int, error) {
	r.s.mu.Lock()
	all := []*model.ClinicalRecord{}
	for _, rec := range r.s.records {
		if filters.PatientID != nil && rec.PatientID != *filters.PatientID {
			continue
		}
		if filters.Active != nil && rec.IsActive != *filters.Active {
			continue
		}
		rec := rec
		all = append(all, &rec)
	}
	r.s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].RecordNumber > all[j].RecordNumber })
	return window(all, filters.Page), len(all), nil
}

func (r recordRepo) ListAll(_ context.Context) ([]*model.ClinicalRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.ClinicalRecord{}
	for _, rec := range r.s.records {
		if p, ok := r.s.patients[rec.PatientID]; ok && p.DeletedAt != nil {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordNumber < out[j].RecordNumber })
	return out, nil
}

type anamnesisRepo struct{ s *Store }

func (r anamnesisRepo) Create(_ context.Context, a *model.Anamnesis) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.anamneses = append(r.s.anamneses, *a)
	return nil
}

func (r anamnesisRepo) ListByRecord(_ context.Context, recordID uuid.UUID) ([]*model.Anamnesis, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Anamnesis{}
	for _, a := range r.s.anamneses {
		if a.ClinicalRecordID == recordID {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

type vitalSignRepo struct{ s *Store }

func (r vitalSignRepo) Create(_ context.Context, v *model.VitalSign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.vitalSigns = append(r.s.vitalSigns, *v)
	return nil
}

func (r vitalSignRepo) ListByRecord(_ context.Context, recordID uuid.UUID) ([]*model.VitalSign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.VitalSign{}
	for _, v := range r.s.vitalSigns {
		if v.ClinicalRecordID == recordID {
			v := v
			out = append(out, &v)
		}
	}
	return out, nil
}

type therapyTypeRepo struct{ s *Store }

func (r therapyTypeRepo) Create(_ context.Context, t *model.TherapyType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.therapyTypes {
		if existing.Code == t.Code {
			return apperrors.Conflict("therapy type "+string(t.Code)+" already exists", nil)
		}
	}
	r.s.therapyTypes[t.ID] = *t
	return nil
}

func (r therapyTypeRepo) Get(_ context.Context, id uuid.UUID) (*model.TherapyType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.therapyTypes[id]
	if !ok {
		return nil, apperrors.NotFound("therapy type", nil)
	}
	return &t, nil
}

func (r therapyTypeRepo) GetByCode(_ context.Context, code model.Modality) (*model.TherapyType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.therapyTypes {
		if t.Code == code {
			t := t
			return &t, nil
		}
	}
	return nil, apperrors.NotFound("therapy type", nil)
}

func (r therapyTypeRepo) Update(_ context.Context, t *model.TherapyType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.therapyTypes[t.ID]; !ok {
		return apperrors.NotFound("therapy type", nil)
	}
	r.s.therapyTypes[t.ID] = *t
	return nil
}

func (r therapyTypeRepo) List(_ context.Context, filters *model.TherapyTypeFilters) ([]*model.TherapyType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.TherapyType{}
	for _, t := range r.s.therapyTypes {
		if filters != nil && filters.Category != "" && t.Category != filters.Category {
			continue
		}
		if filters != nil && filters.Active != nil && t.IsActive != *filters.Active {
			continue
		}
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r therapyTypeRepo) CountOpenTherapies(_ context.Context, id uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.therapies {
		if t.TherapyTypeID == id && t.Status.IsOpen() {
			n++
		}
	}
	return n, nil
}

type therapyRepo struct{ s *Store }

func (r therapyRepo) Create(_ context.Context, t *model.Therapy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.therapies[t.ID] = *t
	return nil
}

func (r therapyRepo) Get(_ context.Context, id uuid.UUID) (*model.Therapy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.therapies[id]
	if !ok {
		return nil, apperrors.NotFound("therapy", nil)
	}
	return &t, nil
}

func (r therapyRepo) List(ctx context.Context, filters *model.TherapyFilters) ([]*model.Therapy, int, error) {
	all, _ := r.ListAll(ctx)
	var matched []*model.Therapy
	for _, t := range all {
		if filters.ClinicalRecordID != nil && t.ClinicalRecordID != *filters.ClinicalRecordID {
			continue
		}
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		matched = append(matched, t)
	}
	return window(matched, filters.Page), len(matched), nil
}

func (r therapyRepo) ListAll(_ context.Context) ([]*model.Therapy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Therapy{}
	for _, t := range r.s.therapies {
		if rec, ok := r.s.records[t.ClinicalRecordID]; ok {
			if p, ok := r.s.patients[rec.PatientID]; ok && p.DeletedAt != nil {
				continue
			}
		}
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r therapyRepo) ListSessions(_ context.Context, therapyID uuid.UUID) ([]*model.TherapySession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sessionsLocked(therapyID), nil
}

func (r therapyRepo) sessionsLocked(therapyID uuid.UUID) []*model.TherapySession {
	out := []*model.TherapySession{}
	for _, s := range r.s.sessions {
		if s.TherapyID == therapyID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionNumber < out[j].SessionNumber })
	return out
}

func (r therapyRepo) GetSession(_ context.Context, sessionID uuid.UUID) (*model.TherapySession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, apperrors.NotFound("therapy session", nil)
	}
	return &s, nil
}

// Mutate applies fn to copies and writes them back only when fn succeeds.
func (r therapyRepo) Mutate(_ context.Context, therapyID uuid.UUID, fn func(*model.TherapyAggregate) error) (*model.TherapyAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.therapies[therapyID]
	if !ok {
		return nil, apperrors.NotFound("therapy", nil)
	}
	ag := model.NewTherapyAggregate(&t, r.sessionsLocked(therapyID))
	if err := fn(ag); err != nil {
		return nil, err
	}
	for _, s := range ag.Added() {
		r.s.sessions[s.ID] = *s
	}
	for _, s := range ag.Changed() {
		r.s.sessions[s.ID] = *s
	}
	r.s.therapies[therapyID] = *ag.Therapy
	return ag, nil
}

func (r therapyRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.therapies[id]; !ok {
		return apperrors.NotFound("therapy", nil)
	}
	for sid, s := range r.s.sessions {
		if s.TherapyID == id {
			delete(r.s.sessions, sid)
		}
	}
	delete(r.s.therapies, id)
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return apperrors.Conflict("a user with this email already exists", nil)
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == strings.ToLower(email) {
			u := u
			return &u, nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}

func (r userRepo) Update(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return apperrors.NotFound("user", nil)
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) List(_ context.Context, filters *model.UserFilters) ([]*model.User, int, error) {
	r.s.mu.Lock()
	all := []*model.User{}
	for _, u := range r.s.users {
		if filters.Role != "" && u.Role != filters.Role {
			continue
		}
		u := u
		all = append(all, &u)
	}
	r.s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	return window(all, filters.Page), len(all), nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(_ context.Context, log *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *log)
	return nil
}

func (r auditRepo) List(_ context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int, error) {
	r.s.mu.Lock()
	all := []*model.AuditLog{}
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		l := r.s.audit[i]
		if filters.EntityType != "" && l.EntityType != filters.EntityType {
			continue
		}
		if filters.Action != "" && l.Action != filters.Action {
			continue
		}
		if filters.EntityID != nil && l.EntityID != *filters.EntityID {
			continue
		}
		if filters.UserID != nil && (l.UserID == nil || *l.UserID != *filters.UserID) {
			continue
		}
		if filters.From != nil && l.CreatedAt.Before(*filters.From) {
			continue
		}
		if filters.To != nil && l.CreatedAt.After(*filters.To) {
			continue
		}
		all = append(all, &l)
	}
	r.s.mu.Unlock()
	return window(all, filters.Page), len(all), nil
}

func (r auditRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.audit[:0]
	var n int64
	for _, l := range r.s.audit {
		if l.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.s.audit = kept
	return n, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.outbox = append(r.s.outbox, *e)
	return nil
}

func (r outboxRepo) ClaimPending(ctx context.Context, limit int, fn func(repository.OutboxTx, []*model.OutboxEvent) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var claimed []*model.OutboxEvent
	for i := range r.s.outbox {
		e := r.s.outbox[i]
		if e.Status == model.OutboxStatusProcessed || (e.RetryAt != nil && e.RetryAt.After(now)) {
			continue
		}
		claimed = append(claimed, &e)
		if len(claimed) == limit {
			break
		}
	}
	if len(claimed) == 0 {
		return nil
	}
	return fn(outboxTx{r.s}, claimed)
}

func (r outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.outbox[:0]
	var n int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return n, nil
}

// outboxTx runs with the store lock already held by ClaimPending.
type outboxTx struct{ s *Store }

func (o outboxTx) update(id uuid.UUID, fn func(*model.OutboxEvent)) {
	for i := range o.s.outbox {
		if o.s.outbox[i].ID == id {
			fn(&o.s.outbox[i])
		}
	}
}

func (o outboxTx) MarkProcessed(_ context.Context, id uuid.UUID) error {
	now := time.Now()
	o.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		e.ErrorMessage = nil
	})
	return nil
}

func (o outboxTx) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	o.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.RetryCount++
		e.RetryAt = &retryAt
	})
	return nil
}

func (o outboxTx) MoveToDeadLetter(_ context.Context, evt *model.OutboxEvent) error {
	kept := o.s.outbox[:0]
	for _, e := range o.s.outbox {
		if e.ID != evt.ID {
			kept = append(kept, e)
		}
	}
	o.s.outbox = kept
	return nil
}

type tokenStore struct{ s *Store }

func (t tokenStore) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.revoked[tokenID] = time.Now().Add(ttl)
	return nil
}

func (t tokenStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	until, ok := t.s.revoked[tokenID]
	return ok && time.Now().Before(until), nil
}

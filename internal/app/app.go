// Package app wires repositories into services and HTTP handlers.
package app

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/physio-api/internal/email"
	audithandler "github.com/jwalitptl/physio-api/internal/handler/audit"
	authhandler "github.com/jwalitptl/physio-api/internal/handler/auth"
	"github.com/jwalitptl/physio-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/physio-api/internal/handler/patient"
	promhandler "github.com/jwalitptl/physio-api/internal/handler/prometheus"
	recordhandler "github.com/jwalitptl/physio-api/internal/handler/record"
	searchhandler "github.com/jwalitptl/physio-api/internal/handler/search"
	therapyhandler "github.com/jwalitptl/physio-api/internal/handler/therapy"
	therapytypehandler "github.com/jwalitptl/physio-api/internal/handler/therapytype"
	userhandler "github.com/jwalitptl/physio-api/internal/handler/user"
	"github.com/jwalitptl/physio-api/internal/middleware"
	"github.com/jwalitptl/physio-api/internal/report"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/internal/repository/postgres"
	"github.com/jwalitptl/physio-api/internal/router"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	authservice "github.com/jwalitptl/physio-api/internal/service/auth"
	"github.com/jwalitptl/physio-api/internal/service/event"
	"github.com/jwalitptl/physio-api/internal/service/patient"
	"github.com/jwalitptl/physio-api/internal/service/record"
	reportservice "github.com/jwalitptl/physio-api/internal/service/report"
	"github.com/jwalitptl/physio-api/internal/service/search"
	"github.com/jwalitptl/physio-api/internal/service/therapy"
	"github.com/jwalitptl/physio-api/internal/service/therapytype"
	"github.com/jwalitptl/physio-api/internal/service/user"
	"github.com/jwalitptl/physio-api/pkg/auth"
	"github.com/jwalitptl/physio-api/pkg/metrics"
	"github.com/jwalitptl/physio-api/pkg/security"
)

// Repositories is the full persistence surface of the API.
type Repositories struct {
	Patients     repository.PatientRepository
	Records      repository.ClinicalRecordRepository
	Anamneses    repository.AnamnesisRepository
	VitalSigns   repository.VitalSignRepository
	TherapyTypes repository.TherapyTypeRepository
	Therapies    repository.TherapyRepository
	Users        repository.UserRepository
	Audit        repository.AuditRepository
	Outbox       repository.OutboxRepository
	Tokens       repository.TokenStore
}

// PostgresRepositories builds every repository on one shared pool. Revoked
// tokens live in Redis and are passed in.
func PostgresRepositories(db *sqlx.DB, enc security.Encryptor, tokens repository.TokenStore) Repositories {
	base := postgres.NewBaseRepository(db)
	return Repositories{
		Patients:     postgres.NewPatientRepository(base),
		Records:      postgres.NewClinicalRecordRepository(base),
		Anamneses:    postgres.NewAnamnesisRepository(base),
		VitalSigns:   postgres.NewVitalSignRepository(base),
		TherapyTypes: postgres.NewTherapyTypeRepository(base),
		Therapies:    postgres.NewTherapyRepository(base, enc),
		Users:        postgres.NewUserRepository(base),
		Audit:        postgres.NewAuditRepository(base),
		Outbox:       postgres.NewOutboxRepository(base),
		Tokens:       tokens,
	}
}

type Options struct {
	JWT          auth.Config
	BcryptCost   int
	CatalogTTL   time.Duration
	Letterhead   report.Letterhead
	Mailer       email.Service
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
	Namespace    string
	Health       health.Pinger
	RouterConfig router.Config
}

// Services holds every domain service.
type Services struct {
	Audit        *audit.Service
	Events       *event.EventService
	Auth         *authservice.Service
	Users        *user.Service
	Patients     *patient.Service
	Records      *record.Service
	TherapyTypes *therapytype.Service
	Therapies    *therapy.Service
	Search       *search.Service
	Reports      *reportservice.Service
}

func NewServices(repos Repositories, opts Options) *Services {
	hasher := security.NewBcryptHasher(opts.BcryptCost)
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}

	auditor := audit.NewService(repos.Audit)
	events := event.NewEventService(repos.Outbox)
	catalog := therapytype.NewService(repos.TherapyTypes, auditor, opts.CatalogTTL)
	records := record.NewService(repos.Records, repos.Patients, repos.Anamneses, repos.VitalSigns, auditor, events)

	return &Services{
		Audit:        auditor,
		Events:       events,
		Auth:         authservice.NewService(repos.Users, auth.NewJWTManager(opts.JWT), repos.Tokens, hasher, auditor),
		Users:        user.NewService(repos.Users, hasher, auditor),
		Patients:     patient.NewService(repos.Patients, auditor, events),
		Records:      records,
		TherapyTypes: catalog,
		Therapies:    therapy.NewService(repos.Therapies, catalog, records, auditor, events, m),
		Search:       search.NewService(repos.Patients, repos.Records, repos.Therapies, repos.TherapyTypes),
		Reports: reportservice.NewService(reportservice.Deps{
			Patients:     repos.Patients,
			Records:      repos.Records,
			Anamneses:    repos.Anamneses,
			VitalSigns:   repos.VitalSigns,
			Therapies:    repos.Therapies,
			TherapyTypes: repos.TherapyTypes,
			Renderer:     report.NewRenderer(opts.Letterhead),
			Mailer:       opts.Mailer,
			Metrics:      m,
		}),
	}
}

// Handlers builds the HTTP handlers for svc.
func Handlers(svc *Services, opts Options) router.Handlers {
	h := router.Handlers{
		Auth:         authhandler.NewHandler(svc.Auth),
		Users:        userhandler.NewHandler(svc.Users),
		Patients:     patienthandler.NewHandler(svc.Patients),
		Records:      recordhandler.NewHandler(svc.Records, svc.Reports),
		TherapyTypes: therapytypehandler.NewHandler(svc.TherapyTypes),
		Therapies:    therapyhandler.NewHandler(svc.Therapies, svc.Reports),
		Search:       searchhandler.NewHandler(svc.Search),
		Audit:        audithandler.NewHandler(svc.Audit),
	}
	if opts.Health != nil {
		h.Health = health.NewHandler(opts.Health)
	}
	if opts.Registry != nil {
		h.Metrics = promhandler.New(opts.Registry, opts.Namespace)
	}
	return h
}

// NewEngine wires repos all the way up to a ready gin engine.
func NewEngine(repos Repositories, opts Options) (*Services, *router.Router) {
	svc := NewServices(repos, opts)
	r := router.New(opts.RouterConfig, middleware.NewAuthMiddleware(svc.Auth), Handlers(svc, opts))
	return svc, r
}

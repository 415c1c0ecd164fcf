package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/roster"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// InventoryServiceDeps captures dependencies for constructing an inventory service.
type InventoryServiceDeps struct {
	Store       application.InventoryStore
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewInventoryService builds an inventory service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewInventoryService(deps InventoryServiceDeps) *application.InventoryService {
	return application.NewInventoryServiceWithLogger(
		deps.Store,
		f.idGen(deps.IDGenerator),
		f.now(deps.Now),
		deps.Logger,
	)
}

// LedgerDeps captures dependencies for constructing a ledger.
type LedgerDeps struct {
	Store       application.LedgerStore
	IDGenerator func() string
	Now         func() time.Time
	LockWait    time.Duration
	Metrics     application.Metrics
	Logger      *slog.Logger
}

// NewLedger builds a ledger using the supplied dependencies.
func (f *ServiceFactory) NewLedger(deps LedgerDeps) *application.Ledger {
	return application.NewLedgerWithOptions(
		deps.Store,
		f.idGen(deps.IDGenerator),
		f.now(deps.Now),
		application.LedgerOptions{
			LockWait: deps.LockWait,
			Metrics:  deps.Metrics,
			Logger:   deps.Logger,
		},
	)
}

// AssignmentServiceDeps captures dependencies for constructing an assignment service.
type AssignmentServiceDeps struct {
	Ledger *application.Ledger
	Roster roster.Provider
	Logger *slog.Logger
}

// NewAssignmentService builds a manual assignment service.
func (f *ServiceFactory) NewAssignmentService(deps AssignmentServiceDeps) *application.AssignmentService {
	return application.NewAssignmentServiceWithLogger(deps.Ledger, deps.Roster, deps.Logger)
}

// AutoAssignServiceDeps captures dependencies for constructing an auto-assign service.
type AutoAssignServiceDeps struct {
	Store        application.AutoAssignStore
	Roster       roster.Provider
	Ledger       *application.Ledger
	IDGenerator  func() string
	Now          func() time.Time
	CommitFanOut int
	Metrics      application.Metrics
	Logger       *slog.Logger
}

// NewAutoAssignService builds an auto-assign service using the supplied dependencies.
func (f *ServiceFactory) NewAutoAssignService(deps AutoAssignServiceDeps) *application.AutoAssignService {
	return application.NewAutoAssignServiceWithOptions(
		deps.Store,
		deps.Roster,
		deps.Ledger,
		f.idGen(deps.IDGenerator),
		f.now(deps.Now),
		application.AutoAssignOptions{
			CommitFanOut: deps.CommitFanOut,
			Metrics:      deps.Metrics,
			Logger:       deps.Logger,
		},
	)
}

// Services bundles every application service over one store and roster.
type Services struct {
	Inventory   *application.InventoryService
	Ledger      *application.Ledger
	Assignments *application.AssignmentService
	AutoAssign  *application.AutoAssignService
}

// NewServices wires every service over the harness store and the given roster.
func (f *ServiceFactory) NewServices(h *StoreHarness, provider roster.Provider) Services {
	logger := DiscardLogger()
	ledger := f.NewLedger(LedgerDeps{Store: h.Store, Logger: logger})
	return Services{
		Inventory:   f.NewInventoryService(InventoryServiceDeps{Store: h.Store, Logger: logger}),
		Ledger:      ledger,
		Assignments: f.NewAssignmentService(AssignmentServiceDeps{Ledger: ledger, Roster: provider, Logger: logger}),
		AutoAssign: f.NewAutoAssignService(AutoAssignServiceDeps{
			Store:  h.Store,
			Roster: provider,
			Ledger: ledger,
			Logger: logger,
		}),
	}
}

func (f *ServiceFactory) idGen(override func() string) func() string {
	if override != nil {
		return override
	}
	return f.IDGenerator.NextFunc()
}

func (f *ServiceFactory) now(override func() time.Time) func() time.Time {
	if override != nil {
		return override
	}
	return f.Clock.NowFunc()
}

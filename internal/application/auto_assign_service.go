package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
	"github.com/example/housing-allocator/internal/planner"
	"github.com/example/housing-allocator/internal/roster"
	"golang.org/x/sync/errgroup"
)

// DefaultCommitFanOut bounds how many rooms an auto-assign run commits at once.
const DefaultCommitFanOut = 4

// AutoAssignStore captures the persistence operations the planner needs.
type AutoAssignStore interface {
	InventoryStore
	ListAssignments(ctx context.Context) ([]housing.Assignment, error)
}

// AutoAssignOptions tunes an AutoAssignService. Zero values select defaults.
type AutoAssignOptions struct {
	CommitFanOut int
	JobTTL       time.Duration
	MaxJobs      int
	Metrics      Metrics
	Logger       *slog.Logger
}

// AutoAssignService plans batch placements from the roster and commits them
// through the ledger.
type AutoAssignService struct {
	store       AutoAssignStore
	roster      roster.Provider
	ledger      *Ledger
	idGenerator func() string
	now         func() time.Time
	fanOut      int
	jobs        *jobRegistry
	metrics     Metrics
	logger      *slog.Logger
}

// NewAutoAssignService constructs an auto-assign service with default options.
func NewAutoAssignService(store AutoAssignStore, provider roster.Provider, ledger *Ledger, idGenerator func() string, now func() time.Time) *AutoAssignService {
	return NewAutoAssignServiceWithOptions(store, provider, ledger, idGenerator, now, AutoAssignOptions{})
}

// NewAutoAssignServiceWithOptions constructs an auto-assign service with the given options.
func NewAutoAssignServiceWithOptions(store AutoAssignStore, provider roster.Provider, ledger *Ledger, idGenerator func() string, now func() time.Time, opts AutoAssignOptions) *AutoAssignService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	fanOut := opts.CommitFanOut
	if fanOut <= 0 {
		fanOut = DefaultCommitFanOut
	}
	return &AutoAssignService{
		store:       store,
		roster:      provider,
		ledger:      ledger,
		idGenerator: idGenerator,
		now:         now,
		fanOut:      fanOut,
		jobs:        newJobRegistry(opts.JobTTL, opts.MaxJobs, now),
		metrics:     metricsOrNop(opts.Metrics),
		logger:      defaultLogger(opts.Logger),
	}
}

func (s *AutoAssignService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AutoAssignService", operation, attrs...)
}

// Run plans the request and, unless it is a dry run, commits the proposals.
// Rejected proposals become skips with an error line; committed beds stay
// committed when later ones fail. A cancelled context stops further
// submissions and marks the result cancelled.
func (s *AutoAssignService) Run(ctx context.Context, req AutoAssignRequest) (result AutoAssignResult, err error) {
	if s == nil || s.store == nil || s.roster == nil || s.ledger == nil {
		err = fmt.Errorf("AutoAssignService is not configured")
		return
	}

	if req.Strategy == "" {
		req.Strategy = planner.FillRooms
	}
	if vErr := validateAutoAssign(req); vErr.HasErrors() {
		err = vErr
		return
	}

	started := s.now()
	logger := s.loggerWith(ctx, "Run",
		"strategy", string(req.Strategy),
		"gender", string(req.Gender),
		"category", string(req.Category),
		"dry_run", req.DryRun,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to auto-assign", "error", err, "error_kind", ErrorKind(err))
			return
		}
		elapsed := s.now().Sub(started)
		if !req.DryRun {
			s.metrics.PlannerRun(string(req.Strategy), result.Assigned, result.Skipped, elapsed)
		}
		logger.With(
			"assigned", result.Assigned,
			"skipped", result.Skipped,
			"errors", len(result.Errors),
			"cancelled", result.Cancelled,
			"elapsed", elapsed,
		).InfoContext(ctx, "auto-assign finished")
	}()

	var input planner.Input
	input, err = s.snapshot(ctx, req)
	if err != nil {
		return
	}
	plan := planner.Build(input)

	for _, skip := range plan.Skips {
		result.Skipped += skip.Beds
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", skip.Participant.Label(), skip.Reason))
	}

	if req.DryRun {
		result.Assigned = plan.ProposedBeds()
		result.Proposals = make([]ProposedAssignment, 0, len(plan.Proposals))
		for _, p := range plan.Proposals {
			result.Proposals = append(result.Proposals, proposedAssignment(p))
		}
		return
	}

	s.commit(ctx, plan.Proposals, &result)
	return
}

// snapshot reads the rooms, the roster and the ledger into a planner input.
func (s *AutoAssignService) snapshot(ctx context.Context, req AutoAssignRequest) (planner.Input, error) {
	views, err := listRoomViews(ctx, s.store, persistence.RoomFilter{
		BuildingIDs:   req.BuildingIDs,
		OnlyAvailable: true,
		BedRoomsOnly:  true,
	})
	if err != nil {
		return planner.Input{}, mapInventoryRepoError(err)
	}

	participants, err := s.roster.Participants(ctx, roster.Filter{
		Gender:   req.Gender,
		Category: req.Category,
		ParishID: req.ParishID,
	})
	if err != nil {
		return planner.Input{}, err
	}

	assignments, err := s.store.ListAssignments(ctx)
	if err != nil {
		return planner.Input{}, mapLedgerRepoError(err)
	}

	held := make(map[housing.ParticipantRef]int, len(assignments))
	occupants := make([]planner.Occupant, 0, len(assignments))
	for _, a := range assignments {
		held[a.Ref] += a.Beds
		occupant := planner.Occupant{RoomID: a.RoomID, ParishID: a.ParishID}
		if a.Ref.Kind == housing.RefIndividual {
			occupant.Name = a.Label
		}
		occupants = append(occupants, occupant)
	}

	demands := make([]planner.Demand, 0, len(participants))
	for _, p := range participants {
		if beds := p.Headcount() - held[p.Ref()]; beds > 0 {
			demands = append(demands, planner.Demand{Participant: p, Beds: beds})
		}
	}

	return planner.Input{
		Strategy:                req.Strategy,
		Demands:                 demands,
		Rooms:                   views,
		Occupants:               occupants,
		HonorRoommatePreference: req.HonorRoommatePreference,
	}, nil
}

type roomOutcome struct {
	assigned  int
	skipped   int
	errors    []string
	cancelled bool
}

// commit submits proposals room by room. Rooms run in parallel up to the
// fan-out bound; proposals of one room run in plan order.
func (s *AutoAssignService) commit(ctx context.Context, proposals []planner.Proposal, result *AutoAssignResult) {
	var (
		order  []string
		byRoom = make(map[string][]planner.Proposal)
	)
	for _, p := range proposals {
		if _, ok := byRoom[p.RoomID]; !ok {
			order = append(order, p.RoomID)
		}
		byRoom[p.RoomID] = append(byRoom[p.RoomID], p)
	}

	outcomes := make([]roomOutcome, len(order))
	var g errgroup.Group
	g.SetLimit(s.fanOut)
	for i, roomID := range order {
		if ctx.Err() != nil {
			outcomes[i].cancelled = true
			continue
		}
		g.Go(func() error {
			outcomes[i] = s.commitRoom(ctx, byRoom[roomID])
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		result.Assigned += o.assigned
		result.Skipped += o.skipped
		result.Errors = append(result.Errors, o.errors...)
		result.Cancelled = result.Cancelled || o.cancelled
	}
}

func (s *AutoAssignService) commitRoom(ctx context.Context, proposals []planner.Proposal) roomOutcome {
	var out roomOutcome
	for _, p := range proposals {
		if ctx.Err() != nil {
			out.cancelled = true
			return out
		}
		_, err := s.ledger.Assign(ctx, p.RoomID, p.Participant, p.Beds, housing.SourceAuto)
		if err == nil {
			out.assigned += p.Beds
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			out.cancelled = true
			return out
		}
		out.skipped += p.Beds
		out.errors = append(out.errors, fmt.Sprintf("%s → room %s: %s", p.Participant.Label(), p.RoomNumber, rejectionReason(err)))
	}
	return out
}

func rejectionReason(err error) string {
	var rejection *housing.RejectionError
	if errors.As(err, &rejection) {
		if rejection.Detail != "" {
			return fmt.Sprintf("%v (%s)", rejection.Reason, rejection.Detail)
		}
		return rejection.Reason.Error()
	}
	return err.Error()
}

func proposedAssignment(p planner.Proposal) ProposedAssignment {
	return ProposedAssignment{
		RoomID:      p.RoomID,
		RoomNumber:  p.RoomNumber,
		Participant: p.Participant.Ref(),
		Label:       p.Participant.Label(),
		Beds:        p.Beds,
	}
}

func validateAutoAssign(req AutoAssignRequest) *ValidationError {
	vErr := &ValidationError{}
	if _, err := planner.ParseStrategy(string(req.Strategy)); err != nil {
		vErr.add("strategy", "strategy must be fill_rooms, balance_rooms or parish_together")
	}
	if req.Gender != "" && !req.Gender.ValidForParticipant() {
		vErr.add("gender", "gender must be male or female")
	}
	if req.Category != "" && !req.Category.Valid() {
		vErr.add("category", "category must be youth, adult or clergy")
	}
	for i, id := range req.BuildingIDs {
		if strings.TrimSpace(id) == "" {
			vErr.add(fmt.Sprintf("building_ids[%d]", i), "building id cannot be empty")
		}
	}
	return vErr
}

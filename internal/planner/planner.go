// Package planner computes auto-assign proposals. It is pure: it sees a
// snapshot of rooms and participants and returns where each bed should go,
// leaving the commit to the assignment ledger.
package planner

import (
	"fmt"
	"strings"

	"github.com/example/housing-allocator/internal/housing"
)

// Strategy selects how participants are spread over rooms.
type Strategy string

const (
	FillRooms      Strategy = "fill_rooms"
	BalanceRooms   Strategy = "balance_rooms"
	ParishTogether Strategy = "parish_together"
)

// ParseStrategy normalises a strategy name.
func ParseStrategy(value string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case FillRooms, BalanceRooms, ParishTogether:
		return s, nil
	}
	return "", fmt.Errorf("planner: unknown strategy %q", value)
}

// Demand is a participant and the beds it still needs.
type Demand struct {
	Participant housing.Participant
	Beds        int
}

// Occupant is someone the ledger already houses. Names feed roommate matching,
// parish ids feed parish grouping.
type Occupant struct {
	Name     string
	RoomID   string
	ParishID string
}

// Input is the snapshot a plan is computed from.
type Input struct {
	Strategy  Strategy
	Demands   []Demand
	Rooms     []housing.RoomView
	Occupants []Occupant
	// HonorRoommatePreference places an individual next to the person it names
	// when that room is eligible and has space.
	HonorRoommatePreference bool
}

// Proposal puts Beds of Participant into RoomID.
type Proposal struct {
	RoomID      string
	RoomNumber  string
	Participant housing.Participant
	Beds        int
}

// Skip records beds no eligible room could take.
type Skip struct {
	Participant housing.Participant
	Beds        int
	Reason      string
}

// Plan is the outcome of Build.
type Plan struct {
	Proposals []Proposal
	Skips     []Skip
}

// ProposedBeds sums the beds of all proposals.
func (p Plan) ProposedBeds() int {
	total := 0
	for _, proposal := range p.Proposals {
		total += proposal.Beds
	}
	return total
}

// SkippedBeds sums the beds of all skips.
func (p Plan) SkippedBeds() int {
	total := 0
	for _, skip := range p.Skips {
		total += skip.Beds
	}
	return total
}

const reasonNoBed = "no eligible room with free beds"

// Build computes a plan. Unknown strategies fall back to fill_rooms.
func Build(in Input) Plan {
	b := newBoard(in.Rooms, in.Occupants)
	p := &planning{board: b, honorRoommates: in.HonorRoommatePreference}

	switch in.Strategy {
	case BalanceRooms:
		for _, d := range in.Demands {
			p.place(d, p.balance)
		}
	case ParishTogether:
		p.parishTogether(in.Demands)
	default:
		for _, d := range in.Demands {
			p.place(d, p.fill)
		}
	}
	return p.plan
}

// placer puts up to d.Beds of d into rooms and returns the beds it could not place.
type placer func(d Demand) int

type planning struct {
	board          *board
	honorRoommates bool
	plan           Plan
}

func (p *planning) place(d Demand, strategy placer) {
	if d.Beds <= 0 {
		return
	}
	if p.placeWithRoommate(d) {
		return
	}
	if rest := strategy(d); rest > 0 {
		p.plan.Skips = append(p.plan.Skips, Skip{Participant: d.Participant, Beds: rest, Reason: reasonNoBed})
	}
}

func (p *planning) placeWithRoommate(d Demand) bool {
	if !p.honorRoommates {
		return false
	}
	individual, ok := d.Participant.(housing.Individual)
	if !ok || strings.TrimSpace(individual.RoommatePreference) == "" {
		return false
	}
	slot := p.board.roomOf(individual.RoommatePreference)
	if slot == nil || !slot.admits(individual.Traits) || slot.free < 1 {
		return false
	}
	p.take(slot, d.Participant, 1)
	return true
}

func (p *planning) take(slot *slot, participant housing.Participant, beds int) {
	slot.free -= beds
	slot.occupied += beds
	p.board.record(slot, participant)

	n := len(p.plan.Proposals)
	if n > 0 {
		last := &p.plan.Proposals[n-1]
		if last.RoomID == slot.view.Room.ID && last.Participant.Ref() == participant.Ref() {
			last.Beds += beds
			return
		}
	}
	p.plan.Proposals = append(p.plan.Proposals, Proposal{
		RoomID:      slot.view.Room.ID,
		RoomNumber:  slot.view.Room.Number,
		Participant: participant,
		Beds:        beds,
	})
}

// fill walks rooms in order and fills each before moving on.
func (p *planning) fill(d Demand) int {
	return p.fillSlots(d, p.board.slots)
}

func (p *planning) fillSlots(d Demand, slots []*slot) int {
	remaining := d.Beds
	traits := d.Participant.Profile()
	for _, s := range slots {
		if remaining == 0 {
			break
		}
		if s.free == 0 || !s.admits(traits) {
			continue
		}
		n := min(s.free, remaining)
		p.take(s, d.Participant, n)
		remaining -= n
	}
	return remaining
}

// balance sends each bed to the least occupied eligible room. A bucket stays
// whole in the least occupied room that fits it, otherwise it is split
// starting from the least occupied room.
func (p *planning) balance(d Demand) int {
	traits := d.Participant.Profile()
	candidates := p.board.eligible(traits)
	if len(candidates) == 0 {
		return d.Beds
	}

	if d.Beds == 1 {
		p.take(leastOccupied(candidates, 1), d.Participant, 1)
		return 0
	}

	if s := leastOccupied(candidates, d.Beds); s != nil {
		p.take(s, d.Participant, d.Beds)
		return 0
	}

	remaining := d.Beds
	for remaining > 0 {
		s := leastOccupied(p.board.eligible(traits), 1)
		if s == nil {
			break
		}
		n := min(s.free, remaining)
		p.take(s, d.Participant, n)
		remaining -= n
	}
	return remaining
}

// leastOccupied returns the room with the fewest occupants among those with at
// least need free beds. Ties go to room order.
func leastOccupied(slots []*slot, need int) *slot {
	var best *slot
	for _, s := range slots {
		if s.free < need {
			continue
		}
		if best == nil || s.occupied < best.occupied {
			best = s
		}
	}
	return best
}

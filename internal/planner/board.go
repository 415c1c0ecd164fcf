package planner

import (
	"strings"

	"github.com/example/housing-allocator/internal/housing"
)

// slot is a room during planning with projected occupancy.
type slot struct {
	view     housing.RoomView
	free     int
	occupied int
}

func (s *slot) admits(traits housing.Traits) bool {
	return housing.Eligible(s.view, traits)
}

// board holds the planning state shared by all strategies.
type board struct {
	slots     []*slot
	byID      map[string]*slot
	buildings []housing.Building
	// names maps a lower-cased display name to the room its owner sleeps in.
	names map[string]*slot
	// parishes maps a lower-cased parish id to the buildings hosting it.
	parishes map[string]map[string]bool
}

func newBoard(rooms []housing.RoomView, occupants []Occupant) *board {
	views := make([]housing.RoomView, len(rooms))
	copy(views, rooms)
	housing.SortRoomViews(views)

	b := &board{
		byID:     make(map[string]*slot, len(views)),
		names:    make(map[string]*slot),
		parishes: make(map[string]map[string]bool),
	}
	seenBuilding := make(map[string]bool)
	for _, v := range views {
		s := &slot{view: v, free: v.Room.Remaining(), occupied: v.Room.Occupancy}
		b.slots = append(b.slots, s)
		b.byID[v.Room.ID] = s
		if !seenBuilding[v.Building.ID] {
			seenBuilding[v.Building.ID] = true
			b.buildings = append(b.buildings, v.Building)
		}
	}

	for _, o := range occupants {
		s, ok := b.byID[o.RoomID]
		if !ok {
			continue
		}
		if name := normalizeName(o.Name); name != "" {
			b.names[name] = s
		}
		b.hostParish(o.ParishID, s.view.Building.ID)
	}
	return b
}

func (b *board) record(s *slot, participant housing.Participant) {
	if individual, ok := participant.(housing.Individual); ok {
		if name := normalizeName(individual.Name); name != "" {
			b.names[name] = s
		}
	}
	b.hostParish(participant.Profile().ParishID, s.view.Building.ID)
}

func (b *board) hostParish(parishID, buildingID string) {
	key := strings.ToLower(strings.TrimSpace(parishID))
	if key == "" {
		return
	}
	if b.parishes[key] == nil {
		b.parishes[key] = make(map[string]bool)
	}
	b.parishes[key][buildingID] = true
}

func (b *board) hosts(parishID, buildingID string) bool {
	return b.parishes[strings.ToLower(strings.TrimSpace(parishID))][buildingID]
}

func (b *board) roomOf(name string) *slot {
	return b.names[normalizeName(name)]
}

// eligible returns, in room order, the rooms that admit traits and have a free bed.
func (b *board) eligible(traits housing.Traits) []*slot {
	var out []*slot
	for _, s := range b.slots {
		if s.free > 0 && s.admits(traits) {
			out = append(out, s)
		}
	}
	return out
}

// inBuilding returns the rooms of one building in room order.
func (b *board) inBuilding(buildingID string) []*slot {
	var out []*slot
	for _, s := range b.slots {
		if s.view.Building.ID == buildingID {
			out = append(out, s)
		}
	}
	return out
}

// freeFor sums the free beds of a building's rooms that admit traits.
func (b *board) freeFor(buildingID string, traits housing.Traits) int {
	total := 0
	for _, s := range b.inBuilding(buildingID) {
		if s.admits(traits) {
			total += s.free
		}
	}
	return total
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

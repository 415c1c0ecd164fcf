package planner

import (
	"strings"

	"github.com/example/housing-allocator/internal/housing"
)

// contingent is the part of a parish sharing gender and category, so that every
// member is eligible for the same rooms.
type contingent struct {
	traits  housing.Traits
	demands []Demand
}

func (c *contingent) beds() int {
	total := 0
	for _, d := range c.demands {
		total += d.Beds
	}
	return total
}

// parishTogether groups demands by parish in first-appearance order. Each
// contingent goes to the first building (in display order, buildings already
// hosting the parish first) that can hold all of it; otherwise it fills the
// building with the most eligible space and spills into the next. Demands
// without a parish are filled last.
func (p *planning) parishTogether(demands []Demand) {
	var (
		parishOrder  []string
		unaffiliated []Demand
	)
	byParish := make(map[string][]*contingent)

	for _, d := range demands {
		if d.Beds <= 0 {
			continue
		}
		traits := d.Participant.Profile()
		parish := strings.ToLower(strings.TrimSpace(traits.ParishID))
		if parish == "" {
			unaffiliated = append(unaffiliated, d)
			continue
		}
		if _, ok := byParish[parish]; !ok {
			parishOrder = append(parishOrder, parish)
		}
		var target *contingent
		for _, c := range byParish[parish] {
			if c.traits.Gender == traits.Gender && c.traits.Category == traits.Category {
				target = c
				break
			}
		}
		if target == nil {
			target = &contingent{traits: housing.Traits{Gender: traits.Gender, Category: traits.Category, ParishID: traits.ParishID}}
			byParish[parish] = append(byParish[parish], target)
		}
		target.demands = append(target.demands, d)
	}

	for _, parish := range parishOrder {
		for _, c := range byParish[parish] {
			p.placeContingent(c)
		}
	}
	for _, d := range unaffiliated {
		p.place(d, p.fill)
	}
}

func (p *planning) placeContingent(c *contingent) {
	var rest []Demand
	for _, d := range c.demands {
		if !p.placeWithRoommate(d) {
			rest = append(rest, d)
		}
	}

	for len(rest) > 0 {
		total := 0
		for _, d := range rest {
			total += d.Beds
		}

		building, whole := p.chooseBuilding(c.traits, total)
		if building == "" {
			break
		}
		slots := p.board.inBuilding(building)
		if whole {
			slots = preferSingleRoom(slots, c.traits, total)
		}

		var unplaced []Demand
		for _, d := range rest {
			if left := p.fillSlots(d, slots); left > 0 {
				unplaced = append(unplaced, Demand{Participant: d.Participant, Beds: left})
			}
		}
		rest = unplaced
	}

	for _, d := range rest {
		p.plan.Skips = append(p.plan.Skips, Skip{Participant: d.Participant, Beds: d.Beds, Reason: reasonNoBed})
	}
}

// chooseBuilding returns the building for a contingent needing beds and whether
// it holds all of them. An empty id means no eligible space is left anywhere.
func (p *planning) chooseBuilding(traits housing.Traits, beds int) (string, bool) {
	for _, hosting := range []bool{true, false} {
		for _, b := range p.board.buildings {
			if hosting && !p.board.hosts(traits.ParishID, b.ID) {
				continue
			}
			if p.board.freeFor(b.ID, traits) >= beds {
				return b.ID, true
			}
		}
	}

	best, bestFree := "", 0
	for _, b := range p.board.buildings {
		if free := p.board.freeFor(b.ID, traits); free > bestFree {
			best, bestFree = b.ID, free
		}
	}
	return best, false
}

// preferSingleRoom moves the first room that fits the whole contingent to the
// front so the contingent is not split when it does not have to be.
func preferSingleRoom(slots []*slot, traits housing.Traits, beds int) []*slot {
	for i, s := range slots {
		if s.free >= beds && s.admits(traits) {
			ordered := make([]*slot, 0, len(slots))
			ordered = append(ordered, s)
			ordered = append(ordered, slots[:i]...)
			ordered = append(ordered, slots[i+1:]...)
			return ordered
		}
	}
	return slots
}

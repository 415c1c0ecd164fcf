// Package roster supplies the participants the housing engine places. The
// roster is a read-only feed produced by the registration system.
package roster

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/example/housing-allocator/internal/housing"
)

// ErrNotFound is returned when a reference names no participant in the roster.
var ErrNotFound = errors.New("roster: participant not found")

// Filter narrows the participants returned by a Provider. Zero values match everything.
type Filter struct {
	Gender   housing.Gender
	Category housing.Category
	ParishID string
}

// Matches reports whether p passes the filter.
func (f Filter) Matches(p housing.Participant) bool {
	traits := p.Profile()
	if f.Gender != "" && traits.Gender != f.Gender {
		return false
	}
	if f.Category != "" && traits.Category != f.Category {
		return false
	}
	if f.ParishID != "" && !strings.EqualFold(traits.ParishID, f.ParishID) {
		return false
	}
	return true
}

// Provider is the read side of the roster.
type Provider interface {
	// Participants returns matching participants in a stable order.
	Participants(ctx context.Context, filter Filter) ([]housing.Participant, error)
	// Lookup resolves a ledger reference to its participant.
	Lookup(ctx context.Context, ref housing.ParticipantRef) (housing.Participant, error)
}

// Static is an in-memory Provider. Participants keep the order they were added in.
type Static struct {
	mu           sync.RWMutex
	participants []housing.Participant
	index        map[housing.ParticipantRef]int
}

var _ Provider = (*Static)(nil)

// NewStatic returns a provider holding participants.
func NewStatic(participants ...housing.Participant) *Static {
	s := &Static{index: make(map[housing.ParticipantRef]int)}
	s.Replace(participants)
	return s
}

// Replace swaps the whole roster. Later duplicates of a reference win.
func (s *Static) Replace(participants []housing.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.participants = make([]housing.Participant, 0, len(participants))
	s.index = make(map[housing.ParticipantRef]int, len(participants))
	for _, p := range participants {
		if i, ok := s.index[p.Ref()]; ok {
			s.participants[i] = p
			continue
		}
		s.index[p.Ref()] = len(s.participants)
		s.participants = append(s.participants, p)
	}
}

// Participants implements Provider.
func (s *Static) Participants(ctx context.Context, filter Filter) ([]housing.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]housing.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Lookup implements Provider.
func (s *Static) Lookup(ctx context.Context, ref housing.ParticipantRef) (housing.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return s.participants[i], nil
}

package housing

import (
	"fmt"
	"strings"
)

// Category folds the minor/adult/clergy status of a participant into one value.
type Category string

const (
	// CategoryYouth marks participants under 18.
	CategoryYouth  Category = "youth"
	CategoryAdult  Category = "adult"
	CategoryClergy Category = "clergy"
)

// ParseCategory normalises user supplied category values.
func ParseCategory(value string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("housing: unknown category %q", value)
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryYouth, CategoryAdult, CategoryClergy:
		return true
	}
	return false
}

// Minor reports whether the category is under 18.
func (c Category) Minor() bool { return c == CategoryYouth }

// CategoryFor derives the category from roster flags. Clergy takes precedence.
func CategoryFor(minor, clergy bool) Category {
	switch {
	case clergy:
		return CategoryClergy
	case minor:
		return CategoryYouth
	default:
		return CategoryAdult
	}
}

// Traits are the attributes eligibility and grouping rules look at.
type Traits struct {
	Gender   Gender
	Category Category
	ParishID string
	GroupID  string
}

// Participant is either an Individual or a GroupBucket.
type Participant interface {
	isParticipant()
	Ref() ParticipantRef
	Profile() Traits
	// Headcount is the number of beds the participant needs.
	Headcount() int
	Label() string
}

// Individual is one registrant needing one bed.
type Individual struct {
	ID   string
	Name string
	Traits
	RoommatePreference string
}

func (Individual) isParticipant() {}

// Ref identifies the individual in the ledger.
func (i Individual) Ref() ParticipantRef {
	return ParticipantRef{Kind: RefIndividual, ID: i.ID}
}

// Profile returns the eligibility traits.
func (i Individual) Profile() Traits { return i.Traits }

// Headcount is always one.
func (i Individual) Headcount() int { return 1 }

// Label returns the display name, falling back to the id.
func (i Individual) Label() string {
	if strings.TrimSpace(i.Name) != "" {
		return i.Name
	}
	return i.ID
}

// GroupBucket is the same-gender, same-category part of a group registration.
type GroupBucket struct {
	GroupName string
	Traits
	Members int
}

func (GroupBucket) isParticipant() {}

// Ref identifies the bucket in the ledger.
func (g GroupBucket) Ref() ParticipantRef {
	return ParticipantRef{Kind: RefGroup, ID: g.GroupID, Gender: g.Gender, Category: g.Category}
}

// Profile returns the eligibility traits.
func (g GroupBucket) Profile() Traits { return g.Traits }

// Headcount is the member count of the bucket.
func (g GroupBucket) Headcount() int { return g.Members }

// Label describes the bucket for reports.
func (g GroupBucket) Label() string {
	name := g.GroupName
	if strings.TrimSpace(name) == "" {
		name = g.GroupID
	}
	return fmt.Sprintf("%s (%s %s)", name, g.Gender, g.Category)
}

// RefKind distinguishes the participant variants inside a reference.
type RefKind string

const (
	RefIndividual RefKind = "individual"
	RefGroup      RefKind = "group"
)

// ParticipantRef is the ledger key of a participant. Gender and Category are only
// set for group references.
type ParticipantRef struct {
	Kind     RefKind
	ID       string
	Gender   Gender
	Category Category
}

// String renders the reference as individual:<id> or group:<id>:<gender>:<category>.
func (r ParticipantRef) String() string {
	if r.Kind == RefGroup {
		return fmt.Sprintf("group:%s:%s:%s", r.ID, r.Gender, r.Category)
	}
	return fmt.Sprintf("individual:%s", r.ID)
}

// Validate checks the reference is complete.
func (r ParticipantRef) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("housing: participant reference requires an id")
	}
	switch r.Kind {
	case RefIndividual:
		return nil
	case RefGroup:
		if !r.Gender.ValidForParticipant() {
			return fmt.Errorf("housing: group reference requires gender male or female")
		}
		if !r.Category.Valid() {
			return fmt.Errorf("housing: group reference requires a category")
		}
		return nil
	}
	return fmt.Errorf("housing: unknown participant kind %q", r.Kind)
}

// ParseParticipantRef parses the String form of a reference.
func ParseParticipantRef(value string) (ParticipantRef, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	var ref ParticipantRef
	switch {
	case len(parts) == 2 && parts[0] == string(RefIndividual):
		ref = ParticipantRef{Kind: RefIndividual, ID: parts[1]}
	case len(parts) == 4 && parts[0] == string(RefGroup):
		ref = ParticipantRef{
			Kind:     RefGroup,
			ID:       parts[1],
			Gender:   Gender(parts[2]),
			Category: Category(parts[3]),
		}
	default:
		return ParticipantRef{}, fmt.Errorf("housing: malformed participant reference %q", value)
	}
	if err := ref.Validate(); err != nil {
		return ParticipantRef{}, err
	}
	return ref, nil
}

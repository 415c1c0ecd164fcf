package roster

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/housing-allocator/internal/housing"
)

// fileDocument is the YAML layout of a roster export.
//
//	individuals:
//	  - id: p-1
//	    name: Ana Cruz
//	    gender: female
//	    category: youth
//	    parish: st-mary
//	    roommate: Bea Santos
//	groups:
//	  - id: g-7
//	    name: St. Mary Youth
//	    parish: st-mary
//	    buckets:
//	      - {gender: female, category: youth, members: 5}
type fileDocument struct {
	Individuals []fileIndividual `yaml:"individuals"`
	Groups      []fileGroup      `yaml:"groups"`
}

type fileIndividual struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Gender   string `yaml:"gender"`
	Category string `yaml:"category"`
	// Minor and Clergy are accepted when category is omitted.
	Minor    bool   `yaml:"minor"`
	Clergy   bool   `yaml:"clergy"`
	Parish   string `yaml:"parish"`
	Group    string `yaml:"group"`
	Roommate string `yaml:"roommate"`
}

type fileGroup struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Parish  string       `yaml:"parish"`
	Buckets []fileBucket `yaml:"buckets"`
}

type fileBucket struct {
	Gender   string `yaml:"gender"`
	Category string `yaml:"category"`
	Members  int    `yaml:"members"`
}

// LoadFile reads a YAML roster export into a Static provider.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}
	participants, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("roster file %s: %w", path, err)
	}
	return NewStatic(participants...), nil
}

// Decode parses a YAML roster. Unknown fields are rejected and every invalid
// entry is reported in one error.
func Decode(r io.Reader) ([]housing.Participant, error) {
	var doc fileDocument
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var (
		participants []housing.Participant
		problems     []string
	)
	seen := make(map[housing.ParticipantRef]bool)
	add := func(p housing.Participant, where string) {
		if seen[p.Ref()] {
			problems = append(problems, fmt.Sprintf("%s: duplicate participant %s", where, p.Ref()))
			return
		}
		seen[p.Ref()] = true
		participants = append(participants, p)
	}

	for i, in := range doc.Individuals {
		where := fmt.Sprintf("individuals[%d]", i)
		p, err := in.participant()
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", where, err))
			continue
		}
		add(p, where)
	}

	for i, g := range doc.Groups {
		for j, b := range g.Buckets {
			where := fmt.Sprintf("groups[%d].buckets[%d]", i, j)
			p, err := g.bucket(b)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", where, err))
				continue
			}
			add(p, where)
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid roster entries: %s", strings.Join(problems, "; "))
	}
	return participants, nil
}

func (in fileIndividual) participant() (housing.Individual, error) {
	if strings.TrimSpace(in.ID) == "" {
		return housing.Individual{}, fmt.Errorf("id is required")
	}
	gender, err := participantGender(in.Gender)
	if err != nil {
		return housing.Individual{}, err
	}
	category := housing.CategoryFor(in.Minor, in.Clergy)
	if strings.TrimSpace(in.Category) != "" {
		if category, err = housing.ParseCategory(in.Category); err != nil {
			return housing.Individual{}, err
		}
	}
	return housing.Individual{
		ID:   strings.TrimSpace(in.ID),
		Name: strings.TrimSpace(in.Name),
		Traits: housing.Traits{
			Gender:   gender,
			Category: category,
			ParishID: strings.TrimSpace(in.Parish),
			GroupID:  strings.TrimSpace(in.Group),
		},
		RoommatePreference: strings.TrimSpace(in.Roommate),
	}, nil
}

func (g fileGroup) bucket(b fileBucket) (housing.GroupBucket, error) {
	if strings.TrimSpace(g.ID) == "" {
		return housing.GroupBucket{}, fmt.Errorf("group id is required")
	}
	gender, err := participantGender(b.Gender)
	if err != nil {
		return housing.GroupBucket{}, err
	}
	category, err := housing.ParseCategory(b.Category)
	if err != nil {
		return housing.GroupBucket{}, err
	}
	if b.Members <= 0 {
		return housing.GroupBucket{}, fmt.Errorf("members must be positive")
	}
	return housing.GroupBucket{
		GroupName: strings.TrimSpace(g.Name),
		Traits: housing.Traits{
			Gender:   gender,
			Category: category,
			ParishID: strings.TrimSpace(g.Parish),
			GroupID:  strings.TrimSpace(g.ID),
		},
		Members: b.Members,
	}, nil
}

func participantGender(value string) (housing.Gender, error) {
	gender, err := housing.ParseGender(value)
	if err != nil {
		return "", err
	}
	if !gender.ValidForParticipant() {
		return "", fmt.Errorf("participant gender must be male or female")
	}
	return gender, nil
}

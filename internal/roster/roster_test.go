package roster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/housing-allocator/internal/housing"
)

const sampleRoster = `
individuals:
  - id: p-1
    name: Ana Cruz
    gender: female
    minor: true
    parish: st-mary
    roommate: Bea Santos
  - id: p-2
    name: Fr. Luis
    gender: male
    clergy: true
  - id: p-3
    name: Bea Santos
    gender: Female
    category: youth
    parish: st-mary
groups:
  - id: g-7
    name: St. Mary Youth
    parish: st-mary
    buckets:
      - {gender: female, category: youth, members: 5}
      - {gender: male, category: youth, members: 3}
`

func TestDecode(t *testing.T) {
	participants, err := Decode(strings.NewReader(sampleRoster))
	require.NoError(t, err)
	require.Len(t, participants, 5)

	ana, ok := participants[0].(housing.Individual)
	require.True(t, ok)
	assert.Equal(t, housing.CategoryYouth, ana.Category)
	assert.Equal(t, "Bea Santos", ana.RoommatePreference)

	priest := participants[1].(housing.Individual)
	assert.Equal(t, housing.CategoryClergy, priest.Category)

	bucket, ok := participants[3].(housing.GroupBucket)
	require.True(t, ok)
	assert.Equal(t, 5, bucket.Headcount())
	assert.Equal(t, "group:g-7:female:youth", bucket.Ref().String())
}

func TestDecodeReportsEveryProblem(t *testing.T) {
	_, err := Decode(strings.NewReader(`
individuals:
  - id: p-1
    gender: mixed
  - name: nobody
    gender: male
groups:
  - id: g-1
    buckets:
      - {gender: male, category: adult, members: 0}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "individuals[0]")
	assert.Contains(t, err.Error(), "individuals[1]: id is required")
	assert.Contains(t, err.Error(), "groups[0].buckets[0]: members must be positive")
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("individuals:\n  - id: p-1\n    gender: male\n    shoe_size: 9\n"))
	assert.Error(t, err)
}

func TestStaticFilterAndLookup(t *testing.T) {
	ctx := context.Background()
	participants, err := Decode(strings.NewReader(sampleRoster))
	require.NoError(t, err)
	provider := NewStatic(participants...)

	females, err := provider.Participants(ctx, Filter{Gender: housing.GenderFemale, Category: housing.CategoryYouth})
	require.NoError(t, err)
	require.Len(t, females, 3)
	assert.Equal(t, "p-1", females[0].Ref().ID)

	parish, err := provider.Participants(ctx, Filter{ParishID: "ST-MARY"})
	require.NoError(t, err)
	assert.Len(t, parish, 4)

	ref := housing.ParticipantRef{Kind: housing.RefGroup, ID: "g-7", Gender: housing.GenderMale, Category: housing.CategoryYouth}
	found, err := provider.Lookup(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 3, found.Headcount())

	_, err = provider.Lookup(ctx, housing.ParticipantRef{Kind: housing.RefIndividual, ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRoster), 0o600))

	provider, err := LoadFile(path)
	require.NoError(t, err)

	all, err := provider.Participants(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

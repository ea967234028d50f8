package services

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffAssignees(t *testing.T) {
	diff := DiffAssignees([]string{"A", "B"}, []string{"B", "C", "C"})
	assert.Equal(t, []string{"B"}, diff.Kept)
	assert.Equal(t, []string{"C"}, diff.Added)
	assert.Equal(t, []string{"A"}, diff.Removed)
}

func TestDiffAssignees_ClearAll(t *testing.T) {
	diff := DiffAssignees([]string{"A", "B"}, nil)
	assert.Empty(t, diff.Kept)
	assert.Empty(t, diff.Added)
	assert.Equal(t, []string{"A", "B"}, diff.Removed)
}

func TestFilterKnown(t *testing.T) {
	known := map[string]bool{"B": true, "C": true}
	assert.Equal(t, []string{"B", "C"}, FilterKnown([]string{"B", "Z", "C", "B"}, known))
	assert.Empty(t, FilterKnown([]string{"Z"}, known))
}

func set(ids []string) map[string]bool {
	m := map[string]bool{}
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func union(a, b []string) []string {
	m := set(a)
	for _, id := range b {
		m[id] = true
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func TestDiffAssignees_IsPartition(t *testing.T) {
	pool := []string{"u1", "u2", "u3", "u4", "u5", "u6", "ghost1", "ghost2"}
	known := map[string]bool{"u1": true, "u2": true, "u3": true, "u4": true, "u5": true, "u6": true}
	r := rand.New(rand.NewSource(7))
	pick := func() []string {
		var out []string
		for _, id := range pool {
			if r.Intn(2) == 0 {
				out = append(out, id)
			}
		}
		return out
	}

	for round := 0; round < 200; round++ {
		previous := FilterKnown(pick(), known)
		requested := pick()
		diff := DiffAssignees(previous, FilterKnown(requested, known))

		added := set(diff.Added)
		for _, id := range diff.Removed {
			assert.False(t, added[id], "added and removed overlap on %s", id)
		}

		wantRequested := map[string]bool{}
		for _, id := range requested {
			if known[id] {
				wantRequested[id] = true
			}
		}
		assert.Equal(t, sortedKeys(wantRequested), union(diff.Added, diff.Kept))
		assert.Equal(t, sortedKeys(set(previous)), union(diff.Kept, diff.Removed))
	}
}

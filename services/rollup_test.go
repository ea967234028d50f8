package services

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"trello-project/microservices/tasks-service/models"
)

func subtasksWith(n, k int) []models.Subtask {
	out := make([]models.Subtask, n)
	for i := 0; i < k; i++ {
		out[i].Completed = true
	}
	return out
}

func TestRollupTaskProgress(t *testing.T) {
	tests := []struct {
		n, k int
		want int
	}{
		{1, 0, 0},
		{1, 1, 100},
		{2, 1, 50},
		{3, 1, 33},
		{3, 2, 67},
		{4, 2, 50},
		{8, 1, 13}, // 12.5 rounds up
		{6, 1, 17},
		{7, 7, 100},
	}
	for _, tt := range tests {
		got, ok := RollupTaskProgress(subtasksWith(tt.n, tt.k))
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, "n=%d k=%d", tt.n, tt.k)
	}
}

func TestRollupTaskProgress_EmptyMeansNoChange(t *testing.T) {
	_, ok := RollupTaskProgress(nil)
	assert.False(t, ok)
}

func TestRollupTaskProgress_MatchesFormula(t *testing.T) {
	for n := 1; n <= 40; n++ {
		for k := 0; k <= n; k++ {
			got, _ := RollupTaskProgress(subtasksWith(n, k))
			// round-half-up of 100k/n without floats
			want := (200*k + n) / (2 * n)
			assert.Equal(t, want, got)
		}
	}
}

func TestRollupProjectProgress(t *testing.T) {
	assert.Equal(t, 0, RollupProjectProgress(nil))
	assert.Equal(t, 50, RollupProjectProgress([]models.Task{{Progress: 0}, {Progress: 100}}))
	assert.Equal(t, 34, RollupProjectProgress([]models.Task{{Progress: 33}, {Progress: 34}}))
	assert.Equal(t, 33, RollupProjectProgress([]models.Task{{Progress: 0}, {Progress: 0}, {Progress: 100}}))
}

func TestRollupProjectProgress_OrderIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		tasks := make([]models.Task, 1+r.Intn(12))
		for i := range tasks {
			tasks[i].Progress = r.Intn(101)
		}
		want := RollupProjectProgress(tasks)
		r.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })
		assert.Equal(t, want, RollupProjectProgress(tasks))
	}
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trello-project/microservices/tasks-service/models"
)

func TestReconciler_SweepHealsDrift(t *testing.T) {
	f := newFixture(t)
	drifted := f.addTask(t, models.Task{Progress: 5})
	f.addSubtasks(t, drifted.ID, true, true, true, false)
	f.addTask(t, models.Task{Progress: 25})
	require.NoError(t, f.store.UpdateProjectProgress(f.ctx, f.project.ID, 99))

	empty := &models.Project{ID: "project-2", Name: "Empty", OwnerID: "owner", Progress: 40}
	require.NoError(t, f.store.CreateProject(f.ctx, empty))

	r := NewReconciler(f.store, f.tasks, "@every 1h")
	n, err := r.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 75, f.task(t, drifted.ID).Progress)
	assert.Equal(t, 50, f.projectProgress(t))

	p, err := f.store.GetProject(f.ctx, "project-2")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Progress)
}

func TestReconciler_StartRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	r := NewReconciler(f.store, f.tasks, "every now and then")
	assert.Error(t, r.Start(context.Background()))
}

func TestReconciler_StartAndStop(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewReconciler(f.store, f.tasks, "@every 1h")
	require.NoError(t, r.Start(ctx))
	r.Stop()
	r.Stop()
}

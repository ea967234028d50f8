package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trello-project/microservices/tasks-service/models"
	"trello-project/microservices/tasks-service/repositories"
)

var fixedNow = time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	ctx     context.Context
	store   *repositories.MemoryStore
	tasks   *TaskService
	project *models.Project

	admin    models.Principal
	admin2   models.Principal
	owner    models.Principal
	member   models.Principal
	outsider models.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithSink(t, nil)
}

// newFixtureWithSink wires a custom notification sink; nil uses the store.
func newFixtureWithSink(t *testing.T, sink repositories.NotificationRepository) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	if sink == nil {
		sink = store
	}

	users := []models.User{
		{ID: "admin-1", Name: "Ana Admin", Email: "ana@example.com", Role: models.RoleAdmin},
		{ID: "admin-2", Name: "Boris Admin", Email: "boris@example.com", Role: models.RoleAdmin},
		{ID: "owner", Name: "Olga Owner", Email: "olga@example.com", Role: models.RoleMember},
		{ID: "member", Name: "Milan Member", Email: "milan@example.com", Role: models.RoleMember},
		{ID: "outsider", Name: "Oscar Outsider", Email: "oscar@example.com", Role: models.RoleMember},
		{ID: "A", Name: "Alice", Email: "a@example.com", Role: models.RoleMember},
		{ID: "B", Name: "Bob", Email: "b@example.com", Role: models.RoleMember},
		{ID: "C", Name: "Carol", Email: "c@example.com", Role: models.RoleMember},
	}
	for i := range users {
		require.NoError(t, store.CreateUser(ctx, &users[i]))
	}

	project := &models.Project{
		ID:       "project-1",
		Name:     "Website relaunch",
		Status:   models.ProjectActive,
		Priority: models.PriorityHigh,
		OwnerID:  "owner",
		Team:     []string{"member", "A", "B", "C"},
	}
	require.NoError(t, store.CreateProject(ctx, project))

	notifications := NewNotificationService(sink, store, NewNotificationBreaker("test-cb", time.Second, 100))
	tasks := NewTaskService(store, notifications)
	tasks.now = func() time.Time { return fixedNow }

	return &fixture{
		ctx:      ctx,
		store:    store,
		tasks:    tasks,
		project:  project,
		admin:    models.Principal{UserID: "admin-1", Role: models.RoleAdmin},
		admin2:   models.Principal{UserID: "admin-2", Role: models.RoleAdmin},
		owner:    models.Principal{UserID: "owner", Role: models.RoleMember},
		member:   models.Principal{UserID: "member", Role: models.RoleMember},
		outsider: models.Principal{UserID: "outsider", Role: models.RoleMember},
	}
}

func (f *fixture) addTask(t *testing.T, task models.Task) *models.Task {
	t.Helper()
	if task.ProjectID == "" {
		task.ProjectID = f.project.ID
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.CreatedByID == "" {
		task.CreatedByID = "member"
	}
	if task.Title == "" {
		task.Title = "Design landing page"
	}
	require.NoError(t, f.store.CreateTask(f.ctx, &task))
	return &task
}

func (f *fixture) addSubtasks(t *testing.T, taskID string, completed ...bool) []models.Subtask {
	t.Helper()
	out := make([]models.Subtask, 0, len(completed))
	for _, c := range completed {
		st := models.Subtask{TaskID: taskID, Title: "step", Status: models.StatusTodo, Completed: c}
		require.NoError(t, f.store.CreateSubtask(f.ctx, &st))
		out = append(out, st)
	}
	return out
}

func (f *fixture) task(t *testing.T, id string) *models.Task {
	t.Helper()
	task, err := f.store.GetTask(f.ctx, id)
	require.NoError(t, err)
	return task
}

func (f *fixture) projectProgress(t *testing.T) int {
	t.Helper()
	p, err := f.store.GetProject(f.ctx, f.project.ID)
	require.NoError(t, err)
	return p.Progress
}

func (f *fixture) notifications(t *testing.T) []models.Notification {
	t.Helper()
	all, err := f.store.ListNotifications(f.ctx, "")
	require.NoError(t, err)
	return all
}

// failingSink rejects every insert and counts the attempts.
type failingSink struct {
	mu       sync.Mutex
	attempts int
}

func (s *failingSink) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return errors.New("notification sink unavailable")
}

func (s *failingSink) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return nil, errors.New("notification sink unavailable")
}

func (s *failingSink) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return errors.New("notification sink unavailable")
}

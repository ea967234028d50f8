package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trello-project/microservices/tasks-service/models"
	"trello-project/microservices/tasks-service/repositories"
)

func newNotificationFixture(t *testing.T) (*repositories.MemoryStore, *NotificationService) {
	t.Helper()
	store := repositories.NewMemoryStore()
	for _, u := range []models.User{
		{ID: "admin-1", Name: "Ana Admin", Role: models.RoleAdmin},
		{ID: "admin-2", Name: "Boris Admin", Role: models.RoleAdmin},
		{ID: "creator", Name: "Cleo Creator", Role: models.RoleMember},
	} {
		u := u
		require.NoError(t, store.CreateUser(context.Background(), &u))
	}
	return store, NewNotificationService(store, store, nil)
}

func TestDispatch_DeduplicatesWithinDrain(t *testing.T) {
	store, svc := newNotificationFixture(t)
	task := models.Task{ID: "t1", Title: "Launch", CreatedByID: "creator"}

	var queue EventQueue
	queue.Push(Event{Kind: EventTaskAssigned, Task: task, UserIDs: []string{"u1", "u2"}})
	queue.Push(Event{Kind: EventTaskAssigned, Task: task, UserIDs: []string{"u2"}})
	queue.Push(Event{Kind: EventApprovalChanged, Task: task, Approval: &ApprovalTransition{To: models.ApprovalApproved}})
	queue.Push(Event{Kind: EventApprovalChanged, Task: task, Approval: &ApprovalTransition{To: models.ApprovalApproved}})
	events := queue.Drain()
	require.Len(t, events, 4)
	assert.Empty(t, queue.Drain())

	svc.Dispatch(context.Background(), events)

	all, err := store.ListNotifications(context.Background(), "")
	require.NoError(t, err)

	type key struct {
		user string
		kind models.NotificationType
	}
	got := map[key]int{}
	for _, n := range all {
		got[key{n.UserID, n.Type}]++
	}
	assert.Equal(t, map[key]int{
		{"u1", models.NotificationTaskAssigned}: 1,
		{"u2", models.NotificationTaskAssigned}: 1,
		{"creator", "task_approved"}:            1,
		{"admin-1", "admin_task_approved"}:      1,
		{"admin-2", "admin_task_approved"}:      1,
	}, got)
}

func TestDispatch_RejectionMessageCarriesReason(t *testing.T) {
	store, svc := newNotificationFixture(t)
	reason := "Duplicate of #12"
	task := models.Task{ID: "t1", Title: "Launch", CreatedByID: "creator", RejectionReason: &reason}

	svc.Dispatch(context.Background(), []Event{{Kind: EventApprovalChanged, Task: task, Approval: &ApprovalTransition{From: models.ApprovalPending, To: models.ApprovalRejected}}})

	mine, err := store.ListNotifications(context.Background(), "creator")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.NotificationType("task_rejected"), mine[0].Type)
	assert.Equal(t, "Task Rejected", mine[0].Title)
	assert.Equal(t, `Your task "Launch" has been rejected: Duplicate of #12`, mine[0].Message)
	assert.Equal(t, "t1", mine[0].RelatedID)
}

func TestDispatch_BreakerOpensOnRepeatedFailures(t *testing.T) {
	store := repositories.NewMemoryStore()
	sink := &failingSink{}
	svc := NewNotificationService(sink, store, NewNotificationBreaker("test-cb", time.Minute, 2))

	users := make([]string, 30)
	for i := range users {
		users[i] = fmt.Sprintf("user-%d", i)
	}
	svc.Dispatch(context.Background(), []Event{{Kind: EventTaskAssigned, Task: models.Task{ID: "t1"}, UserIDs: users}})

	assert.Less(t, sink.attempts, len(users), "open breaker short-circuits the remaining inserts")
	assert.GreaterOrEqual(t, sink.attempts, 3)
}

func TestDispatch_NoEvents(t *testing.T) {
	sink := &failingSink{}
	svc := NewNotificationService(sink, repositories.NewMemoryStore(), nil)
	svc.Dispatch(context.Background(), nil)
	assert.Zero(t, sink.attempts)
}

func TestListAndMarkRead(t *testing.T) {
	store, svc := newNotificationFixture(t)
	ctx := context.Background()
	svc.Dispatch(ctx, []Event{{Kind: EventTaskAssigned, Task: models.Task{ID: "t1", Title: "Launch"}, UserIDs: []string{"creator"}}})

	creator := models.Principal{UserID: "creator", Role: models.RoleMember}
	list, err := svc.ListNotifications(ctx, creator)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Read)

	err = svc.MarkRead(ctx, models.Principal{UserID: "admin-1", Role: models.RoleAdmin}, list[0].ID)
	assert.True(t, IsKind(err, KindNotFound))

	require.NoError(t, svc.MarkRead(ctx, creator, list[0].ID))
	list, err = store.ListNotifications(ctx, "creator")
	require.NoError(t, err)
	assert.True(t, list[0].Read)

	empty, err := svc.ListNotifications(ctx, models.Principal{UserID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListNotifications_SinkFailureIsInternal(t *testing.T) {
	svc := NewNotificationService(&failingSink{}, repositories.NewMemoryStore(), nil)
	_, err := svc.ListNotifications(context.Background(), models.Principal{UserID: "u"})
	assert.True(t, IsKind(err, KindInternal))
	assert.Equal(t, "Failed to load notifications", PublicMessage(err))
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"trello-project/microservices/tasks-service/logging"
	"trello-project/microservices/tasks-service/models"
	"trello-project/microservices/tasks-service/repositories"
)

const maxConcurrentInserts = 8

// NewNotificationBreaker builds the circuit breaker guarding the notification sink.
func NewNotificationBreaker(name string, timeout time.Duration, maxFailures uint32) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
}

type NotificationService struct {
	repo    repositories.NotificationRepository
	store   repositories.Store
	breaker *gobreaker.CircuitBreaker
}

func NewNotificationService(repo repositories.NotificationRepository, store repositories.Store, breaker *gobreaker.CircuitBreaker) *NotificationService {
	if breaker == nil {
		breaker = NewNotificationBreaker("notifications-cb", 5*time.Second, 3)
	}
	return &NotificationService{repo: repo, store: store, breaker: breaker}
}

// Dispatch turns events into notifications and inserts them concurrently.
// Failures are logged and never returned; the changes the events describe
// are already committed.
func (s *NotificationService) Dispatch(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	notifications := s.plan(ctx, events)
	if len(notifications) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentInserts)
	for i := range notifications {
		n := &notifications[i]
		g.Go(func() error {
			_, err := s.breaker.Execute(func() (interface{}, error) {
				return nil, s.repo.CreateNotification(ctx, n)
			})
			if err != nil {
				if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
					logging.Logger.Warnf("Event ID: NOTIFICATION_SKIPPED, Description: Notification %s for user %s skipped, circuit open", n.Type, n.UserID)
				} else {
					logging.Logger.Errorf("Event ID: NOTIFICATION_CREATE_FAILED, Description: Failed to create %s notification for user %s: %v", n.Type, n.UserID, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	logging.Logger.Debugf("Event ID: NOTIFICATIONS_DISPATCHED, Description: Dispatched %d notifications for %d events", len(notifications), len(events))
}

type dedupKey struct {
	userID    string
	kind      models.NotificationType
	relatedID string
}

// plan resolves recipients for events and removes duplicate
// (recipient, type, relatedId) triples.
func (s *NotificationService) plan(ctx context.Context, events []Event) []models.Notification {
	var admins []models.User
	adminsLoaded := false
	loadAdmins := func() []models.User {
		if adminsLoaded {
			return admins
		}
		adminsLoaded = true
		var err error
		admins, err = s.store.ListUsersByRole(ctx, models.RoleAdmin)
		if err != nil {
			logging.Logger.Errorf("Event ID: ADMIN_LOOKUP_FAILED, Description: Failed to load admins for notification fan-out: %v", err)
		}
		return admins
	}

	seen := make(map[dedupKey]bool)
	var out []models.Notification
	add := func(n models.Notification) {
		if n.UserID == "" {
			return
		}
		key := dedupKey{n.UserID, n.Type, n.RelatedID}
		if seen[key] {
			return
		}
		seen[key] = true
		n.CreatedAt = time.Now().UTC()
		out = append(out, n)
	}

	for _, e := range events {
		switch e.Kind {
		case EventTaskAssigned:
			for _, userID := range e.UserIDs {
				add(models.Notification{
					Type:        models.NotificationTaskAssigned,
					Title:       "New Task Assigned",
					Message:     fmt.Sprintf("You have been assigned to task %q", e.Task.Title),
					UserID:      userID,
					RelatedID:   e.Task.ID,
					RelatedType: "task",
				})
			}

		case EventSubtaskAssigned:
			for _, userID := range e.UserIDs {
				add(models.Notification{
					Type:        models.NotificationSubtaskAssigned,
					Title:       "New Subtask Assigned",
					Message:     fmt.Sprintf("You have been assigned to subtask %q of task %q", e.SubtaskTitle, e.Task.Title),
					UserID:      userID,
					RelatedID:   e.SubtaskID,
					RelatedType: "subtask",
				})
			}

		case EventApprovalChanged:
			if e.Approval == nil {
				continue
			}
			to := e.Approval.To
			title, creatorMsg, adminMsg := approvalTexts(e.Task, to)
			add(models.Notification{
				Type:        models.ApprovalNotificationType(to, false),
				Title:       title,
				Message:     creatorMsg,
				UserID:      e.Task.CreatedByID,
				RelatedID:   e.Task.ID,
				RelatedType: "task",
			})
			for _, admin := range loadAdmins() {
				if admin.ID == e.Task.CreatedByID {
					continue
				}
				add(models.Notification{
					Type:        models.ApprovalNotificationType(to, true),
					Title:       title,
					Message:     adminMsg,
					UserID:      admin.ID,
					RelatedID:   e.Task.ID,
					RelatedType: "task",
				})
			}

		case EventDeleteRequested:
			requester := s.displayName(ctx, e.Actor.UserID)
			for _, admin := range loadAdmins() {
				add(models.Notification{
					Type:        models.NotificationTaskDeleteRequest,
					Title:       "Task Delete Request",
					Message:     fmt.Sprintf("%s requested deletion of task %q", requester, e.Task.Title),
					UserID:      admin.ID,
					RelatedID:   e.Task.ID,
					RelatedType: "task",
				})
			}

		default:
			logging.Logger.Warnf("Event ID: UNKNOWN_EVENT, Description: Ignoring event of kind %q", e.Kind)
		}
	}
	return out
}

func approvalTexts(task models.Task, to models.ApprovalStatus) (title, creatorMsg, adminMsg string) {
	switch to {
	case models.ApprovalApproved:
		return "Task Approved",
			fmt.Sprintf("Your task %q has been approved", task.Title),
			fmt.Sprintf("Task %q has been approved", task.Title)
	case models.ApprovalRejected:
		creatorMsg = fmt.Sprintf("Your task %q has been rejected", task.Title)
		if task.RejectionReason != nil && *task.RejectionReason != "" {
			creatorMsg += ": " + *task.RejectionReason
		}
		return "Task Rejected", creatorMsg, fmt.Sprintf("Task %q has been rejected", task.Title)
	default:
		return "Task Pending Approval",
			fmt.Sprintf("Your task %q is pending approval", task.Title),
			fmt.Sprintf("Task %q is awaiting approval", task.Title)
	}
}

func (s *NotificationService) displayName(ctx context.Context, userID string) string {
	users, err := s.store.GetUsers(ctx, []string{userID})
	if err != nil || len(users) == 0 || users[0].Name == "" {
		return "A user"
	}
	return users[0].Name
}

// ListNotifications returns the caller's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, p models.Principal) ([]models.Notification, error) {
	notifications, err := s.repo.ListNotifications(ctx, p.UserID)
	if err != nil {
		logging.Logger.Errorf("Event ID: NOTIFICATIONS_LIST_FAILED, Description: Failed to list notifications for user %s: %v", p.UserID, err)
		return nil, InternalError("Failed to load notifications", err)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, p models.Principal, notificationID string) error {
	err := s.repo.MarkNotificationRead(ctx, p.UserID, notificationID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return NotFoundError("Notification not found")
	default:
		logging.Logger.Errorf("Event ID: NOTIFICATION_MARK_READ_FAILED, Description: Failed to mark notification %s as read: %v", notificationID, err)
		return InternalError("Failed to update notification", err)
	}
}

package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"trello-project/microservices/tasks-service/models"
	"trello-project/microservices/tasks-service/repositories"
)

// maxConcurrentComposes bounds how many task views a listing builds at once.
const maxConcurrentComposes = 8

// isoLayout renders timestamps the way browsers print Date.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func formatOptional(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// formatRequired falls back to now for always-present timestamps.
func formatRequired(t time.Time, now time.Time) string {
	if t.IsZero() {
		return formatTime(now)
	}
	return formatTime(t)
}

// Composer builds the denormalized TaskView from independent, concurrent reads.
type Composer struct {
	store repositories.Store
	now   func() time.Time
}

func NewComposer(store repositories.Store) *Composer {
	return &Composer{store: store, now: time.Now}
}

type subtaskParts struct {
	assignees []string
	comments  []models.Comment
}

func (c *Composer) ComposeTask(ctx context.Context, task *models.Task) (*models.TaskView, error) {
	var (
		subtasks     []models.Subtask
		assigneeIDs  []string
		comments     []models.Comment
		creatorUsers []models.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subtasks, err = c.store.ListSubtasksByTask(gctx, task.ID)
		if err != nil {
			return fmt.Errorf("list subtasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		assigneeIDs, err = c.store.ListAssignees(gctx, repositories.TaskAssignees, task.ID)
		if err != nil {
			return fmt.Errorf("list task assignees: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		comments, err = c.store.ListTaskComments(gctx, task.ID)
		if err != nil {
			return fmt.Errorf("list task comments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if task.CreatedByID == "" {
			return nil
		}
		var err error
		creatorUsers, err = c.store.GetUsers(gctx, []string{task.CreatedByID})
		if err != nil {
			return fmt.Errorf("load creator: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	parts := make([]subtaskParts, len(subtasks))
	g, gctx = errgroup.WithContext(ctx)
	for i := range subtasks {
		i := i
		g.Go(func() error {
			ids, err := c.store.ListAssignees(gctx, repositories.SubtaskAssignees, subtasks[i].ID)
			if err != nil {
				return fmt.Errorf("list subtask assignees: %w", err)
			}
			parts[i].assignees = ids
			return nil
		})
		g.Go(func() error {
			cs, err := c.store.ListSubtaskComments(gctx, subtasks[i].ID)
			if err != nil {
				return fmt.Errorf("list subtask comments: %w", err)
			}
			parts[i].comments = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	userIDs := append([]string(nil), assigneeIDs...)
	for _, cm := range comments {
		userIDs = append(userIDs, cm.AuthorID)
	}
	for _, p := range parts {
		userIDs = append(userIDs, p.assignees...)
		for _, cm := range p.comments {
			userIDs = append(userIDs, cm.AuthorID)
		}
	}
	users := make(map[string]models.User)
	if len(userIDs) > 0 {
		found, err := c.store.GetUsers(ctx, userIDs)
		if err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		for _, u := range found {
			users[u.ID] = u
		}
	}

	now := c.now()
	view := &models.TaskView{
		ID:              task.ID,
		ProjectID:       task.ProjectID,
		Title:           task.Title,
		Description:     task.Description,
		Status:          task.Status,
		Priority:        task.Priority,
		Progress:        task.Progress,
		ApprovalStatus:  task.ApprovalStatus,
		ApprovedAt:      formatOptional(task.ApprovedAt),
		ApprovedByID:    task.ApprovedByID,
		RejectionReason: task.RejectionReason,
		StartDate:       formatOptional(task.StartDate),
		DueDate:         formatOptional(task.DueDate),
		CompletedAt:     formatOptional(task.CompletedAt),
		CreatedAt:       formatRequired(task.CreatedAt, now),
		UpdatedAt:       formatRequired(task.UpdatedAt, now),
		CreatedBy:       models.UnknownUser(task.CreatedByID),
		Assignees:       summarize(assigneeIDs, users),
		Comments:        commentViews(comments, users, now),
		Subtasks:        make([]models.SubtaskView, 0, len(subtasks)),
		TotalSubtasks:   len(subtasks),
	}
	if len(creatorUsers) > 0 {
		view.CreatedBy = models.SummarizeUser(creatorUsers[0])
	}

	for i, s := range subtasks {
		if s.Completed {
			view.SubtasksCompleted++
		}
		view.Subtasks = append(view.Subtasks, models.SubtaskView{
			ID:        s.ID,
			TaskID:    s.TaskID,
			Title:     s.Title,
			Status:    s.Status,
			Completed: s.Completed,
			DueDate:   formatOptional(s.DueDate),
			Assignees: summarize(parts[i].assignees, users),
			Comments:  commentViews(parts[i].comments, users, now),
			CreatedAt: formatRequired(s.CreatedAt, now),
			UpdatedAt: formatRequired(s.UpdatedAt, now),
		})
	}

	return view, nil
}

// summarize skips ids whose user record no longer exists.
func summarize(ids []string, users map[string]models.User) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, models.SummarizeUser(u))
		}
	}
	return out
}

func commentViews(comments []models.Comment, users map[string]models.User, now time.Time) []models.CommentView {
	out := make([]models.CommentView, 0, len(comments))
	for _, cm := range comments {
		author := models.UnknownUser(cm.AuthorID)
		if u, ok := users[cm.AuthorID]; ok {
			author = models.SummarizeUser(u)
		}
		out = append(out, models.CommentView{
			ID:        cm.ID,
			Content:   cm.Content,
			Author:    author,
			CreatedAt: formatRequired(cm.CreatedAt, now),
		})
	}
	return out
}

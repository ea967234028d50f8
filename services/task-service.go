package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"trello-project/microservices/tasks-service/logging"
	"trello-project/microservices/tasks-service/models"
	"trello-project/microservices/tasks-service/repositories"
)

const (
	DeleteRequestMessage = "Delete request submitted for admin review"
	TaskDeletedMessage   = "Task deleted successfully"
)

type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	Message string `json:"message"`
}

type CreateTaskInput struct {
	ProjectID   string            `json:"projectId"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      models.TaskStatus `json:"status"`
	Priority    models.Priority   `json:"priority"`
	StartDate   string            `json:"startDate"`
	DueDate     string            `json:"dueDate"`
	AssigneeIDs []string          `json:"assigneeIds"`
}

type CreateSubtaskInput struct {
	Title       string   `json:"title"`
	DueDate     string   `json:"dueDate"`
	AssigneeIDs []string `json:"assigneeIds"`
}

type TaskService struct {
	store         repositories.Store
	notifications *NotificationService
	composer      *Composer
	now           func() time.Time
}

func NewTaskService(store repositories.Store, notifications *NotificationService) *TaskService {
	return &TaskService{
		store:         store,
		notifications: notifications,
		composer:      NewComposer(store),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// UpdateTask applies patch to the task as p. Field writes, assignment
// replacement and rollups commit together; notifications are sent after.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, p models.Principal, patch models.TaskPatch) (*models.TaskView, error) {
	task, err := s.loadTask(ctx, s.store, taskID)
	if err != nil {
		return nil, err
	}
	project, err := s.loadProject(ctx, s.store, task.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := CheckTaskWrite(project, task, p, &patch); err != nil {
		logging.Logger.Warnf("Event ID: TASK_UPDATE_FORBIDDEN, Description: User %s may not update task %s: %v", p.UserID, taskID, err)
		return nil, err
	}

	subtasks, err := s.store.ListSubtasksByTask(ctx, taskID)
	if err != nil {
		return nil, s.internal("update task", err)
	}
	delta, err := BuildTaskDelta(task, patch, len(subtasks), p, s.now())
	if err != nil {
		return nil, err
	}

	var added []string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if len(delta.Changes) > 0 {
			if err := tx.UpdateTask(ctx, taskID, delta.Changes); err != nil {
				return err
			}
		}
		if patch.AssigneeIDs.Present() {
			requested, _ := patch.AssigneeIDs.Value()
			ids, err := s.replaceAssignees(ctx, tx, repositories.TaskAssignees, taskID, requested)
			if err != nil {
				return err
			}
			added = ids
		}
		return s.recomputeRollups(ctx, tx, taskID, task.ProjectID)
	})
	if err != nil {
		return nil, s.internal("update task", err)
	}

	updated, err := s.loadTask(ctx, s.store, taskID)
	if err != nil {
		return nil, err
	}
	view, err := s.composer.ComposeTask(ctx, updated)
	if err != nil {
		return nil, s.internal("load task", err)
	}

	var queue EventQueue
	if len(added) > 0 {
		queue.Push(Event{Kind: EventTaskAssigned, Task: *updated, UserIDs: added, Actor: p})
	}
	if delta.Approval != nil {
		queue.Push(Event{Kind: EventApprovalChanged, Task: *updated, Approval: delta.Approval, Actor: p})
	}
	s.notifications.Dispatch(ctx, queue.Drain())

	logging.Logger.Infof("Event ID: TASK_UPDATED, Description: Task %s updated by %s (%d field changes)", taskID, p.UserID, len(delta.Changes))
	return view, nil
}

// GetTask returns the composed view of a task visible to p.
func (s *TaskService) GetTask(ctx context.Context, taskID string, p models.Principal) (*models.TaskView, error) {
	task, err := s.loadTask(ctx, s.store, taskID)
	if err != nil {
		return nil, err
	}
	if err := CheckTaskRead(task, p); err != nil {
		return nil, err
	}
	view, err := s.composer.ComposeTask(ctx, task)
	if err != nil {
		return nil, s.internal("load task", err)
	}
	return view, nil
}

// DeleteTask removes the task and everything hanging off it when p is an
// admin. Other callers only raise a delete request to the admins.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string, p models.Principal) (DeleteResult, error) {
	task, err := s.loadTask(ctx, s.store, taskID)
	if err != nil {
		return DeleteResult{}, err
	}

	if !CanDeleteImmediately(p) {
		var queue EventQueue
		queue.Push(Event{Kind: EventDeleteRequested, Task: *task, Actor: p})
		s.notifications.Dispatch(ctx, queue.Drain())
		logging.Logger.Infof("Event ID: TASK_DELETE_REQUESTED, Description: User %s requested deletion of task %s", p.UserID, taskID)
		return DeleteResult{Deleted: false, Message: DeleteRequestMessage}, nil
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		subtasks, err := tx.ListSubtasksByTask(ctx, taskID)
		if err != nil {
			return err
		}
		subtaskIDs := make([]string, 0, len(subtasks))
		for _, st := range subtasks {
			subtaskIDs = append(subtaskIDs, st.ID)
		}

		for _, step := range taskCascade(taskID, subtaskIDs) {
			if err := step.run(ctx, tx); err != nil {
				return fmt.Errorf("delete %s: %w", step.name, err)
			}
		}
		return s.recomputeProjectRollup(ctx, tx, task.ProjectID)
	})
	if err != nil {
		return DeleteResult{}, s.internal("delete task", err)
	}

	logging.Logger.Infof("Event ID: TASK_DELETED, Description: Task %s deleted by admin %s", taskID, p.UserID)
	return DeleteResult{Deleted: true, Message: TaskDeletedMessage}, nil
}

type cascadeStep struct {
	name string
	run  func(ctx context.Context, tx repositories.Store) error
}

// taskCascade lists child deletions in dependency order, ending with the task.
func taskCascade(taskID string, subtaskIDs []string) []cascadeStep {
	return []cascadeStep{
		{"subtask tags", func(ctx context.Context, tx repositories.Store) error {
			return tx.DeleteTags(ctx, models.TagOwnerSubtask, subtaskIDs...)
		}},
		{"subtask assignees", func(ctx context.Context, tx repositories.Store) error {
			return tx.DeleteAssignees(ctx, repositories.SubtaskAssignees, subtaskIDs...)
		}},
		{"subtask comments", func(ctx context.Context, tx repositories.Store) error {
			return tx.DeleteSubtaskComments(ctx, subtaskIDs...)
		}},
		{"subtasks", func(ctx context.Context, tx repositories.Store) error {
			return tx.DeleteSubtasksByTask(ctx, taskID)
		}},
		{"task assignees", func(ctx context.Context, tx repositories.Store) error {
			return tx.DeleteAssignees(ctx, repositories.TaskAssignees, taskID)
		}},
		{"task tags", func(ctx context.Context, tx repositories.Store) error {
			return tx.DeleteTags(ctx, models.TagOwnerTask, taskID)
		}},
		{"comments", func(ctx context.Context, tx repositories.Store) error {
			return tx.DeleteTaskComments(ctx, taskID)
		}},
		{"attachments", func(ctx context.Context, tx repositories.Store) error {
			return tx.DeleteAttachments(ctx, taskID)
		}},
		{"task", func(ctx context.Context, tx repositories.Store) error {
			return tx.DeleteTask(ctx, taskID)
		}},
	}
}

func (s *TaskService) CreateTask(ctx context.Context, p models.Principal, input CreateTaskInput) (*models.TaskView, error) {
	project, err := s.loadProject(ctx, s.store, input.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, NotFoundError("Project not found")
	}
	if !CanEdit(project, p) {
		return nil, ForbiddenError(ReasonNotProjectMember, "You are not a member of this project")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ValidationError("title is required")
	}
	status := input.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !status.Valid() {
		return nil, ValidationError("invalid status %q", status)
	}
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, ValidationError("invalid priority %q", priority)
	}
	startDate, err := ParseDate("startDate", input.StartDate)
	if err != nil {
		return nil, err
	}
	dueDate, err := ParseDate("dueDate", input.DueDate)
	if err != nil {
		return nil, err
	}

	now := s.now()
	task := &models.Task{
		ProjectID:      project.ID,
		Title:          title,
		Description:    input.Description,
		Status:         status,
		Priority:       priority,
		CreatedByID:    p.UserID,
		ApprovalStatus: models.ApprovalPending,
		StartDate:      startDate,
		DueDate:        dueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.IsAdmin() {
		task.ApprovalStatus = models.ApprovalApproved
		task.ApprovedAt = &now
		task.ApprovedByID = &p.UserID
	}
	if status == models.StatusDone {
		task.Progress = 100
		task.CompletedAt = &now
	}

	var added []string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		if len(input.AssigneeIDs) > 0 {
			ids, err := s.replaceAssignees(ctx, tx, repositories.TaskAssignees, task.ID, input.AssigneeIDs)
			if err != nil {
				return err
			}
			added = ids
		}
		return s.recomputeProjectRollup(ctx, tx, task.ProjectID)
	})
	if err != nil {
		return nil, s.internal("create task", err)
	}

	view, err := s.composer.ComposeTask(ctx, task)
	if err != nil {
		return nil, s.internal("load task", err)
	}

	var queue EventQueue
	if len(added) > 0 {
		queue.Push(Event{Kind: EventTaskAssigned, Task: *task, UserIDs: added, Actor: p})
	}
	if task.ApprovalStatus == models.ApprovalPending {
		queue.Push(Event{Kind: EventApprovalChanged, Task: *task, Approval: &ApprovalTransition{To: models.ApprovalPending}, Actor: p})
	}
	s.notifications.Dispatch(ctx, queue.Drain())

	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Task %s created in project %s by %s", task.ID, task.ProjectID, p.UserID)
	return view, nil
}

// ListProjectTasks returns the project's tasks that p may see.
func (s *TaskService) ListProjectTasks(ctx context.Context, p models.Principal, projectID string) ([]models.TaskView, error) {
	project, err := s.loadProject(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, NotFoundError("Project not found")
	}
	if !CanEdit(project, p) {
		return nil, ForbiddenError(ReasonNotProjectMember, "You are not a member of this project")
	}

	tasks, err := s.store.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, s.internal("list tasks", err)
	}
	visible := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if CanView(&t, p) {
			visible = append(visible, t)
		}
	}

	views := make([]models.TaskView, len(visible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentComposes)
	for i := range visible {
		i := i
		g.Go(func() error {
			view, err := s.composer.ComposeTask(gctx, &visible[i])
			if err != nil {
				return err
			}
			views[i] = *view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.internal("list tasks", err)
	}
	return views, nil
}

// CreateSubtask adds a subtask and returns the refreshed parent task.
func (s *TaskService) CreateSubtask(ctx context.Context, p models.Principal, taskID string, input CreateSubtaskInput) (*models.TaskView, error) {
	task, err := s.authorizeTaskWrite(ctx, taskID, p)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ValidationError("title is required")
	}
	dueDate, err := ParseDate("dueDate", input.DueDate)
	if err != nil {
		return nil, err
	}

	subtask := &models.Subtask{TaskID: taskID, Title: title, Status: models.StatusTodo, DueDate: dueDate}
	var added []string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if err := tx.CreateSubtask(ctx, subtask); err != nil {
			return err
		}
		if len(input.AssigneeIDs) > 0 {
			ids, err := s.replaceAssignees(ctx, tx, repositories.SubtaskAssignees, subtask.ID, input.AssigneeIDs)
			if err != nil {
				return err
			}
			added = ids
		}
		return s.recomputeRollups(ctx, tx, taskID, task.ProjectID)
	})
	if err != nil {
		return nil, s.internal("create subtask", err)
	}

	return s.finishSubtaskWrite(ctx, p, taskID, subtask, added)
}

// UpdateSubtask applies patch to a subtask. Status and completed are
// written independently of each other.
func (s *TaskService) UpdateSubtask(ctx context.Context, p models.Principal, subtaskID string, patch models.SubtaskPatch) (*models.TaskView, error) {
	subtask, err := s.loadSubtask(ctx, subtaskID)
	if err != nil {
		return nil, err
	}
	task, err := s.authorizeTaskWrite(ctx, subtask.TaskID, p)
	if err != nil {
		return nil, err
	}
	changes, err := BuildSubtaskChanges(patch)
	if err != nil {
		return nil, err
	}

	var added []string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if len(changes) > 0 {
			if err := tx.UpdateSubtask(ctx, subtaskID, changes); err != nil {
				return err
			}
		}
		if patch.AssigneeIDs.Present() {
			requested, _ := patch.AssigneeIDs.Value()
			ids, err := s.replaceAssignees(ctx, tx, repositories.SubtaskAssignees, subtaskID, requested)
			if err != nil {
				return err
			}
			added = ids
		}
		return s.recomputeRollups(ctx, tx, task.ID, task.ProjectID)
	})
	if err != nil {
		return nil, s.internal("update subtask", err)
	}

	changes.ApplySubtask(subtask)
	return s.finishSubtaskWrite(ctx, p, task.ID, subtask, added)
}

func (s *TaskService) DeleteSubtask(ctx context.Context, p models.Principal, subtaskID string) (*models.TaskView, error) {
	subtask, err := s.loadSubtask(ctx, subtaskID)
	if err != nil {
		return nil, err
	}
	task, err := s.authorizeTaskWrite(ctx, subtask.TaskID, p)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if err := tx.DeleteTags(ctx, models.TagOwnerSubtask, subtaskID); err != nil {
			return err
		}
		if err := tx.DeleteAssignees(ctx, repositories.SubtaskAssignees, subtaskID); err != nil {
			return err
		}
		if err := tx.DeleteSubtaskComments(ctx, subtaskID); err != nil {
			return err
		}
		if err := tx.DeleteSubtask(ctx, subtaskID); err != nil {
			return err
		}
		return s.recomputeRollups(ctx, tx, task.ID, task.ProjectID)
	})
	if err != nil {
		return nil, s.internal("delete subtask", err)
	}

	logging.Logger.Infof("Event ID: SUBTASK_DELETED, Description: Subtask %s of task %s deleted by %s", subtaskID, task.ID, p.UserID)
	return s.finishSubtaskWrite(ctx, p, task.ID, nil, nil)
}

func (s *TaskService) finishSubtaskWrite(ctx context.Context, p models.Principal, taskID string, subtask *models.Subtask, added []string) (*models.TaskView, error) {
	task, err := s.loadTask(ctx, s.store, taskID)
	if err != nil {
		return nil, err
	}
	view, err := s.composer.ComposeTask(ctx, task)
	if err != nil {
		return nil, s.internal("load task", err)
	}
	if subtask != nil && len(added) > 0 {
		var queue EventQueue
		queue.Push(Event{Kind: EventSubtaskAssigned, Task: *task, SubtaskID: subtask.ID, SubtaskTitle: subtask.Title, UserIDs: added, Actor: p})
		s.notifications.Dispatch(ctx, queue.Drain())
	}
	return view, nil
}

func (s *TaskService) authorizeTaskWrite(ctx context.Context, taskID string, p models.Principal) (*models.Task, error) {
	task, err := s.loadTask(ctx, s.store, taskID)
	if err != nil {
		return nil, err
	}
	project, err := s.loadProject(ctx, s.store, task.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := CheckTaskWrite(project, task, p, nil); err != nil {
		logging.Logger.Warnf("Event ID: SUBTASK_WRITE_FORBIDDEN, Description: User %s may not modify subtasks of task %s: %v", p.UserID, taskID, err)
		return nil, err
	}
	return task, nil
}

// replaceAssignees drops unknown users, replaces the edges of entityID and
// returns the newly added user ids.
func (s *TaskService) replaceAssignees(ctx context.Context, tx repositories.Store, kind repositories.AssignmentKind, entityID string, requested []string) ([]string, error) {
	known, err := tx.WhichUsersExist(ctx, requested)
	if err != nil {
		return nil, err
	}
	filtered := FilterKnown(requested, known)
	if len(requested) > 0 && len(filtered) == 0 {
		logging.Logger.Warnf("Event ID: ASSIGNEES_ALL_UNKNOWN, Description: None of the %d requested assignees for %s %s exist; no assignments written", len(requested), kind, entityID)
	} else if dropped := len(requested) - len(filtered); dropped > 0 {
		logging.Logger.Warnf("Event ID: ASSIGNEES_UNKNOWN_DROPPED, Description: Dropped %d unknown assignee ids for %s %s", dropped, kind, entityID)
	}

	previous, err := tx.ListAssignees(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}
	diff := DiffAssignees(previous, filtered)
	if err := tx.ReplaceAssignees(ctx, kind, entityID, filtered); err != nil {
		return nil, err
	}

	logging.Logger.Debugf("Event ID: ASSIGNEES_REPLACED, Description: %s %s kept=%v added=%v removed=%v", kind, entityID, diff.Kept, diff.Added, diff.Removed)
	return diff.Added, nil
}

// recomputeRollups persists the task rollup and then the project rollup.
func (s *TaskService) recomputeRollups(ctx context.Context, store repositories.Store, taskID, projectID string) error {
	if err := s.recomputeTaskRollup(ctx, store, taskID); err != nil {
		return err
	}
	return s.recomputeProjectRollup(ctx, store, projectID)
}

// recomputeTaskRollup leaves tasks without subtasks untouched.
func (s *TaskService) recomputeTaskRollup(ctx context.Context, store repositories.Store, taskID string) error {
	subtasks, err := store.ListSubtasksByTask(ctx, taskID)
	if err != nil {
		return err
	}
	if progress, ok := RollupTaskProgress(subtasks); ok {
		current, err := store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if current.Progress != progress {
			var c models.Changes
			c.Set(models.ColProgress, progress)
			return store.UpdateTask(ctx, taskID, c)
		}
	}
	return nil
}

func (s *TaskService) recomputeProjectRollup(ctx context.Context, store repositories.Store, projectID string) error {
	if projectID == "" {
		return nil
	}
	tasks, err := store.ListTasksByProject(ctx, projectID)
	if err != nil {
		return err
	}
	err = store.UpdateProjectProgress(ctx, projectID, RollupProjectProgress(tasks))
	if errors.Is(err, repositories.ErrNotFound) {
		logging.Logger.Warnf("Event ID: PROJECT_ROLLUP_SKIPPED, Description: Project %s no longer exists", projectID)
		return nil
	}
	return err
}

func (s *TaskService) loadTask(ctx context.Context, store repositories.Store, taskID string) (*models.Task, error) {
	task, err := store.GetTask(ctx, taskID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, NotFoundError("Task not found")
	}
	if err != nil {
		return nil, s.internal("load task", err)
	}
	return task, nil
}

func (s *TaskService) loadSubtask(ctx context.Context, subtaskID string) (*models.Subtask, error) {
	subtask, err := s.store.GetSubtask(ctx, subtaskID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, NotFoundError("Subtask not found")
	}
	if err != nil {
		return nil, s.internal("load subtask", err)
	}
	return subtask, nil
}

// loadProject returns nil without error when the project is gone.
func (s *TaskService) loadProject(ctx context.Context, store repositories.Store, projectID string) (*models.Project, error) {
	project, err := store.GetProject(ctx, projectID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.internal("load project", err)
	}
	return project, nil
}

func (s *TaskService) internal(op string, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	logging.Logger.Errorf("Event ID: TASK_SERVICE_ERROR, Description: Failed to %s: %v", op, err)
	return InternalError("Failed to "+op, err)
}

package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trello-project/microservices/tasks-service/models"

	"github.com/google/uuid"
)

type memoryData struct {
	seq           int64
	order         map[string]int64
	projects      map[string]models.Project
	tasks         map[string]models.Task
	subtasks      map[string]models.Subtask
	assignees     map[AssignmentKind]map[string][]string
	comments      map[string]models.Comment
	tags          map[string]models.Tag
	attachments   map[string]models.Attachment
	users         map[string]models.User
	notifications map[string]models.Notification
}

func newMemoryData() *memoryData {
	return &memoryData{
		order:    map[string]int64{},
		projects: map[string]models.Project{},
		tasks:    map[string]models.Task{},
		subtasks: map[string]models.Subtask{},
		assignees: map[AssignmentKind]map[string][]string{
			TaskAssignees:    {},
			SubtaskAssignees: {},
		},
		comments:      map[string]models.Comment{},
		tags:          map[string]models.Tag{},
		attachments:   map[string]models.Attachment{},
		users:         map[string]models.User{},
		notifications: map[string]models.Notification{},
	}
}

// undoLog restores the keys a transaction wrote, and only those.
type undoLog struct {
	steps []func()
}

func (u *undoLog) rollback() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
}

// remember captures m[key] before a write. Outside a transaction it is a no-op.
func remember[K comparable, V any](s *MemoryStore, m map[K]V, key K) {
	if s.undo == nil {
		return
	}
	prev, existed := m[key]
	s.undo.steps = append(s.undo.steps, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

// MemoryStore keeps every entity in process memory. It backs local
// development and the service tests.
type MemoryStore struct {
	mu   *sync.RWMutex
	txMu *sync.Mutex
	data *memoryData
	undo *undoLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:   &sync.RWMutex{},
		txMu: &sync.Mutex{},
		data: newMemoryData(),
	}
}

func (s *MemoryStore) track(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	remember(s, s.data.order, id)
	s.data.seq++
	s.data.order[id] = s.data.seq
	return id
}

func (s *MemoryStore) before(a, b string) bool {
	return s.data.order[a] < s.data.order[b]
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.undo != nil {
		return fn(ctx, s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &MemoryStore{mu: s.mu, txMu: s.txMu, data: s.data, undo: &undoLog{}}
	if err := fn(ctx, tx); err != nil {
		s.mu.Lock()
		tx.undo.rollback()
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) CreateProject(ctx context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project.ID = s.track(project.ID)
	stampCreated(&project.CreatedAt, &project.UpdatedAt)
	p := *project
	p.Team = append([]string(nil), project.Team...)
	remember(s, s.data.projects, p.ID)
	s.data.projects[p.ID] = p
	return nil
}

func (s *MemoryStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	p.Team = append([]string(nil), p.Team...)
	return &p, nil
}

func (s *MemoryStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projects := make([]models.Project, 0, len(s.data.projects))
	for _, p := range s.data.projects {
		p.Team = append([]string(nil), p.Team...)
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return s.before(projects[i].ID, projects[j].ID) })
	return projects, nil
}

func (s *MemoryStore) UpdateProjectProgress(ctx context.Context, id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.projects[id]
	if !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	p.Progress = progress
	p.UpdatedAt = time.Now().UTC()
	remember(s, s.data.projects, id)
	s.data.projects[id] = p
	return nil
}

func (s *MemoryStore) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = s.track(task.ID)
	stampCreated(&task.CreatedAt, &task.UpdatedAt)
	remember(s, s.data.tasks, task.ID)
	s.data.tasks[task.ID] = *task
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (s *MemoryStore) ListTasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tasks []models.Task
	for _, t := range s.data.tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return s.before(tasks[i].ID, tasks[j].ID) })
	return tasks, nil
}

func (s *MemoryStore) UpdateTask(ctx context.Context, id string, changes models.Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	changes.ApplyTask(&t)
	remember(s, s.data.tasks, id)
	s.data.tasks[id] = t
	return nil
}

func (s *MemoryStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	remember(s, s.data.tasks, id)
	delete(s.data.tasks, id)
	return nil
}

func (s *MemoryStore) CreateSubtask(ctx context.Context, subtask *models.Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subtask.ID = s.track(subtask.ID)
	stampCreated(&subtask.CreatedAt, &subtask.UpdatedAt)
	remember(s, s.data.subtasks, subtask.ID)
	s.data.subtasks[subtask.ID] = *subtask
	return nil
}

func (s *MemoryStore) GetSubtask(ctx context.Context, id string) (*models.Subtask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data.subtasks[id]
	if !ok {
		return nil, fmt.Errorf("subtask %s: %w", id, ErrNotFound)
	}
	return &st, nil
}

func (s *MemoryStore) ListSubtasksByTask(ctx context.Context, taskID string) ([]models.Subtask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subtasks []models.Subtask
	for _, st := range s.data.subtasks {
		if st.TaskID == taskID {
			subtasks = append(subtasks, st)
		}
	}
	sort.Slice(subtasks, func(i, j int) bool { return s.before(subtasks[i].ID, subtasks[j].ID) })
	return subtasks, nil
}

func (s *MemoryStore) UpdateSubtask(ctx context.Context, id string, changes models.Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.data.subtasks[id]
	if !ok {
		return fmt.Errorf("subtask %s: %w", id, ErrNotFound)
	}
	changes.ApplySubtask(&st)
	remember(s, s.data.subtasks, id)
	s.data.subtasks[id] = st
	return nil
}

func (s *MemoryStore) DeleteSubtask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	remember(s, s.data.subtasks, id)
	delete(s.data.subtasks, id)
	return nil
}

func (s *MemoryStore) DeleteSubtasksByTask(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.data.subtasks {
		if st.TaskID == taskID {
			remember(s, s.data.subtasks, id)
			delete(s.data.subtasks, id)
		}
	}
	return nil
}

func (s *MemoryStore) ListAssignees(ctx context.Context, kind AssignmentKind, entityID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.data.assignees[kind][entityID]...), nil
}

func (s *MemoryStore) ReplaceAssignees(ctx context.Context, kind AssignmentKind, entityID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	edges, ok := s.data.assignees[kind]
	if !ok {
		return fmt.Errorf("unknown assignment kind %q", kind)
	}
	ids := uniqueIDs(userIDs)
	remember(s, edges, entityID)
	if len(ids) == 0 {
		delete(edges, entityID)
		return nil
	}
	edges[entityID] = ids
	return nil
}

func (s *MemoryStore) DeleteAssignees(ctx context.Context, kind AssignmentKind, entityIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range entityIDs {
		remember(s, s.data.assignees[kind], id)
		delete(s.data.assignees[kind], id)
	}
	return nil
}

func (s *MemoryStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment.ID = s.track(comment.ID)
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	remember(s, s.data.comments, comment.ID)
	s.data.comments[comment.ID] = *comment
	return nil
}

func (s *MemoryStore) listComments(match func(models.Comment) bool) []models.Comment {
	var comments []models.Comment
	for _, c := range s.data.comments {
		if match(c) {
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return s.before(comments[i].ID, comments[j].ID) })
	return comments
}

func (s *MemoryStore) ListTaskComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listComments(func(c models.Comment) bool { return c.TaskID == taskID && c.SubtaskID == "" }), nil
}

func (s *MemoryStore) ListSubtaskComments(ctx context.Context, subtaskID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listComments(func(c models.Comment) bool { return c.SubtaskID == subtaskID }), nil
}

func (s *MemoryStore) DeleteTaskComments(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.data.comments {
		if c.TaskID == taskID && c.SubtaskID == "" {
			remember(s, s.data.comments, id)
			delete(s.data.comments, id)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteSubtaskComments(ctx context.Context, subtaskIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := toSet(subtaskIDs)
	for id, c := range s.data.comments {
		if c.SubtaskID != "" && targets[c.SubtaskID] {
			remember(s, s.data.comments, id)
			delete(s.data.comments, id)
		}
	}
	return nil
}

func (s *MemoryStore) CreateTag(ctx context.Context, tag *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag.ID = s.track(tag.ID)
	remember(s, s.data.tags, tag.ID)
	s.data.tags[tag.ID] = *tag
	return nil
}

func (s *MemoryStore) ListTags(ctx context.Context, owner models.TagOwner, entityID string) ([]models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tags []models.Tag
	for _, t := range s.data.tags {
		if t.EntityType == owner && t.EntityID == entityID {
			tags = append(tags, t)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return s.before(tags[i].ID, tags[j].ID) })
	return tags, nil
}

func (s *MemoryStore) DeleteTags(ctx context.Context, owner models.TagOwner, entityIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := toSet(entityIDs)
	for id, t := range s.data.tags {
		if t.EntityType == owner && targets[t.EntityID] {
			remember(s, s.data.tags, id)
			delete(s.data.tags, id)
		}
	}
	return nil
}

func (s *MemoryStore) CreateAttachment(ctx context.Context, attachment *models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attachment.ID = s.track(attachment.ID)
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now().UTC()
	}
	remember(s, s.data.attachments, attachment.ID)
	s.data.attachments[attachment.ID] = *attachment
	return nil
}

func (s *MemoryStore) ListAttachments(ctx context.Context, taskID string) ([]models.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var attachments []models.Attachment
	for _, a := range s.data.attachments {
		if a.TaskID == taskID {
			attachments = append(attachments, a)
		}
	}
	sort.Slice(attachments, func(i, j int) bool { return s.before(attachments[i].ID, attachments[j].ID) })
	return attachments, nil
}

func (s *MemoryStore) DeleteAttachments(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.data.attachments {
		if a.TaskID == taskID {
			remember(s, s.data.attachments, id)
			delete(s.data.attachments, id)
		}
	}
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.track(user.ID)
	remember(s, s.data.users, user.ID)
	s.data.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []models.User
	for _, id := range uniqueIDs(ids) {
		if u, ok := s.data.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *MemoryStore) WhichUsersExist(ctx context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	known := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.data.users[id]; ok {
			known[id] = true
		}
	}
	return known, nil
}

func (s *MemoryStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []models.User
	for _, u := range s.data.users {
		if u.Role == role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return s.before(users[i].ID, users[j].ID) })
	return users, nil
}

func (s *MemoryStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification.ID = s.track(notification.ID)
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	remember(s, s.data.notifications, notification.ID)
	s.data.notifications[notification.ID] = *notification
	return nil
}

// ListNotifications returns the notifications of userID, newest first.
// An empty userID lists every notification.
func (s *MemoryStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.data.notifications {
		if userID == "" || n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.before(out[j].ID, out[i].ID) })
	return out, nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.data.notifications[notificationID]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	n.Read = true
	remember(s, s.data.notifications, notificationID)
	s.data.notifications[notificationID] = n
	return nil
}

func stampCreated(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

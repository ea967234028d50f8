package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trello-project/microservices/tasks-service/logging"
	"trello-project/microservices/tasks-service/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type projectMember struct {
	ProjectID string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"primaryKey;type:varchar(36)"`
}

func (projectMember) TableName() string { return "project_members" }

// PostgresStore implements Store with GORM over PostgreSQL.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates or extends the schema for every entity.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&projectMember{},
		&models.Task{},
		&models.Subtask{},
		&models.Comment{},
		&models.Tag{},
		&models.Attachment{},
		&models.Notification{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	for _, kind := range []AssignmentKind{TaskAssignees, SubtaskAssignees} {
		if err := db.Table(string(kind)).AutoMigrate(&models.Assignment{}); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", kind, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

const (
	maxTxAttempts = 3
	txRetryDelay  = 20 * time.Millisecond
)

// WithinTx runs fn in a serializable transaction. Serialization failures
// and deadlocks rerun the whole transaction, up to maxTxAttempts times.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return retrySerializable(ctx, maxTxAttempts, func() error {
		return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, &PostgresStore{db: tx})
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	})
}

func retrySerializable(ctx context.Context, attempts int, run func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = run()
		if err == nil || !isRetryableTxError(err) || attempt == attempts {
			return err
		}
		logging.Logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("TX_RETRY")
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * txRetryDelay):
		}
	}
	return err
}

// isRetryableTxError reports serialization_failure (40001) and
// deadlock_detected (40P01).
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func newUUID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func first[T any](db *gorm.DB, kind, id string) (*T, error) {
	var out T
	if err := db.First(&out, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return nil, fmt.Errorf("error fetching %s: %w", kind, err)
	}
	return &out, nil
}

func (s *PostgresStore) update(ctx context.Context, model any, kind, id string, changes models.Changes) error {
	values := changes.Map()
	if _, ok := values[models.ColUpdatedAt]; !ok {
		values[models.ColUpdatedAt] = time.Now().UTC()
	}
	result := s.conn(ctx).Model(model).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update %s: %w", kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, project *models.Project) error {
	project.ID = newUUID(project.ID)
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		for _, userID := range uniqueIDs(project.Team) {
			if err := tx.Create(&projectMember{ProjectID: project.ID, UserID: userID}).Error; err != nil {
				return fmt.Errorf("failed to add project member: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) loadTeam(ctx context.Context, project *models.Project) error {
	project.Team = []string{}
	return s.conn(ctx).Model(&projectMember{}).
		Where("project_id = ?", project.ID).
		Order("user_id").
		Pluck("user_id", &project.Team).Error
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := first[models.Project](s.conn(ctx), "project", id)
	if err != nil {
		return nil, err
	}
	if err := s.loadTeam(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to load project team: %w", err)
	}
	return project, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := s.conn(ctx).Order("created_at").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	for i := range projects {
		if err := s.loadTeam(ctx, &projects[i]); err != nil {
			return nil, fmt.Errorf("failed to load project team: %w", err)
		}
	}
	return projects, nil
}

func (s *PostgresStore) UpdateProjectProgress(ctx context.Context, id string, progress int) error {
	var changes models.Changes
	changes.Set(models.ColProgress, progress)
	return s.update(ctx, &models.Project{}, "project", id, changes)
}

func (s *PostgresStore) CreateTask(ctx context.Context, task *models.Task) error {
	task.ID = newUUID(task.ID)
	if err := s.conn(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return first[models.Task](s.conn(ctx), "task", id)
}

func (s *PostgresStore) ListTasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	err := s.conn(ctx).Where("project_id = ?", projectID).Order("created_at").Find(&tasks).Error
	return tasks, err
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id string, changes models.Changes) error {
	return s.update(ctx, &models.Task{}, "task", id, changes)
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	return s.conn(ctx).Delete(&models.Task{}, "id = ?", id).Error
}

func (s *PostgresStore) CreateSubtask(ctx context.Context, subtask *models.Subtask) error {
	subtask.ID = newUUID(subtask.ID)
	if err := s.conn(ctx).Create(subtask).Error; err != nil {
		return fmt.Errorf("failed to create subtask: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubtask(ctx context.Context, id string) (*models.Subtask, error) {
	return first[models.Subtask](s.conn(ctx), "subtask", id)
}

func (s *PostgresStore) ListSubtasksByTask(ctx context.Context, taskID string) ([]models.Subtask, error) {
	var subtasks []models.Subtask
	err := s.conn(ctx).Where("task_id = ?", taskID).Order("created_at").Find(&subtasks).Error
	return subtasks, err
}

func (s *PostgresStore) UpdateSubtask(ctx context.Context, id string, changes models.Changes) error {
	return s.update(ctx, &models.Subtask{}, "subtask", id, changes)
}

func (s *PostgresStore) DeleteSubtask(ctx context.Context, id string) error {
	return s.conn(ctx).Delete(&models.Subtask{}, "id = ?", id).Error
}

func (s *PostgresStore) DeleteSubtasksByTask(ctx context.Context, taskID string) error {
	return s.conn(ctx).Where("task_id = ?", taskID).Delete(&models.Subtask{}).Error
}

func (s *PostgresStore) ListAssignees(ctx context.Context, kind AssignmentKind, entityID string) ([]string, error) {
	var ids []string
	err := s.conn(ctx).Table(string(kind)).Where("entity_id = ?", entityID).Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}

func (s *PostgresStore) ReplaceAssignees(ctx context.Context, kind AssignmentKind, entityID string, userIDs []string) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(string(kind)).Where("entity_id = ?", entityID).Delete(&models.Assignment{}).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", kind, err)
		}
		ids := uniqueIDs(userIDs)
		if len(ids) == 0 {
			return nil
		}
		rows := make([]models.Assignment, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, models.Assignment{EntityID: entityID, UserID: id})
		}
		if err := tx.Table(string(kind)).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert %s: %w", kind, err)
		}
		return nil
	})
}

func (s *PostgresStore) DeleteAssignees(ctx context.Context, kind AssignmentKind, entityIDs ...string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Table(string(kind)).Where("entity_id IN ?", entityIDs).Delete(&models.Assignment{}).Error
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = newUUID(comment.ID)
	return s.conn(ctx).Create(comment).Error
}

func (s *PostgresStore) ListTaskComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.conn(ctx).Where("task_id = ? AND subtask_id = ''", taskID).Order("created_at").Find(&comments).Error
	return comments, err
}

func (s *PostgresStore) ListSubtaskComments(ctx context.Context, subtaskID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.conn(ctx).Where("subtask_id = ?", subtaskID).Order("created_at").Find(&comments).Error
	return comments, err
}

func (s *PostgresStore) DeleteTaskComments(ctx context.Context, taskID string) error {
	return s.conn(ctx).Where("task_id = ? AND subtask_id = ''", taskID).Delete(&models.Comment{}).Error
}

func (s *PostgresStore) DeleteSubtaskComments(ctx context.Context, subtaskIDs ...string) error {
	if len(subtaskIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Where("subtask_id IN ?", subtaskIDs).Delete(&models.Comment{}).Error
}

func (s *PostgresStore) CreateTag(ctx context.Context, tag *models.Tag) error {
	tag.ID = newUUID(tag.ID)
	return s.conn(ctx).Create(tag).Error
}

func (s *PostgresStore) ListTags(ctx context.Context, owner models.TagOwner, entityID string) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.conn(ctx).Where("entity_type = ? AND entity_id = ?", owner, entityID).Find(&tags).Error
	return tags, err
}

func (s *PostgresStore) DeleteTags(ctx context.Context, owner models.TagOwner, entityIDs ...string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Where("entity_type = ? AND entity_id IN ?", owner, entityIDs).Delete(&models.Tag{}).Error
}

func (s *PostgresStore) CreateAttachment(ctx context.Context, attachment *models.Attachment) error {
	attachment.ID = newUUID(attachment.ID)
	return s.conn(ctx).Create(attachment).Error
}

func (s *PostgresStore) ListAttachments(ctx context.Context, taskID string) ([]models.Attachment, error) {
	var attachments []models.Attachment
	err := s.conn(ctx).Where("task_id = ?", taskID).Order("created_at").Find(&attachments).Error
	return attachments, err
}

func (s *PostgresStore) DeleteAttachments(ctx context.Context, taskID string) error {
	return s.conn(ctx).Where("task_id = ?", taskID).Delete(&models.Attachment{}).Error
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = newUUID(user.ID)
	return s.conn(ctx).Create(user).Error
}

func (s *PostgresStore) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := s.conn(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

func (s *PostgresStore) WhichUsersExist(ctx context.Context, ids []string) (map[string]bool, error) {
	known := make(map[string]bool)
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return known, nil
	}
	var found []string
	if err := s.conn(ctx).Model(&models.User{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to check users: %w", err)
	}
	for _, id := range found {
		known[id] = true
	}
	return known, nil
}

func (s *PostgresStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := s.conn(ctx).Where("role = ?", role).Order("id").Find(&users).Error
	return users, err
}

func (s *PostgresStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	notification.ID = newUUID(notification.ID)
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	return s.conn(ctx).Create(notification).Error
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.conn(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&notifications).Error
	return notifications, err
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	result := s.conn(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification as read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	return nil
}

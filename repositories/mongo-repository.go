package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trello-project/microservices/tasks-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	projectsCollection      = "projects"
	tasksCollection         = "tasks"
	subtasksCollection      = "subtasks"
	commentsCollection      = "comments"
	tagsCollection          = "tags"
	attachmentsCollection   = "attachments"
	usersCollection         = "users"
	notificationsCollection = "notifications"
)

// MongoStore implements Store on top of MongoDB collections. Transactions
// need a replica set deployment.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(dbName)}
}

func (s *MongoStore) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// EnsureIndexes creates the lookup and uniqueness indexes the store relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		tasksCollection:    {{Keys: bson.D{{Key: "project_id", Value: 1}}}},
		subtasksCollection: {{Keys: bson.D{{Key: "task_id", Value: 1}}}},
		string(TaskAssignees): {{
			Keys:    bson.D{{Key: "entity_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		string(SubtaskAssignees): {{
			Keys:    bson.D{{Key: "entity_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		commentsCollection:      {{Keys: bson.D{{Key: "task_id", Value: 1}}}, {Keys: bson.D{{Key: "subtask_id", Value: 1}}}},
		tagsCollection:          {{Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}}}},
		attachmentsCollection:   {{Keys: bson.D{{Key: "task_id", Value: 1}}}},
		usersCollection:         {{Keys: bson.D{{Key: "role", Value: 1}}}},
		notificationsCollection: {{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}}},
	}
	for collection, specs := range indexes {
		if _, err := s.col(collection).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}

func (s *MongoStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, s)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	return err
}

func newObjectID(id string) string {
	if id != "" {
		return id
	}
	return primitive.NewObjectID().Hex()
}

func findOne[T any](ctx context.Context, col *mongo.Collection, kind, id string) (*T, error) {
	var out T
	err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return nil, fmt.Errorf("error fetching %s: %w", kind, err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter bson.M, sortKey string) ([]T, error) {
	opts := options.Find()
	if sortKey != "" {
		opts.SetSort(bson.D{{Key: sortKey, Value: 1}})
	}
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", col.Name(), err)
	}
	defer cursor.Close(ctx)

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", col.Name(), err)
	}
	return out, nil
}

func setDoc(changes models.Changes) bson.M {
	set := bson.M{}
	for _, ch := range changes {
		set[ch.Column] = ch.Value
	}
	if _, ok := set[models.ColUpdatedAt]; !ok {
		set[models.ColUpdatedAt] = time.Now().UTC()
	}
	return bson.M{"$set": set}
}

func (s *MongoStore) updateByID(ctx context.Context, collection, kind, id string, update bson.M) error {
	result, err := s.col(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", kind, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) deleteMany(ctx context.Context, collection string, filter bson.M) error {
	if _, err := s.col(collection).DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) CreateProject(ctx context.Context, project *models.Project) error {
	project.ID = newObjectID(project.ID)
	stampCreated(&project.CreatedAt, &project.UpdatedAt)
	if project.Team == nil {
		project.Team = []string{}
	}
	if _, err := s.col(projectsCollection).InsertOne(ctx, project); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *MongoStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return findOne[models.Project](ctx, s.col(projectsCollection), "project", id)
}

func (s *MongoStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	return findAll[models.Project](ctx, s.col(projectsCollection), bson.M{}, "created_at")
}

func (s *MongoStore) UpdateProjectProgress(ctx context.Context, id string, progress int) error {
	return s.updateByID(ctx, projectsCollection, "project", id,
		bson.M{"$set": bson.M{"progress": progress, "updated_at": time.Now().UTC()}})
}

func (s *MongoStore) CreateTask(ctx context.Context, task *models.Task) error {
	task.ID = newObjectID(task.ID)
	stampCreated(&task.CreatedAt, &task.UpdatedAt)
	if _, err := s.col(tasksCollection).InsertOne(ctx, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *MongoStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return findOne[models.Task](ctx, s.col(tasksCollection), "task", id)
}

func (s *MongoStore) ListTasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	return findAll[models.Task](ctx, s.col(tasksCollection), bson.M{"project_id": projectID}, "created_at")
}

func (s *MongoStore) UpdateTask(ctx context.Context, id string, changes models.Changes) error {
	return s.updateByID(ctx, tasksCollection, "task", id, setDoc(changes))
}

func (s *MongoStore) DeleteTask(ctx context.Context, id string) error {
	return s.deleteMany(ctx, tasksCollection, bson.M{"_id": id})
}

func (s *MongoStore) CreateSubtask(ctx context.Context, subtask *models.Subtask) error {
	subtask.ID = newObjectID(subtask.ID)
	stampCreated(&subtask.CreatedAt, &subtask.UpdatedAt)
	if _, err := s.col(subtasksCollection).InsertOne(ctx, subtask); err != nil {
		return fmt.Errorf("failed to create subtask: %w", err)
	}
	return nil
}

func (s *MongoStore) GetSubtask(ctx context.Context, id string) (*models.Subtask, error) {
	return findOne[models.Subtask](ctx, s.col(subtasksCollection), "subtask", id)
}

func (s *MongoStore) ListSubtasksByTask(ctx context.Context, taskID string) ([]models.Subtask, error) {
	return findAll[models.Subtask](ctx, s.col(subtasksCollection), bson.M{"task_id": taskID}, "created_at")
}

func (s *MongoStore) UpdateSubtask(ctx context.Context, id string, changes models.Changes) error {
	return s.updateByID(ctx, subtasksCollection, "subtask", id, setDoc(changes))
}

func (s *MongoStore) DeleteSubtask(ctx context.Context, id string) error {
	return s.deleteMany(ctx, subtasksCollection, bson.M{"_id": id})
}

func (s *MongoStore) DeleteSubtasksByTask(ctx context.Context, taskID string) error {
	return s.deleteMany(ctx, subtasksCollection, bson.M{"task_id": taskID})
}

func (s *MongoStore) ListAssignees(ctx context.Context, kind AssignmentKind, entityID string) ([]string, error) {
	edges, err := findAll[models.Assignment](ctx, s.col(string(kind)), bson.M{"entity_id": entityID}, "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.UserID)
	}
	return ids, nil
}

func (s *MongoStore) ReplaceAssignees(ctx context.Context, kind AssignmentKind, entityID string, userIDs []string) error {
	if err := s.deleteMany(ctx, string(kind), bson.M{"entity_id": entityID}); err != nil {
		return err
	}
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, models.Assignment{EntityID: entityID, UserID: id})
	}
	if _, err := s.col(string(kind)).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert %s: %w", kind, err)
	}
	return nil
}

func (s *MongoStore) DeleteAssignees(ctx context.Context, kind AssignmentKind, entityIDs ...string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return s.deleteMany(ctx, string(kind), bson.M{"entity_id": bson.M{"$in": entityIDs}})
}

func (s *MongoStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = newObjectID(comment.ID)
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	if _, err := s.col(commentsCollection).InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (s *MongoStore) ListTaskComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	filter := bson.M{"task_id": taskID, "subtask_id": bson.M{"$exists": false}}
	return findAll[models.Comment](ctx, s.col(commentsCollection), filter, "created_at")
}

func (s *MongoStore) ListSubtaskComments(ctx context.Context, subtaskID string) ([]models.Comment, error) {
	return findAll[models.Comment](ctx, s.col(commentsCollection), bson.M{"subtask_id": subtaskID}, "created_at")
}

func (s *MongoStore) DeleteTaskComments(ctx context.Context, taskID string) error {
	return s.deleteMany(ctx, commentsCollection, bson.M{"task_id": taskID, "subtask_id": bson.M{"$exists": false}})
}

func (s *MongoStore) DeleteSubtaskComments(ctx context.Context, subtaskIDs ...string) error {
	if len(subtaskIDs) == 0 {
		return nil
	}
	return s.deleteMany(ctx, commentsCollection, bson.M{"subtask_id": bson.M{"$in": subtaskIDs}})
}

func (s *MongoStore) CreateTag(ctx context.Context, tag *models.Tag) error {
	tag.ID = newObjectID(tag.ID)
	if _, err := s.col(tagsCollection).InsertOne(ctx, tag); err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

func (s *MongoStore) ListTags(ctx context.Context, owner models.TagOwner, entityID string) ([]models.Tag, error) {
	return findAll[models.Tag](ctx, s.col(tagsCollection), bson.M{"entity_type": owner, "entity_id": entityID}, "")
}

func (s *MongoStore) DeleteTags(ctx context.Context, owner models.TagOwner, entityIDs ...string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return s.deleteMany(ctx, tagsCollection, bson.M{"entity_type": owner, "entity_id": bson.M{"$in": entityIDs}})
}

func (s *MongoStore) CreateAttachment(ctx context.Context, attachment *models.Attachment) error {
	attachment.ID = newObjectID(attachment.ID)
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now().UTC()
	}
	if _, err := s.col(attachmentsCollection).InsertOne(ctx, attachment); err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

func (s *MongoStore) ListAttachments(ctx context.Context, taskID string) ([]models.Attachment, error) {
	return findAll[models.Attachment](ctx, s.col(attachmentsCollection), bson.M{"task_id": taskID}, "created_at")
}

func (s *MongoStore) DeleteAttachments(ctx context.Context, taskID string) error {
	return s.deleteMany(ctx, attachmentsCollection, bson.M{"task_id": taskID})
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = newObjectID(user.ID)
	if _, err := s.col(usersCollection).InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	return findAll[models.User](ctx, s.col(usersCollection), bson.M{"_id": bson.M{"$in": ids}}, "")
}

func (s *MongoStore) WhichUsersExist(ctx context.Context, ids []string) (map[string]bool, error) {
	known := make(map[string]bool)
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return known, nil
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.col(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to check users: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode user id: %w", err)
		}
		known[row.ID] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return known, nil
}

func (s *MongoStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	return findAll[models.User](ctx, s.col(usersCollection), bson.M{"role": role}, "")
}

func (s *MongoStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	notification.ID = newObjectID(notification.ID)
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	if _, err := s.col(notificationsCollection).InsertOne(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.col(notificationsCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return out, nil
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	result, err := s.col(notificationsCollection).UpdateOne(ctx,
		bson.M{"_id": notificationID, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	return nil
}

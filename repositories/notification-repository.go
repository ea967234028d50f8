package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trello-project/microservices/tasks-service/models"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"
)

// CassandraNotificationRepo stores notifications partitioned by recipient,
// newest first.
type CassandraNotificationRepo struct {
	session *gocql.Session
	logger  *logrus.Logger
}

func NewCassandraNotificationRepo(hosts []string, keyspace string, logger *logrus.Logger) (*CassandraNotificationRepo, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = "system"
	cluster.Timeout = 5 * time.Second
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cassandra: %w", err)
	}

	err = session.Query(fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s
		 WITH replication = {
			'class': 'SimpleStrategy',
			'replication_factor': 1
		 }`, keyspace)).Exec()
	session.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to create keyspace %s: %w", keyspace, err)
	}

	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	session, err = cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to keyspace %s: %w", keyspace, err)
	}

	logger.Infof("Event ID: CASSANDRA_CONNECTED, Description: Connected to Cassandra keyspace %s at %s", keyspace, strings.Join(hosts, ","))
	return &CassandraNotificationRepo{session: session, logger: logger}, nil
}

func (r *CassandraNotificationRepo) CloseSession() {
	r.session.Close()
	r.logger.Info("Event ID: CASSANDRA_SESSION_CLOSED, Description: Cassandra session closed")
}

func (r *CassandraNotificationRepo) CreateTable() error {
	err := r.session.Query(
		`CREATE TABLE IF NOT EXISTS notifications (
			user_id TEXT,
			created_at TIMESTAMP,
			id UUID,
			type TEXT,
			title TEXT,
			message TEXT,
			related_id TEXT,
			related_type TEXT,
			read BOOLEAN,
			PRIMARY KEY ((user_id), created_at, id)
		) WITH CLUSTERING ORDER BY (created_at DESC, id ASC)`).Exec()
	if err != nil {
		return fmt.Errorf("failed to create notifications table: %w", err)
	}
	return nil
}

func (r *CassandraNotificationRepo) CreateNotification(ctx context.Context, n *models.Notification) error {
	id := gocql.TimeUUID()
	if n.ID != "" {
		parsed, err := gocql.ParseUUID(n.ID)
		if err != nil {
			return fmt.Errorf("invalid notification id %q: %w", n.ID, err)
		}
		id = parsed
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = id.Time().UTC().Truncate(time.Millisecond)
	}

	err := r.session.Query(
		`INSERT INTO notifications (user_id, created_at, id, type, title, message, related_id, related_type, read)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.CreatedAt, id, string(n.Type), n.Title, n.Message, n.RelatedID, n.RelatedType, n.Read,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	n.ID = id.String()
	return nil
}

func (r *CassandraNotificationRepo) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	iter := r.session.Query(
		`SELECT id, user_id, type, title, message, related_id, related_type, read, created_at
		 FROM notifications WHERE user_id = ?`, userID).WithContext(ctx).Iter()

	var (
		out     []models.Notification
		id      gocql.UUID
		n       models.Notification
		typeStr string
	)
	for iter.Scan(&id, &n.UserID, &typeStr, &n.Title, &n.Message, &n.RelatedID, &n.RelatedType, &n.Read, &n.CreatedAt) {
		n.ID = id.String()
		n.Type = models.NotificationType(typeStr)
		out = append(out, n)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead looks up the clustering key inside the recipient's
// partition before updating the row.
func (r *CassandraNotificationRepo) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	id, err := gocql.ParseUUID(notificationID)
	if err != nil {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}

	var createdAt time.Time
	err = r.session.Query(
		`SELECT created_at FROM notifications WHERE user_id = ? AND id = ? ALLOW FILTERING`,
		userID, id).WithContext(ctx).Scan(&createdAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
		}
		return fmt.Errorf("failed to load notification: %w", err)
	}

	err = r.session.Query(
		`UPDATE notifications SET read = true WHERE user_id = ? AND created_at = ? AND id = ?`,
		userID, createdAt, id).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

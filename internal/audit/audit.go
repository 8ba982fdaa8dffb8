// Package audit records who did what to which capture record. Events land in
// postgres asynchronously; a failed audit write never fails the request that
// produced it.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"capture-service/internal/auth"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

type ResourceType string

const (
	ResourceTypeAsset ResourceType = "asset"
	ResourceTypeJob   ResourceType = "job"
	ResourceTypeUser  ResourceType = "user"
)

type Action string

const (
	ActionCreate    Action = "create"
	ActionFinalize  Action = "finalize"
	ActionReconcile Action = "reconcile"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionTerminate Action = "terminate"
	ActionSync      Action = "sync"
	ActionExport    Action = "export"
	ActionLogin     Action = "login"
	ActionSignup    Action = "signup"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusDenied  Status = "denied"
)

type Event struct {
	ID           uuid.UUID
	EventType    string
	ActorType    ActorType
	ActorID      *uuid.UUID
	ResourceType ResourceType
	ResourceID   *uuid.UUID
	Action       Action
	Status       Status
	IPAddress    string
	UserAgent    string
	RequestID    string
	Metadata     map[string]any
	ErrorMessage string
	CreatedAt    time.Time
}

const asyncWriteTimeout = 2 * time.Second

type Logger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewLogger(pool *pgxpool.Pool, logger *zap.Logger) *Logger {
	return &Logger{pool: pool, logger: logger}
}

// Log records an audit event synchronously.
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, actor_type, actor_id, resource_type, resource_id,
			action, status, ip_address, user_agent, request_id, metadata, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = l.pool.Exec(ctx, query,
		event.ID,
		event.EventType,
		event.ActorType,
		event.ActorID,
		event.ResourceType,
		event.ResourceID,
		event.Action,
		event.Status,
		event.IPAddress,
		event.UserAgent,
		event.RequestID,
		metadataJSON,
		event.ErrorMessage,
		event.CreatedAt,
	)

	return err
}

// LogFromContext builds an event from the request context and writes it in
// the background.
func (l *Logger) LogFromContext(c echo.Context, resourceType ResourceType, resourceID *uuid.UUID, action Action, status Status, metadata map[string]any) {
	event := &Event{
		EventType:    string(action) + "_" + string(resourceType),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		Status:       status,
		IPAddress:    c.RealIP(),
		UserAgent:    c.Request().UserAgent(),
		RequestID:    c.Response().Header().Get(echo.HeaderXRequestID),
		Metadata:     metadata,
	}

	if userID := c.Get(auth.ContextKeyUserID); userID != nil {
		if uid, ok := userID.(uuid.UUID); ok {
			event.ActorType = ActorTypeUser
			event.ActorID = &uid
		}
	} else {
		event.ActorType = ActorTypeSystem
	}

	ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
	go func() {
		defer cancel()
		if err := l.Log(ctx, event); err != nil {
			l.logger.Warn("audit write failed",
				zap.String("event_type", event.EventType),
				zap.Error(err))
		}
	}()
}

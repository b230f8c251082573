package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/ecommerce-accounts/internal/domain"
	pkgkafka "github.com/utafrali/ecommerce-accounts/pkg/kafka"
	"github.com/utafrali/ecommerce-accounts/pkg/logger"
)

// Kafka topic constants for user domain events.
const (
	TopicUserRegistered    = "ecommerce.user.registered"
	TopicUserUpdated       = "ecommerce.user.updated"
	TopicUserStatusChanged = "ecommerce.user.status_changed"
)

// Event type constants carried in the envelope.
const (
	TypeUserRegistered    = "user.registered"
	TypeUserUpdated       = "user.updated"
	TypeUserStatusChanged = "user.status_changed"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from the accounts service.
const SourceAccountsService = "accounts-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserUpdatedData is the payload for a user.updated event.
type UserUpdatedData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

// UserStatusChangedData is the payload for a user.status_changed event.
type UserStatusChangedData struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// Publisher writes envelopes to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes user domain events to Kafka.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the accounts service.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, TypeUserRegistered, user.ID, UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// PublishUserUpdated publishes a user.updated event.
func (p *Producer) PublishUserUpdated(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserUpdated, TypeUserUpdated, user.ID, UserUpdatedData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
	})
}

// PublishUserStatusChanged publishes a user.status_changed event after an
// activation toggle.
func (p *Producer) PublishUserStatusChanged(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserStatusChanged, TypeUserStatusChanged, user.ID, UserStatusChangedData{
		ID:       user.ID,
		Email:    user.Email,
		IsActive: user.IsActive,
	})
}

func (p *Producer) publish(ctx context.Context, topic, eventType, userID string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, userID, AggregateTypeUser, SourceAccountsService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event = event.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published "+eventType+" event",
		slog.String("user_id", userID),
	)

	return nil
}

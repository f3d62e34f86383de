package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/quizlabhq/quizlab-backend/pkg/config"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
)

// Client publishes report-generation events. The PDF rendering pipeline
// consumes them out of band; this service only emits the trigger.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var errProjectIDRequired = errors.New("gcp project id is required")

// NewClient creates a Pub/Sub v2 client bound to the report topic.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}

	return &Client{
		client:    psClient,
		projectID: gcp.ProjectID,
		cfg:       cfg,
	}, nil
}

type reportGenerateEvent struct {
	EventType      string    `json:"event_type"`
	OrderID        string    `json:"order_id"`
	QuizResponseID string    `json:"quiz_response_id"`
	Email          string    `json:"email"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PublishReportGenerate emits a report.generate event for a freshly paid
// order and blocks until the server acknowledges it.
func (c *Client) PublishReportGenerate(ctx context.Context, orderID, quizResponseID uuid.UUID, email string) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}

	payload, err := json.Marshal(reportGenerateEvent{
		EventType:      "report.generate",
		OrderID:        orderID.String(),
		QuizResponseID: quizResponseID.String(),
		Email:          email,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding report event: %w", err)
	}

	publisher := c.client.Publisher(c.topicResourceName(c.cfg.ReportTopic))
	result := publisher.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event_type": "report.generate"},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing report event: %w", err)
	}
	return nil
}

func (c *Client) topicResourceName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "projects/") {
		return trimmed
	}
	return fmt.Sprintf("projects/%s/topics/%s", c.projectID, trimmed)
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

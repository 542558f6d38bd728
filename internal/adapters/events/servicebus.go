package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

// messageSender is the part of *azservicebus.Sender the publisher uses.
type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// ServiceBusPublisher sends approval events to an Azure Service Bus queue.
// Messages of one request share a session so consumers see them in order.
type ServiceBusPublisher struct {
	client *azservicebus.Client
	sender messageSender
	queue  string
}

var _ portssvc.EventPublisher = (*ServiceBusPublisher)(nil)

// NewServiceBusPublisher connects to the namespace and opens a sender for queue.
func NewServiceBusPublisher(connectionString, queue string) (*ServiceBusPublisher, error) {
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("failed to create service bus sender for %s: %w", queue, err)
	}
	return &ServiceBusPublisher{client: client, sender: sender, queue: queue}, nil
}

// PublishApprovalEvent sends event as a JSON message.
func (p *ServiceBusPublisher) PublishApprovalEvent(ctx context.Context, event portssvc.ApprovalEvent) error {
	msg, err := newApprovalMessage(event)
	if err != nil {
		return err
	}
	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", event.Type, p.queue, err)
	}
	return nil
}

// Close releases the sender and the client.
func (p *ServiceBusPublisher) Close(ctx context.Context) error {
	if err := p.sender.Close(ctx); err != nil {
		slog.Warn("Failed to close service bus sender", slog.String("error", err.Error()))
	}
	if p.client == nil {
		return nil
	}
	return p.client.Close(ctx)
}

func newApprovalMessage(event portssvc.ApprovalEvent) (*azservicebus.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode approval event: %w", err)
	}
	sessionID := event.Request.ApprovalRequestID
	contentType := "application/json"
	subject := string(event.Type)
	return &azservicebus.Message{
		Body:        payload,
		SessionID:   &sessionID,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]any{
			"organizationID": event.Request.OrganizationID,
			"status":         string(event.Request.Status),
		},
	}, nil
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error {
	args := m.Called(ctx, message, options)
	return args.Error(0)
}

func (m *MockSender) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func approvalEvent() portssvc.ApprovalEvent {
	return portssvc.ApprovalEvent{
		Type: portssvc.ApprovalRequested,
		Request: domain.CurrencyApprovalRequest{
			ApprovalRequestID: "req-1",
			OrganizationID:    "org-1",
			Status:            domain.ApprovalPending,
		},
	}
}

func TestPublishApprovalEventSendsSessionMessage(t *testing.T) {
	sender := new(MockSender)
	p := &ServiceBusPublisher{sender: sender, queue: "payroll-approvals"}

	sender.On("SendMessage", mock.Anything, mock.MatchedBy(func(msg *azservicebus.Message) bool {
		var decoded portssvc.ApprovalEvent
		if err := json.Unmarshal(msg.Body, &decoded); err != nil {
			return false
		}
		return *msg.SessionID == "req-1" &&
			*msg.Subject == string(portssvc.ApprovalRequested) &&
			msg.ApplicationProperties["organizationID"] == "org-1" &&
			decoded.Request.ApprovalRequestID == "req-1"
	}), (*azservicebus.SendMessageOptions)(nil)).Return(nil).Once()

	require.NoError(t, p.PublishApprovalEvent(context.Background(), approvalEvent()))
	sender.AssertExpectations(t)
}

func TestPublishApprovalEventWrapsSendError(t *testing.T) {
	sender := new(MockSender)
	p := &ServiceBusPublisher{sender: sender, queue: "payroll-approvals"}
	sendErr := errors.New("amqp link detached")
	sender.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(sendErr).Once()

	err := p.PublishApprovalEvent(context.Background(), approvalEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, sendErr)
	assert.Contains(t, err.Error(), "payroll-approvals")
}

func TestCloseWithoutClient(t *testing.T) {
	sender := new(MockSender)
	sender.On("Close", mock.Anything).Return(nil).Once()
	p := &ServiceBusPublisher{sender: sender}
	assert.NoError(t, p.Close(context.Background()))
	sender.AssertExpectations(t)
}

func TestLogPublisherNeverFails(t *testing.T) {
	assert.NoError(t, LogPublisher{}.PublishApprovalEvent(context.Background(), approvalEvent()))
}

package handlers

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/internal/api/jsonrpcx"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/setting"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// Notification methods pushed to stream clients
const (
	MethodSettingCreated = "setting.created"
	MethodSettingUpdated = "setting.updated"
	MethodSettingRemoved = "setting.removed"
)

// SSEBroadcaster interface for broadcasting SSE messages
type SSEBroadcaster interface {
	BroadcastToUsers(targetUsers []string, notification jsonrpcx.JsonRpcNotification)
	BroadcastToAll(notification jsonrpcx.JsonRpcNotification)
}

// SSEEventHandler turns setting events into notifications for every
// connected stream client on this server
type SSEEventHandler struct {
	sseBroadcaster SSEBroadcaster
	logger         *logger.Logger
}

// NewSSEEventHandler creates a new SSE event handler
func NewSSEEventHandler(sseBroadcaster SSEBroadcaster, logger *logger.Logger) *SSEEventHandler {
	return &SSEEventHandler{
		sseBroadcaster: sseBroadcaster,
		logger:         logger.WithComponent("sse-event-handler"),
	}
}

// Handlers returns the event handlers to register on the processor
func (h *SSEEventHandler) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		cqrs.NewEventHandler("SSESettingCreated", h.HandleSettingCreatedEvent),
		cqrs.NewEventHandler("SSESettingUpdated", h.HandleSettingUpdatedEvent),
		cqrs.NewEventHandler("SSESettingRemoved", h.HandleSettingRemovedEvent),
	}
}

// HandleSettingCreatedEvent broadcasts the full new setting
func (h *SSEEventHandler) HandleSettingCreatedEvent(ctx context.Context, event *setting.SettingCreatedEvent) error {
	h.logger.Debug("Handling setting created event",
		zap.String("settingId", event.SettingID),
		zap.String("requestId", event.RequestID))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(MethodSettingCreated, map[string]interface{}{
		"id":         event.SettingID,
		"version":    event.Version,
		"setting":    event.Setting,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
		"request_id": event.RequestID,
	}))
	return nil
}

// HandleSettingUpdatedEvent broadcasts only the changed fields
func (h *SSEEventHandler) HandleSettingUpdatedEvent(ctx context.Context, event *setting.SettingUpdatedEvent) error {
	h.logger.Debug("Handling setting updated event",
		zap.String("settingId", event.SettingID),
		zap.String("requestId", event.RequestID))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(MethodSettingUpdated, map[string]interface{}{
		"id":         event.SettingID,
		"version":    event.Version,
		"changes":    event.Changes,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
		"request_id": event.RequestID,
	}))
	return nil
}

// HandleSettingRemovedEvent broadcasts the removed id
func (h *SSEEventHandler) HandleSettingRemovedEvent(ctx context.Context, event *setting.SettingRemovedEvent) error {
	h.logger.Debug("Handling setting removed event",
		zap.String("settingId", event.SettingID),
		zap.String("requestId", event.RequestID))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(MethodSettingRemoved, map[string]interface{}{
		"id":         event.SettingID,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
		"request_id": event.RequestID,
	}))
	return nil
}

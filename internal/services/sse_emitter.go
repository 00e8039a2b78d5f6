package services

import (
	"context"

	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/realtime"
	"github.com/yungbote/coursehub-backend/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

type HubEmitter struct{ Hub *realtime.Hub }

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.Hub.Broadcast(msg)
}

// RedisEmitter publishes through the bus so every instance's hub receives the message via
// its forwarder. When publishing fails the message is delivered to the local hub only.
type RedisEmitter struct {
	Bus bus.Bus
	Hub *realtime.Hub
	Log *logger.Logger
}

func (e *RedisEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if err := e.Bus.Publish(ctx, msg); err != nil {
		observability.Current().IncRealtimePublishError()
		if e.Log != nil {
			e.Log.Warn("realtime publish failed, delivering locally", "channel", msg.Channel, "error", err)
		}
		if e.Hub != nil {
			e.Hub.Broadcast(msg)
		}
	}
}

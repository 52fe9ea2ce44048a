package channel

import (
	"context"

	"go.uber.org/zap"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/pkg/logger"
)

// Pusher fans a notification out to the user's live connections. The realtime
// gateway implements it; a nil pusher means no live fan-out.
type Pusher interface {
	Push(ctx context.Context, userID string, n *core.Notification) int
}

// InAppAdapter is the in-app channel. The durable record is written by the
// orchestrator before dispatch, so delivery here only pushes to live
// connections and cannot fail: a user with no open connection reads the
// notification on next poll.
type InAppAdapter struct {
	pusher Pusher
}

func NewInAppAdapter(pusher Pusher) *InAppAdapter {
	return &InAppAdapter{pusher: pusher}
}

func (a *InAppAdapter) Channel() core.Channel { return core.ChannelInApp }

func (a *InAppAdapter) Deliver(ctx context.Context, n *core.Notification, _ *core.Preferences) error {
	if a.pusher == nil {
		return nil
	}
	pushed := a.pusher.Push(ctx, n.UserID, n)
	if pushed > 0 {
		logger.Debug("pushed notification to live connections",
			zap.String("notificationID", n.ID), zap.Int("connections", pushed))
	}
	return nil
}

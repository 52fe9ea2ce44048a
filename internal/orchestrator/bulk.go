package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"fileops.io/notifyd/internal/pkg/logger"
)

// bulkBatchSize bounds how many sends run concurrently inside one bulk call.
const bulkBatchSize = 100

// BulkItem is one recipient's outcome in a bulk send.
type BulkItem struct {
	UserID         string `json:"userId"`
	NotificationID string `json:"notificationId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// BulkResult summarizes a bulk send.
type BulkResult struct {
	Sent   int        `json:"sent"`
	Failed int        `json:"failed"`
	Items  []BulkItem `json:"items"`
}

// SendBulk fans the same notification out to many recipients. Recipients are
// processed in batches; one recipient's failure (disabled user, storage
// error) never aborts the rest.
func (o *Orchestrator) SendBulk(ctx context.Context, userIDs []string, in SendInput) (*BulkResult, error) {
	if err := validateSend(&SendInput{
		UserID: "bulk", Type: in.Type, Priority: in.Priority, Channels: in.Channels,
	}); err != nil {
		return nil, err
	}

	result := &BulkResult{Items: make([]BulkItem, len(userIDs))}

	for start := 0; start < len(userIDs); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				item := BulkItem{UserID: userIDs[i]}
				one := in
				one.UserID = userIDs[i]
				res, err := o.Send(ctx, one)
				if err != nil {
					item.Error = err.Error()
				} else {
					item.NotificationID = res.Notification.ID
				}
				result.Items[i] = item
			}(i)
		}
		wg.Wait()
	}

	for _, item := range result.Items {
		if item.Error == "" {
			result.Sent++
		} else {
			result.Failed++
		}
	}
	logger.Info("bulk send finished",
		zap.Int("recipients", len(userIDs)),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

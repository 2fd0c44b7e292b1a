package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/client"
	"radio-api/internal/model"
	"radio-api/internal/util"
)

const (
	archiveBatchSize    = 200
	archiveFlushTimeout = 5 * time.Second

	insertSecurityEvents = `INSERT INTO security_events (event_id, event_type, action, client_id, ip_address, bucket, detail, created_at)`
)

// Archiver drains the audit topic into the ClickHouse security_events table.
// Events are buffered and flushed on size or age, whichever comes first.
type Archiver struct {
	consumer   *client.KafkaConsumer
	clickhouse *client.ClickHouseClient
}

func NewArchiver(consumer *client.KafkaConsumer, clickhouse *client.ClickHouseClient) *Archiver {
	return &Archiver{consumer: consumer, clickhouse: clickhouse}
}

// Run consumes until ctx is cancelled. The final partial batch is flushed on
// shutdown with a short grace period.
func (a *Archiver) Run(ctx context.Context) error {
	util.Info("Audit archiver started")

	buffer := make([][]interface{}, 0, archiveBatchSize)
	flushTimer := time.NewTimer(archiveFlushTimeout)
	defer flushTimer.Stop()

	flush := func(flushCtx context.Context) {
		if len(buffer) == 0 {
			return
		}
		if err := a.clickhouse.BatchInsert(flushCtx, insertSecurityEvents, buffer); err != nil {
			util.Error("Failed to archive audit batch",
				zap.Int("batch_size", len(buffer)),
				zap.Error(err))
		} else {
			util.Debug("Audit batch archived", zap.Int("batch_size", len(buffer)))
		}
		buffer = buffer[:0]
	}

	messages := make(chan *model.SecurityEvent)
	readErr := make(chan error, 1)

	go func() {
		defer close(messages)
		for {
			msg, err := a.consumer.ConsumeMessage(ctx)
			if err != nil {
				readErr <- err
				return
			}

			var event model.SecurityEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				util.Warn("Dropping malformed audit message", zap.Error(err))
				continue
			}

			select {
			case messages <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			util.Info("Audit archiver stopped")
			return ctx.Err()

		case err := <-readErr:
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			if ctx.Err() != nil {
				util.Info("Audit archiver stopped")
				return ctx.Err()
			}
			util.Error("Audit consumer failed", zap.Error(err))
			return err

		case event, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			buffer = append(buffer, []interface{}{
				event.EventID, event.EventType, event.Action, event.ClientID,
				event.IPAddress, uint8(event.Bucket), event.Detail, event.CreatedAt,
			})
			if len(buffer) >= archiveBatchSize {
				flush(ctx)
				if !flushTimer.Stop() {
					select {
					case <-flushTimer.C:
					default:
					}
				}
				flushTimer.Reset(archiveFlushTimeout)
			}

		case <-flushTimer.C:
			flush(ctx)
			flushTimer.Reset(archiveFlushTimeout)
		}
	}
}

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/masa162/imgbase/internal/service"
)

// PendingSweeper is implemented by *service.UploadService.
type PendingSweeper interface {
	SweepPending(ctx context.Context, olderThan time.Duration, limit int) (service.SweepResult, error)
}

type Processor struct {
	sweeper    PendingSweeper
	pendingTTL time.Duration
	sweepBatch int
	logger     zerolog.Logger
}

func NewProcessor(sweeper PendingSweeper, pendingTTL time.Duration, sweepBatch int, logger zerolog.Logger) *Processor {
	return &Processor{
		sweeper:    sweeper,
		pendingTTL: pendingTTL,
		sweepBatch: sweepBatch,
		logger:     logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var task Task
	if err := decodePayload(msg.Values, &task); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch task.Type {
	case TypeSweepPending:
		return p.handleSweepPending(ctx, msg.ID, task)
	default:
		p.logger.Warn().Str("type", task.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *Task) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleSweepPending(ctx context.Context, messageID string, task Task) error {
	olderThan := p.pendingTTL
	if task.OlderThan != "" {
		d, err := time.ParseDuration(task.OlderThan)
		if err != nil {
			return fmt.Errorf("parse olderThan: %w", err)
		}
		olderThan = d
	}

	limit := p.sweepBatch
	if task.Limit != "" {
		n, err := strconv.Atoi(task.Limit)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid limit %q", task.Limit)
		}
		limit = n
	}

	start := time.Now()
	result, err := p.sweeper.SweepPending(ctx, olderThan, limit)
	if err != nil {
		return fmt.Errorf("sweep pending: %w", err)
	}

	p.logger.Info().
		Str("message_id", messageID).
		Dur("older_than", olderThan).
		Int("completed", result.Completed).
		Int("reaped", result.Reaped).
		Int("failed", result.Failed).
		Dur("took", time.Since(start)).
		Msg("pending sweep finished")
	return nil
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/hackathon-leaderboard/internal/config"
	"github.com/hackathon-leaderboard/internal/domain"
)

// ScoreEdit is a judge's score edit as published on the topic
type ScoreEdit struct {
	TeamID      string    `json:"team_id"`
	RoundID     string    `json:"round_id"`
	Points      int       `json:"points"`
	ActorEmail  string    `json:"actor_email"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}

// Validate checks that the required fields are present
func (e ScoreEdit) Validate() error {
	switch {
	case e.TeamID == "":
		return fmt.Errorf("%w: team_id is required", domain.ErrInvalidRequest)
	case e.RoundID == "":
		return fmt.Errorf("%w: round_id is required", domain.ErrInvalidRequest)
	case strings.TrimSpace(e.ActorEmail) == "":
		return fmt.Errorf("%w: actor_email is required", domain.ErrInvalidRequest)
	}
	return nil
}

// ScoreEditor applies score edits on behalf of a user
type ScoreEditor interface {
	UserByEmail(email string) (domain.User, error)
	UpdateScore(ctx context.Context, teamID, roundID string, points int, actor domain.User) (domain.Team, error)
}

// Consumer consumes judge score edits from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	editor        ScoreEditor
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, editor ScoreEditor, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		editor:        editor,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	// Each session gets its own ready channel; Start only waits on the first.
	ready := make(chan struct{})

	c.wg.Add(1)
	go func(sessionReady chan struct{}) {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				config: c.config,
				editor: c.editor,
				logger: c.logger,
				ready:  sessionReady,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			sessionReady = make(chan struct{})
		}
	}(ready)

	// Wait until consumer is ready
	select {
	case <-ready:
		c.logger.Info("Kafka consumer ready")
	case <-c.ctx.Done():
		return c.ctx.Err()
	}

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	config *config.KafkaConfig
	editor ScoreEditor
	logger *slog.Logger
	ready  chan struct{}
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition. Edits are applied
// in offset order so the last edit of a score wins.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	batch := make([]ScoreEdit, 0, h.config.BatchSize)
	batchTimer := time.NewTimer(h.config.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		applied := h.applyBatch(ctx, batch)
		h.logger.Debug("processed batch", "batch_size", len(batch), "applied", applied)

		batch = batch[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			// Process remaining batch before exit
			processBatch()
			return nil

		case <-batchTimer.C:
			processBatch()
			batchTimer.Reset(h.config.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				processBatch()
				return nil
			}

			edit, err := decodeEdit(message.Value)
			if err != nil {
				h.logger.Warn("skipping score edit",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, edit)
			session.MarkMessage(message, "")

			if len(batch) >= h.config.BatchSize {
				processBatch()
				batchTimer.Reset(h.config.BatchTimeout)
			}
		}
	}
}

// applyBatch applies edits in order and returns how many were committed
func (h *consumerGroupHandler) applyBatch(ctx context.Context, batch []ScoreEdit) int {
	applied := 0
	for _, edit := range batch {
		if err := applyEdit(ctx, h.editor, edit); err != nil {
			if errors.Is(err, domain.ErrRemoteNotificationFailed) {
				// Committed locally; only the outbound call failed.
				applied++
			}
			h.logger.Error("failed to apply score edit",
				"team_id", edit.TeamID,
				"round_id", edit.RoundID,
				"actor_email", edit.ActorEmail,
				"error", err,
			)
			continue
		}
		applied++
	}
	return applied
}

func decodeEdit(value []byte) (ScoreEdit, error) {
	var edit ScoreEdit
	if err := json.Unmarshal(value, &edit); err != nil {
		return ScoreEdit{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if err := edit.Validate(); err != nil {
		return ScoreEdit{}, err
	}
	return edit, nil
}

// applyEdit resolves the submitting judge and runs the edit under their
// identity, so the usual permission check applies.
func applyEdit(ctx context.Context, editor ScoreEditor, edit ScoreEdit) error {
	actor, err := editor.UserByEmail(edit.ActorEmail)
	if err != nil {
		return fmt.Errorf("resolving actor %s: %w", edit.ActorEmail, err)
	}
	if _, err := editor.UpdateScore(ctx, edit.TeamID, edit.RoundID, edit.Points, actor); err != nil {
		return fmt.Errorf("updating score: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"

	"github.com/tenroll/internal/config"
	"github.com/tenroll/internal/domain"
)

// events-tail follows the game event topic and logs every event. Useful for
// watching a running deployment or verifying the publisher end to end.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	fromStart := flag.Bool("from-start", false, "Replay the topic from the oldest offset")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	if *fromStart {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	group, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID, saramaConfig)
	if err != nil {
		logger.Error("failed to create consumer group", "error", err)
		os.Exit(1)
	}
	defer group.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	logger.Info("tailing game events",
		"brokers", cfg.Kafka.Brokers,
		"topic", cfg.Kafka.Topic,
		"group_id", cfg.Kafka.GroupID,
	)

	tailer := &eventTailer{logger: logger}
	for {
		if err := group.Consume(ctx, []string{cfg.Kafka.Topic}, tailer); err != nil {
			if err == sarama.ErrClosedConsumerGroup {
				return
			}
			logger.Error("error from consumer", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// eventTailer implements sarama.ConsumerGroupHandler
type eventTailer struct {
	logger *slog.Logger
}

func (t *eventTailer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (t *eventTailer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim logs messages from a topic partition
func (t *eventTailer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var event domain.GameEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				t.logger.Warn("failed to unmarshal message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			attrs := []any{
				"event_type", event.EventType,
				"game_id", event.GameID,
				"timestamp", event.Timestamp,
				"partition", message.Partition,
				"offset", message.Offset,
			}
			switch event.EventType {
			case domain.EventRollRecorded:
				attrs = append(attrs, "roll_index", event.RollIndex, "sum", event.Sum)
			case domain.EventGameFinished:
				attrs = append(attrs, "total_score", event.TotalScore, "player_name", event.PlayerName)
			}
			t.logger.Info("game event", attrs...)

			session.MarkMessage(message, "")
		}
	}
}

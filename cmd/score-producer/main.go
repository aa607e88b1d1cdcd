package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/hackathon-leaderboard/internal/kafka"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "score-producer",
		Usage: "publish judge score edits to the leaderboard topic",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "brokers",
				Value:   "localhost:9092",
				Usage:   "Kafka brokers (comma-separated)",
				EnvVars: []string{"KAFKA_BROKERS"},
			},
			&cli.StringFlag{
				Name:  "topic",
				Value: "hackathon-score-edits",
				Usage: "Kafka topic",
			},
			&cli.StringFlag{
				Name:  "actor",
				Value: "admin@manipal.edu",
				Usage: "email of the judge submitting the edits",
			},
		},
		Commands: []*cli.Command{
			sendCommand(),
			simulateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "publish a single score edit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "team", Required: true, Usage: "team ID"},
			&cli.StringFlag{Name: "round", Required: true, Usage: "round ID"},
			&cli.IntFlag{Name: "points", Required: true, Usage: "points to award"},
		},
		Action: func(c *cli.Context) error {
			edit := kafka.ScoreEdit{
				TeamID:      c.String("team"),
				RoundID:     c.String("round"),
				Points:      c.Int("points"),
				ActorEmail:  c.String("actor"),
				SubmittedAt: time.Now().UTC(),
			}
			if err := edit.Validate(); err != nil {
				return err
			}

			config := sarama.NewConfig()
			config.Producer.RequiredAcks = sarama.WaitForAll
			config.Producer.Return.Successes = true

			producer, err := sarama.NewSyncProducer(brokerList(c), config)
			if err != nil {
				return fmt.Errorf("creating producer: %w", err)
			}
			defer producer.Close()

			msg, err := newMessage(c.String("topic"), edit)
			if err != nil {
				return err
			}
			partition, offset, err := producer.SendMessage(msg)
			if err != nil {
				return fmt.Errorf("sending edit: %w", err)
			}

			fmt.Printf("✓ %s %s = %d (partition %d, offset %d)\n", edit.TeamID, edit.RoundID, edit.Points, partition, offset)
			return nil
		},
	}
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "publish random score edits continuously",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "rate", Value: 2, Usage: "edits per second"},
			&cli.DurationFlag{Name: "duration", Usage: "how long to run (0 = until interrupted)"},
			&cli.Int64Flag{Name: "seed", Usage: "random seed (0 = time based)"},
		},
		Action: func(c *cli.Context) error {
			rate := c.Int("rate")
			if rate <= 0 {
				return fmt.Errorf("rate must be positive, got %d", rate)
			}
			seed := c.Int64("seed")
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			return simulate(c, rate, c.Duration("duration"), newEditGenerator(seed, c.String("actor")))
		},
	}
}

func simulate(c *cli.Context, rate int, duration time.Duration, gen *editGenerator) error {
	topic := c.String("topic")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Hackathon Score Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", c.String("brokers"))
	fmt.Printf("  Topic:            %s\n", topic)
	fmt.Printf("  Actor:            %s\n", c.String("actor"))
	fmt.Printf("  Edits/sec:        %d\n", rate)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList(c), config)
	if err != nil {
		return fmt.Errorf("creating producer: %w", err)
	}

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	shutdown := func(reason string) error {
		fmt.Printf("\n\n%s, shutting down...\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
		return nil
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var deadline <-chan time.Time
	if duration > 0 {
		deadline = time.After(duration)
	}

	fmt.Println("Press Ctrl+C to stop")
	var editCount int64

	for {
		select {
		case <-sigChan:
			return shutdown("Interrupted")

		case <-deadline:
			return shutdown("Duration reached")

		case <-ticker.C:
			edit := gen.Next()
			msg, err := newMessage(topic, edit)
			if err != nil {
				log.Printf("Failed to encode edit: %v", err)
				continue
			}
			producer.Input() <- msg
			atomic.AddInt64(&editCount, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Edits: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&editCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}

// newMessage keys edits by team so a team's edits stay ordered on one partition
func newMessage(topic string, edit kafka.ScoreEdit) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(edit)
	if err != nil {
		return nil, fmt.Errorf("encoding edit: %w", err)
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(edit.TeamID),
		Value: sarama.ByteEncoder(data),
	}, nil
}

func brokerList(c *cli.Context) []string {
	var brokers []string
	for _, b := range strings.Split(c.String("brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

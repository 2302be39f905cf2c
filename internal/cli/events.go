package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/aihub/docsearch/internal/kafka"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow document ingestion events",
	Long:  `Consumes the document event topic and prints each event until interrupted.`,
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka is not configured")
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.Topic})
	if err != nil {
		return err
	}
	defer consumer.Close()

	consumer.RegisterHandler(cfg.Kafka.Topic, func(ctx context.Context, message *sarama.ConsumerMessage) error {
		printEvent(cmd, message.Value)
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Listening on %s (group %s)\n", cfg.Kafka.Topic, cfg.Kafka.GroupID)
	consumer.Run(ctx)
	return nil
}

func printEvent(cmd *cobra.Command, payload []byte) {
	event, err := kafka.ParseDocumentEvent(payload)
	if err != nil {
		cmd.PrintErrf("skipping malformed event: %v\n", err)
		return
	}
	cmd.Printf("%s  %-18s %s  %s  chunks=%d embedded=%d\n",
		event.Timestamp.Format("2006-01-02 15:04:05"), event.Type, event.DocumentID,
		event.Filename, event.Chunks, event.Embedded)
}

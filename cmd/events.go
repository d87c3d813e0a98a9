package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marquee/apiserver/config"
	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/internal/mq"
	"github.com/marquee/apiserver/types"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events on the message broker",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print domain events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log, cfg.Env)

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is none; nothing to tail")
		}
		defer broker.Close()

		logger.Info("tailing events", "backend", cfg.MQ.Backend, "channel", cfg.MQ.EventsChannel)

		out := json.NewEncoder(cmd.OutOrStdout())
		err = mq.NewEventPublisher(broker, cfg.MQ.EventsChannel).ConsumeEvents(ctx, func(_ context.Context, event types.Event) error {
			return out.Encode(event)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

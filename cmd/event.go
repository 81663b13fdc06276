package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/furahitechstudio/furahitechpay/internal/core/events"
	"github.com/furahitechstudio/furahitechpay/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect payment lifecycle states and publish test state changes to the event bus`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [state]",
	Short: "Publish a test state change",
	Long:  `Publish a test state change to the event bus for testing and debugging`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(args[0])
	},
}

var listStatesCmd = &cobra.Command{
	Use:   "states",
	Short: "List payment lifecycle states",
	Run: func(cmd *cobra.Command, args []string) {
		for _, state := range lifecycleStates {
			fmt.Fprintln(cmd.OutOrStdout(), state)
		}
	},
}

var (
	eventGateway       string
	eventTransactionID string
	eventData          string
)

var lifecycleStates = []string{
	events.StateInstanceAcquired,
	events.StateFlowSelected,
	events.StateMobileSelected,
	events.StateCardSelected,
	events.StatePollingStarted,
	events.StatePollingCancelled,
	events.StatePaymentCompleted,
}

func publishTestEvent(state string) error {
	logger := logger.LoggerWrapper()

	eventBus := events.NewEventBus(logger)

	eventBus.SubscribeTo(state, func(ctx context.Context, event events.Event) error {
		logger.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	testEvent := events.NewStateChangedEvent(state, uuid.NewString(), eventGateway, eventTransactionID, map[string]interface{}{
		"message": eventData,
		"source":  "cli-command",
	})

	logger.Info("publishing test event", "event_type", state, "event_id", testEvent.ID)

	if failed := eventBus.Publish(context.Background(), testEvent); failed > 0 {
		return fmt.Errorf("%d event handlers failed", failed)
	}

	logger.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")
	publishEventCmd.Flags().StringVar(&eventGateway, "gateway", "", "Gateway attached to the state change")
	publishEventCmd.Flags().StringVar(&eventTransactionID, "transaction-id", "", "Transaction attached to the state change")

	eventCmd.AddCommand(publishEventCmd)
	eventCmd.AddCommand(listStatesCmd)

	rootCmd.AddCommand(eventCmd)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	datamodel "github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	"github.com/furahitechstudio/furahitechpay/internal/payment"
)

var (
	pollStatusURL  string
	pollInterval   time.Duration
	pollMaxRetries int
)

var pollCmd = &cobra.Command{
	Use:   "poll [gateway] [transaction-id]",
	Short: "Poll the payment backend until a transaction completes",
	Long:  `Start a status poll for one mobile money transaction and print the presented result. Ctrl+C cancels the poll.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runPoll,
}

func runPoll(cmd *cobra.Command, args []string) error {
	gateway, err := datamodel.ParseGateway(args[0])
	if err != nil {
		return err
	}
	transactionID := args[1]

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := initLogger(cfg)

	// Use command line flags if provided, otherwise use config values
	cfg.StatusAPI.BaseURL = getStringFlag(pollStatusURL, cfg.StatusAPI.BaseURL)
	cfg.Poller.Interval = getDurationFlag(pollInterval, cfg.Poller.Interval)
	cfg.Poller.MaxRetries = getIntFlag(pollMaxRetries, cfg.Poller.MaxRetries)

	ctx := context.Background()
	stack, err := newPaymentStack(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer stack.Close()

	done := make(chan payment.Presentation, 1)
	err = stack.Service.StartPolling(ctx, gateway, transactionID, func(result payment.Presentation) {
		done <- result
	})
	if err != nil {
		return err
	}

	lg.Info("payment poll is running. Press Ctrl+C to stop.",
		"gateway", gateway,
		"transaction_id", transactionID,
		"interval", cfg.Poller.Interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case result := <-done:
		encoded, err := sonic.ConfigStd.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		if !result.Success {
			return fmt.Errorf("%s: %s", result.Label, result.Message)
		}
		return nil
	case sig := <-sigChan:
		lg.Info("received signal, cancelling payment poll", "signal", sig)
		if err := stack.Service.CancelPolling(ctx); err != nil {
			lg.Warn("poll already finished", "error", err)
		}
		state := stack.Service.PollState()
		lg.Info("payment poll cancelled", "retry_count", state.RetryCount)
		return nil
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	pollCmd.Flags().StringVar(&pollStatusURL, "status-url", "", "Payment status API base URL (overrides config)")
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 0, "Delay between status checks (overrides config)")
	pollCmd.Flags().IntVar(&pollMaxRetries, "max-retries", 0, "Checks before giving up with a timeout (overrides config)")
}

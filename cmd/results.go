package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	datamodel "github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	paymentPostgres "github.com/furahitechstudio/furahitechpay/internal/payment/postgres"
)

var (
	resultsGateway string
	resultsLimit   int
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List recorded payment results",
	Long:  `List the most recent terminal payment results stored in the database`,
	RunE:  runResults,
}

func runResults(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled() {
		return errors.New("database source is not configured")
	}

	var gateway datamodel.Gateway
	if resultsGateway != "" {
		if gateway, err = datamodel.ParseGateway(resultsGateway); err != nil {
			return err
		}
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	repo := paymentPostgres.NewPaymentResultRepository(db)
	results, err := repo.List(context.Background(), gateway, resultsLimit)
	if err != nil {
		return fmt.Errorf("failed to list payment results: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRANSACTION\tGATEWAY\tSTATUS\tRETRIES\tCOMPLETED")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.TransactionID, r.Gateway, r.Status, r.RetryCount, r.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func init() {
	resultsCmd.Flags().StringVarP(&resultsGateway, "gateway", "g", "", "only list results for this gateway")
	resultsCmd.Flags().IntVarP(&resultsLimit, "limit", "n", 50, "maximum number of results")
}

package cmd

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/furahitechstudio/furahitechpay/internal/payment"
	"github.com/furahitechstudio/furahitechpay/internal/paymentlog"
)

var (
	validateFile      string
	validateNoContext bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a payment request",
	Long:  `Validate a payment request read from a JSON file and print the selected flow or the rejection`,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := initLogger(cfg)

	raw, err := os.ReadFile(validateFile)
	if err != nil {
		return fmt.Errorf("failed to read request file: %w", err)
	}

	var req payment.ValidateRequest
	if err := sonic.ConfigStd.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("failed to parse request file: %w", err)
	}

	defaults, err := cfg.Payment.Configuration()
	if err != nil {
		return fmt.Errorf("invalid payment defaults: %w", err)
	}
	paymentCfg, err := req.ResolveConfiguration(defaults)
	if err != nil {
		return err
	}

	hasContext := req.HostContext() && !validateNoContext
	validator := payment.NewRequestValidator(paymentlog.NewSlogLogger(lg))
	result := validator.Validate(paymentCfg, req.Request, hasContext)

	var out interface{}
	if result.IsAccepted() {
		out = payment.ValidateResponse{
			Flow:      result.Accepted.Flow,
			PhoneHint: result.Accepted.DerivedPhoneHint,
			PhoneMask: result.Accepted.PhoneMask,
		}
	} else {
		_, out = result.Rejected.ToHTTPResponse()
	}

	encoded, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

	if !result.IsAccepted() {
		return fmt.Errorf("payment request rejected: %s", result.Rejected.GetDetailedMessage())
	}
	return nil
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "request.json", "payment request JSON file")
	validateCmd.Flags().BoolVar(&validateNoContext, "no-context", false, "validate as if no host application context is available")
}

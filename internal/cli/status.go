package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-alert-dispatch/internal/dispatch"
	"github.com/mr1hm/go-alert-dispatch/internal/logging"
)

var statusCmd = &cobra.Command{
	Use:   "status <alert-id>",
	Short: "Show delivery status for an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("entries", false, "List every ledger entry")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level)

	svc, err := newServices(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	alertID := args[0]
	alert, err := svc.engine.Alert(cmd.Context(), alertID)
	if errors.Is(err, dispatch.ErrAlertNotFound) {
		return fmt.Errorf("alert %s not found", alertID)
	}
	if err != nil {
		return err
	}
	summary, err := svc.engine.DeliveryStatus(cmd.Context(), alertID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  [%s %s] %s\n", alert.ID, alert.Severity, alert.Type, alert.Title)
	fmt.Fprintf(out, "  Recipients:  %d\n", alert.RecipientsCount)
	printSummary(cmd, summary)

	if withEntries, _ := cmd.Flags().GetBool("entries"); withEntries {
		entries, err := svc.engine.Deliveries(cmd.Context(), alertID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(out, "  %-6s %-10s %-8s %s\n", e.Channel, e.RecipientID, e.Status, e.ErrorDetail)
		}
	}
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-alert-dispatch/internal/logging"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Issue an alert directly against the local database",
	RunE:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().String("sender", "", "Sender (community leader) id")
	sendCmd.Flags().String("type", string(models.AlertTypeGeneral), "Alert type: weather, flood, fire, earthquake, general")
	sendCmd.Flags().String("severity", string(models.AlertSeverityMedium), "Severity: low, medium, high, critical")
	sendCmd.Flags().String("title", "", "Alert title")
	sendCmd.Flags().String("message", "", "Alert message")
	sendCmd.Flags().String("scope", string(models.TargetScopeCommunity), "Target scope: all, community, region, specific_group")
	sendCmd.Flags().String("community", "", "Target community id")
	sendCmd.Flags().String("methods", "email,push", "Comma-separated delivery methods")
	sendCmd.Flags().Int("ttl-hours", 24, fmt.Sprintf("Validity window in hours, one of %v", models.AllowedTTLHours))
	_ = sendCmd.MarkFlagRequired("sender")
	_ = sendCmd.MarkFlagRequired("title")
	_ = sendCmd.MarkFlagRequired("message")
}

func runSend(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level)

	sender, _ := cmd.Flags().GetString("sender")
	alertType, _ := cmd.Flags().GetString("type")
	severity, _ := cmd.Flags().GetString("severity")
	title, _ := cmd.Flags().GetString("title")
	message, _ := cmd.Flags().GetString("message")
	scope, _ := cmd.Flags().GetString("scope")
	community, _ := cmd.Flags().GetString("community")
	methods, _ := cmd.Flags().GetString("methods")
	ttlHours, _ := cmd.Flags().GetInt("ttl-hours")

	if !models.IsAllowedTTLHours(ttlHours) {
		return fmt.Errorf("ttl-hours must be one of %v", models.AllowedTTLHours)
	}

	svc, err := newServices(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	alert, err := svc.engine.Dispatch(cmd.Context(), sender, models.AlertIntent{
		Type:        models.AlertType(alertType),
		Severity:    models.AlertSeverity(severity),
		Title:       title,
		Message:     message,
		Scope:       models.TargetScope(scope),
		CommunityID: community,
		Methods:     models.ParseDeliveryMethods(methods),
		TTL:         models.TTLHours(ttlHours),
	})
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}

	summary, err := svc.engine.DeliveryStatus(cmd.Context(), alert.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Alert issued:\n")
	fmt.Fprintf(out, "  ID:          %s\n", alert.ID)
	fmt.Fprintf(out, "  Recipients:  %d\n", alert.RecipientsCount)
	fmt.Fprintf(out, "  Expires at:  %s\n", alert.ExpiresAt.Format("2006-01-02 15:04 MST"))
	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, s models.DeliverySummary) {
	fmt.Fprintf(cmd.OutOrStdout(), "  Deliveries:  %d total, %d sent, %d failed, %d pending\n",
		s.Total, s.Sent, s.Failed, s.Pending)
}

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-alert-dispatch/internal/logging"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List alerts issued by a sender",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("sender", "", "Sender id")
	_ = historyCmd.MarkFlagRequired("sender")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level)

	sender, _ := cmd.Flags().GetString("sender")

	svc, err := newServices(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	summaries, err := svc.engine.History(cmd.Context(), sender)
	if err != nil {
		return err
	}
	sent, err := svc.alertsSent(cmd.Context(), sender)
	if err != nil {
		logger.Warn("error reading sender progress", "sender_id", sender, "error", err)
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No alerts issued.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSENT\tSEVERITY\tTITLE\tRECIPIENTS\tSENT/FAILED/PENDING\tACTIVE")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d/%d/%d\t%t\n",
			s.ID, s.SentAt.Format("2006-01-02 15:04"), s.Severity, s.Title, s.RecipientsCount,
			s.Delivery.Sent, s.Delivery.Failed, s.Delivery.Pending, s.Active)
	}
	w.Flush()
	fmt.Fprintf(out, "\nAlerts issued: %d\n", sent)
	return nil
}

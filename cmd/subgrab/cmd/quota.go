package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newQuotaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show the remaining download quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			quota := a.store().QuotaInfo()
			if quota == nil {
				fmt.Fprintln(out, "Download a subtitle to see your quota")
				return nil
			}

			now := a.now()
			fmt.Fprintf(out, "%d downloads remaining\n", quota.DisplayRemaining(now, a.dailyQuota()))
			if !quota.IsRecharged(now) {
				fmt.Fprintf(out, "Resets: %s\n", quota.RechargeDate.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

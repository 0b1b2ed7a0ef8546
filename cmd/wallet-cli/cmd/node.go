package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "节点相关命令",
}

var nodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看节点链状态",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiClient) error {
			st, err := c.NodeStatus(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chain:      %s\n", st.Chain)
			fmt.Fprintf(out, "Height:     %d\n", st.BlockHeight)
			fmt.Fprintf(out, "Headers:    %d\n", st.Headers)
			fmt.Fprintf(out, "Best Block: %s\n", st.BestBlockHash)
			return nil
		})
	},
}

var nodeUtxosCmd = &cobra.Command{
	Use:   "utxos",
	Short: "列出钱包可花费输出",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiClient) error {
			list, err := c.NodeUtxos(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OUTPOINT\tADDRESS\tAMOUNT\tCONF")
			for _, u := range list.Items {
				fmt.Fprintf(w, "%s:%d\t%s\t%s\t%d\n", u.TxID, u.Vout, u.Address, u.Amount, u.Confirmations)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d UTXO(s), total %s BTC (%d sat)\n",
				list.Count, list.TotalAmount, list.TotalAmountBaseUnits)
			return nil
		})
	},
}

var nodeBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "查看钱包余额",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiClient) error {
			b, err := c.NodeBalance(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Trusted:    %s BTC (%d sat)\n", b.Trusted, b.TrustedBaseUnits)
			fmt.Fprintf(out, "Pending:    %s BTC (%d sat)\n", b.UntrustedPending, b.UntrustedPendingBaseUnits)
			fmt.Fprintf(out, "Immature:   %s BTC (%d sat)\n", b.Immature, b.ImmatureBaseUnits)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(nodeCmd)
	nodeCmd.AddCommand(nodeStatusCmd, nodeUtxosCmd, nodeBalanceCmd)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"wallet-psbt/internal/handler/request"
	"wallet-psbt/internal/handler/response"

	"github.com/spf13/cobra"
)

var psbtCmd = &cobra.Command{
	Use:   "psbt",
	Short: "PSBT 生命周期: create / list / show / sign / broadcast / rm",
}

var psbtCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "创建 PSBT 草稿",
	Long:  `校验收款地址与金额并保存草稿。amount 为 BTC，fee 为 sat。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		amt, _ := cmd.Flags().GetString("amount")
		fee, _ := cmd.Flags().GetString("fee")
		desc, _ := cmd.Flags().GetString("description")

		return withClient(cmd, func(ctx context.Context, c *apiClient) error {
			rec, err := c.CreatePsbt(ctx, request.CreatePsbtRequest{
				RecipientAddress: to,
				Amount:           amt,
				Fee:              fee,
				Description:      desc,
			})
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		})
	},
}

var psbtListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出全部 PSBT (最新在前)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiClient) error {
			recs, err := c.ListPsbts(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tAMOUNT\tFEE\tRECIPIENT\tTXID")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Status, r.Amount, r.Fee, r.RecipientAddress, r.TxID)
			}
			return w.Flush()
		})
	},
}

var psbtShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "查看单条 PSBT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiClient) error {
			rec, err := c.GetPsbt(ctx, args[0])
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		})
	},
}

var psbtSignCmd = &cobra.Command{
	Use:   "sign <id>",
	Short: "用节点钱包签名草稿 (draft -> signed)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiClient) error {
			rec, err := c.SignPsbt(ctx, args[0])
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		})
	},
}

var psbtBroadcastCmd = &cobra.Command{
	Use:   "broadcast <id>",
	Short: "重新选币、签名并广播 (signed -> broadcast)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiClient) error {
			rec, err := c.BroadcastPsbt(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 广播成功! txid: %s\n", rec.TxID)
			return nil
		})
	},
}

var psbtRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove", "delete"},
	Short:   "删除本地记录 (不影响已广播的交易)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiClient) error {
			if err := c.RemovePsbt(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已删除 %s\n", args[0])
			return nil
		})
	},
}

func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *apiClient) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), reqTimeout)
	defer cancel()
	return fn(ctx, newAPIClient(serverURL, reqTimeout))
}

func printRecord(w io.Writer, r response.PsbtRecord) {
	fmt.Fprintln(w, "================ PSBT ================")
	fmt.Fprintf(w, "ID:         %s\n", r.ID)
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	fmt.Fprintf(w, "Recipient:  %s\n", r.RecipientAddress)
	fmt.Fprintf(w, "Amount:     %s BTC (%d sat)\n", r.Amount, r.AmountBaseUnits)
	fmt.Fprintf(w, "Fee:        %s sat\n", r.Fee)
	if r.Description != "" {
		fmt.Fprintf(w, "Memo:       %s\n", r.Description)
	}
	if r.TxID != "" {
		fmt.Fprintf(w, "TxID:       %s\n", r.TxID)
	}
	fmt.Fprintf(w, "Created:    %s\n", r.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "PSBT:       %s\n", r.Psbt)
	fmt.Fprintln(w, "======================================")
}

func init() {
	rootCmd.AddCommand(psbtCmd)
	psbtCmd.AddCommand(psbtCreateCmd, psbtListCmd, psbtShowCmd, psbtSignCmd, psbtBroadcastCmd, psbtRemoveCmd)

	psbtCreateCmd.Flags().String("to", "", "收款地址")
	psbtCreateCmd.Flags().String("amount", "", "金额 (BTC)")
	psbtCreateCmd.Flags().String("fee", "", "手续费 (sat)")
	psbtCreateCmd.Flags().StringP("description", "d", "", "备注")
	_ = psbtCreateCmd.MarkFlagRequired("to")
	_ = psbtCreateCmd.MarkFlagRequired("amount")
	_ = psbtCreateCmd.MarkFlagRequired("fee")
}

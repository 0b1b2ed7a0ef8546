package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	reqTimeout time.Duration
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "wallet-cli",
	Short: "PSBT 钱包命令行工具",
	Long: `wallet-server 的命令行客户端。
管理节点 RPC 加密凭证，创建 / 签名 / 广播 PSBT，查看节点状态与生命周期事件。`,
	SilenceUsage: true,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("WALLET_SERVER", "http://127.0.0.1:8080"), "wallet-server HTTP 地址")
	// 广播包含多次节点调用，默认超时需大于服务端单次调用超时
	rootCmd.PersistentFlags().DurationVar(&reqTimeout, "timeout", 2*time.Minute, "请求超时")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

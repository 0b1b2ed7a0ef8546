package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"wallet-psbt/internal/credential"
	"wallet-psbt/internal/model"
	"wallet-psbt/internal/noderpc"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const passphraseEnv = "CREDENTIALS_PASSPHRASE"

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "管理节点 RPC 加密凭证",
	Long:  `凭证使用 scrypt 派生密钥、AES-256-GCM 加密后保存在本地文件，wallet-server 启动时读取。`,
}

var credentialsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "加密保存节点 RPC 用户名和密码",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		user, _ := cmd.Flags().GetString("user")
		in := newPrompter(cmd)

		if user == "" {
			u, err := in.line("RPC 用户名: ")
			if err != nil {
				return err
			}
			user = u
		}
		password, err := in.secret("RPC 密码: ")
		if err != nil {
			return err
		}
		passphrase, err := passphraseFor(in, true)
		if err != nil {
			return err
		}

		store := credential.NewFileStore(path, passphrase)
		if err := store.Save(credential.Credentials{Username: user, Password: password}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ 凭证已加密保存到 %s\n", store.Path())
		return nil
	},
}

var credentialsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "解密凭证文件并用它调用一次节点 getblockchaininfo",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		passphrase, err := passphraseFor(newPrompter(cmd), false)
		if err != nil {
			return err
		}

		creds, err := credential.NewFileStore(path, passphrase).Load()
		switch {
		case errors.Is(err, credential.ErrNotFound):
			return fmt.Errorf("凭证文件 %s 不存在", path)
		case errors.Is(err, credential.ErrDecrypt):
			return fmt.Errorf("解密失败 (口令错误?)")
		case err != nil:
			return err
		}

		skip, _ := cmd.Flags().GetBool("skip-node")
		if skip {
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 凭证可解密, 用户名: %s (未连接节点)\n", creds.Username)
			return nil
		}

		st, err := checkNode(cmd, creds)
		if err != nil {
			return fmt.Errorf("凭证可解密, 但节点拒绝或不可达: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ 凭证有效, 用户名: %s, 节点链 %s 高度 %d\n", creds.Username, st.Chain, st.BlockHeight)
		return nil
	},
}

// checkNode 使用解密后的凭证直连节点，不经过 wallet-server
func checkNode(cmd *cobra.Command, creds credential.Credentials) (model.ChainStatus, error) {
	host, _ := cmd.Flags().GetString("node-host")
	port, _ := cmd.Flags().GetInt("node-port")
	wallet, _ := cmd.Flags().GetString("node-wallet")

	ctx, cancel := context.WithTimeout(cmd.Context(), reqTimeout)
	defer cancel()
	client := noderpc.New(noderpc.Config{
		Host:     host,
		Port:     port,
		User:     creds.Username,
		Password: creds.Password,
		Wallet:   wallet,
		Timeout:  reqTimeout,
	})
	return client.GetChainStatus(ctx)
}

// passphraseFor 优先读取 CREDENTIALS_PASSPHRASE；confirm 时要求输入两次
func passphraseFor(in *prompter, confirm bool) (string, error) {
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}
	p, err := in.secret("凭证口令: ")
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", credential.ErrEmptyPassphrase
	}
	if confirm {
		again, err := in.secret("再次输入口令: ")
		if err != nil {
			return "", err
		}
		if again != p {
			return "", fmt.Errorf("两次输入的口令不一致")
		}
	}
	return p, nil
}

// prompter 终端下不回显读取密码；非终端 (管道、测试) 时按行读取
type prompter struct {
	out    io.Writer
	tty    int
	isTTY  bool
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	p := &prompter{out: cmd.ErrOrStderr(), reader: bufio.NewReader(cmd.InOrStdin())}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty, p.isTTY = int(f.Fd()), true
	}
	return p
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("读取输入失败: %w", err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) secret(prompt string) (string, error) {
	if !p.isTTY {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.tty)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	return string(b), nil
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSaveCmd, credentialsCheckCmd)

	credentialsCmd.PersistentFlags().String("path", envOr("CREDENTIALS_PATH", "credentials.json"), "凭证文件路径")
	credentialsSaveCmd.Flags().StringP("user", "u", "", "RPC 用户名")

	credentialsCheckCmd.Flags().String("node-host", envOr("NODE_HOST", "127.0.0.1"), "节点 RPC 地址")
	credentialsCheckCmd.Flags().Int("node-port", envInt("NODE_PORT", 18443), "节点 RPC 端口")
	credentialsCheckCmd.Flags().String("node-wallet", os.Getenv("NODE_WALLET"), "节点钱包名")
	credentialsCheckCmd.Flags().Bool("skip-node", false, "只校验口令，不连接节点")
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

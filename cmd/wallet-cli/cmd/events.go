package cmd

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"wallet-psbt/internal/event"
	"wallet-psbt/internal/service/mq"
	"wallet-psbt/pkg/config"
	"wallet-psbt/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "PSBT 生命周期事件",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "订阅并打印生命周期事件 (Redis Streams / Kafka)",
	Long:  `读取与 wallet-server 相同的配置 (mq.type, mq.topic, redis.*, kafka.*)，以消费组方式订阅事件主题。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		group, _ := cmd.Flags().GetString("group")
		name, _ := cmd.Flags().GetString("name")

		v := viper.New()
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("读取配置失败: %w", err)
			}
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		logger.Init(cfg.App.Env)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		consumer, err := mq.NewConsumer(ctx, cfg, group, name, logger.Named("events"))
		if err != nil {
			return err
		}
		defer func() { _ = consumer.Close() }()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "正在订阅 %s (%s) ...\n", cfg.MQ.Topic, cfg.MQ.Type)
		return consumer.Subscribe(ctx, cfg.MQ.Topic, func(msg *mq.Message) error {
			var ev event.PsbtEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				// 格式错误的消息直接确认，避免反复投递
				logger.Warn("skip malformed event", zap.String("id", msg.ID), zap.Error(err))
				return nil
			}
			fmt.Fprintln(out, formatEvent(ev))
			return nil
		})
	},
}

func formatEvent(ev event.PsbtEvent) string {
	line := fmt.Sprintf("%s  %-9s  %s  status=%s amount=%s fee=%s",
		ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"), ev.Type, ev.RecordID, ev.Status, ev.Amount, ev.Fee)
	if ev.TxID != "" {
		line += " txid=" + ev.TxID
	}
	return line
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)

	eventsWatchCmd.Flags().StringP("config", "c", "", "配置文件 (默认仅使用环境变量)")
	eventsWatchCmd.Flags().String("group", "wallet-cli", "消费组")
	eventsWatchCmd.Flags().String("name", "wallet-cli-0", "消费者名称 (Redis Streams)")
}

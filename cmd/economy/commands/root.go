// cmd/economy/commands/root.go

package commands

import (
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"economy/internal/config"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
	log = logrus.New()
)

// Execute 建立命令樹並執行。
func Execute() error {
	root := &cobra.Command{
		Use:           "economy",
		Short:         "Closed-economy bank simulation",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				c.LogLevel = logLevel
			}
			lvl, err := logrus.ParseLevel(c.LogLevel)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

			deadlock.Opts.DeadlockTimeout = time.Duration(c.LockTimeoutSeconds) * time.Second
			deadlock.Opts.LogBuf = log.WriterLevel(logrus.ErrorLevel)
			cfg = c
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file (default $"+config.EnvFile+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(runCmd(), historyCmd())
	return root.Execute()
}

// cmd/economy/commands/history.go

package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"economy/internal/storage"
)

func historyCmd() *cobra.Command {
	var (
		dbFile string
		label  string
	)
	cmd := &cobra.Command{
		Use:   "history <simulation-id>",
		Short: "Print recorded transactions or one metric series of a past run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("simulation id: %w", err)
			}
			if cmd.Flags().Changed("db") {
				cfg.DBFile = dbFile
			}
			if cfg.DBFile == "" {
				return fmt.Errorf("history needs a database file (--db)")
			}
			st, err := storage.NewSQLiteStore(cfg.DBFile)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if label != "" {
				series, err := st.Series(cmd.Context(), id, label)
				if err != nil {
					return err
				}
				for _, e := range series {
					fmt.Fprintf(out, "%6d %s\n", e.Cycle, e.Value)
				}
				return nil
			}

			txs, err := st.Transactions(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, tx := range txs {
				fmt.Fprintf(out, "%6d %-6s -> %-6s %12s %s\n", tx.Cycle, tx.From, tx.To, tx.Amount.StringFixed(2), tx.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbFile, "db", "", "SQLite file written by run (default from config)")
	cmd.Flags().StringVar(&label, "series", "", "metric label, e.g. cash.total; omit to list transactions")
	return cmd
}

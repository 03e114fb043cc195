// cmd/economy/commands/run.go

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"economy/internal/app"
	"economy/internal/storage"
)

func runCmd() *cobra.Command {
	var (
		cycles   int
		dbFile   string
		snapFile string
		resume   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation for a number of cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("cycles") {
				cfg.Cycles = cycles
			}
			if cmd.Flags().Changed("db") {
				cfg.DBFile = dbFile
			}
			if cmd.Flags().Changed("snapshot") {
				cfg.SnapshotFile = snapFile
			}

			// 空字串代表不落地，只保留在記憶體
			var rec storage.Recorder = storage.NewMemoryRecorder()
			if cfg.DBFile != "" {
				st, err := storage.NewSQLiteStore(cfg.DBFile)
				if err != nil {
					return err
				}
				defer st.Close()
				rec = st
			}

			var snap *storage.Snapshot
			if resume {
				s, err := storage.LoadSnapshot(cfg.SnapshotFile)
				switch {
				case err == nil:
					snap = &s
				case errors.Is(err, os.ErrNotExist):
					log.WithField("file", cfg.SnapshotFile).Info("no snapshot, starting fresh")
				default:
					return err
				}
			}

			w, err := app.Build(cfg, rec, snap, log)
			if err != nil {
				return err
			}

			// SIGINT/SIGTERM 取消執行，快照仍會寫出
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			runErr := w.Run(ctx)

			if cfg.SnapshotFile != "" {
				if err := storage.SaveSnapshot(cfg.SnapshotFile, w.Bank.State()); err != nil {
					return errors.Join(runErr, fmt.Errorf("save snapshot: %w", err))
				}
			}
			printSummary(cmd, w.Summary())
			if errors.Is(runErr, context.Canceled) {
				return nil
			}
			return runErr
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 0, "number of cycles to run (default from config)")
	cmd.Flags().StringVar(&dbFile, "db", "", `SQLite file for transactions and metrics ("" keeps them in memory)`)
	cmd.Flags().StringVar(&snapFile, "snapshot", "", "JSON snapshot written at exit")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue from the snapshot file if it exists")
	return cmd
}

func printSummary(cmd *cobra.Command, s app.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "simulation %s stopped at cycle %d\n", s.SimulationID, s.Cycle)
	for _, l := range s.Ledgers {
		fmt.Fprintf(out, "  %-16s %-9s %14s\n", l.Name, l.AccountType, l.DepositTotal().StringFixed(2))
	}
	fmt.Fprintf(out, "  employed borrowers: %d\n", len(s.Borrowers))
	log.WithFields(logrus.Fields{
		"simulation": s.SimulationID.String(),
		"cycle":      s.Cycle,
	}).Debug("summary printed")
}

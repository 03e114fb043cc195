// internal/app/world.go

// Package app 依設定組裝一次模擬：銀行、市場、借款人、工廠與排程器。
// cmd/economy 只負責旗標、訊號與輸出，組裝細節集中在此以便測試。
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"economy/internal/agent"
	"economy/internal/bank"
	"economy/internal/config"
	"economy/internal/ledger"
	"economy/internal/orchestrator"
	"economy/internal/sim"
	"economy/internal/storage"
)

// MarketOwner 為市場在銀行登錄的 owner 身分。
const MarketOwner = "market"

// World 為組裝完成、可直接執行的模擬。
type World struct {
	SimulationID uuid.UUID
	Bank         *orchestrator.Orchestrator
	Market       *agent.StaticMarket
	Borrowers    []*agent.Borrower
	Factories    []*agent.Factory
	Scheduler    *sim.Scheduler

	cycles int
	log    logrus.FieldLogger
}

// Build 依 cfg 建立模擬。snap 不為 nil 時由快照續跑，週期編號接續快照。
func Build(cfg *config.Config, rec storage.Recorder, snap *storage.Snapshot, log logrus.FieldLogger) (*World, error) {
	order, err := sim.PolicyByName(cfg.Order)
	if err != nil {
		return nil, err
	}

	o, err := orchestrator.New(cfg.BankCapital, rec, log.WithField("agent", orchestrator.AgentID))
	if err != nil {
		return nil, fmt.Errorf("new bank: %w", err)
	}
	start := 0
	if snap != nil {
		if err := o.Restore(*snap); err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
		start = snap.Cycle
	}

	if err := openIfMissing(o, MarketOwner, cfg); err != nil {
		return nil, err
	}

	w := &World{
		SimulationID: uuid.New(),
		Bank:         o,
		Market:       agent.NewStaticMarket(MarketOwner, cfg.MarketCapacity, cfg.MarketPrice),
		Scheduler:    sim.NewScheduler(log, sim.WithOrder(order), sim.WithStartCycle(start)),
		cycles:       cfg.Cycles,
		log:          log,
	}

	terms := bank.LoanTerms{
		Amount:       cfg.LoanAmount,
		InterestRate: cfg.InterestRate,
		Duration:     cfg.LoanDuration,
	}
	for i := 1; i <= cfg.Borrowers; i++ {
		b := agent.NewBorrower(fmt.Sprintf("borrower-%02d", i), o, terms, log)
		w.Borrowers = append(w.Borrowers, b)
		w.Scheduler.Add(b)
	}
	for i := 1; i <= cfg.Factories; i++ {
		f := agent.NewFactory(fmt.Sprintf("factory-%02d", i), agent.FactoryConfig{
			Bank:         o,
			Market:       w.Market,
			Output:       cfg.FactoryOutput,
			Recorder:     rec,
			SimulationID: w.SimulationID,
		}, log)
		w.Factories = append(w.Factories, f)
		w.Scheduler.Add(f)
	}
	w.Scheduler.Add(o.Agent(w.SimulationID))
	return w, nil
}

// openIfMissing 為市場開戶並存入初始資金；快照中已有帳戶時略過。
func openIfMissing(o *orchestrator.Orchestrator, owner string, cfg *config.Config) error {
	_, err := o.AccountNo(orchestrator.Owner(owner))
	if err == nil {
		return nil
	}
	if !errors.Is(err, orchestrator.ErrUnrecognizedOwner) {
		return err
	}
	if _, err := o.OpenDepositAccount(owner, cfg.MarketFunds); err != nil {
		return fmt.Errorf("open %s account: %w", owner, err)
	}
	return nil
}

// Run 執行設定的週期數，結束後把緩衝中的交易交給紀錄器。
// ctx 取消時提前停止並回傳 ctx.Err()。
func (w *World) Run(ctx context.Context) error {
	w.log.WithFields(logrus.Fields{
		"simulation": w.SimulationID.String(),
		"from":       w.Scheduler.Cycle() + 1,
		"cycles":     w.cycles,
	}).Info("simulation started")

	err := w.Scheduler.Run(ctx, w.cycles)

	// 最後一個週期其他代理人的交易仍在緩衝中，取消時也要落地。
	if ferr := w.Bank.Flush(context.WithoutCancel(ctx), w.Scheduler.Cycle(), w.SimulationID); ferr != nil && err == nil {
		err = ferr
	}

	w.log.WithFields(logrus.Fields{
		"simulation": w.SimulationID.String(),
		"cycle":      w.Scheduler.Cycle(),
	}).Info("simulation stopped")
	return err
}

// Summary 為結束時輸出的總覽。
type Summary struct {
	SimulationID uuid.UUID
	Cycle        int
	Ledgers      []ledger.Ledger
	Borrowers    []string
}

// Summary 回傳目前的總覽。
func (w *World) Summary() Summary {
	return Summary{
		SimulationID: w.SimulationID,
		Cycle:        w.Scheduler.Cycle(),
		Ledgers:      w.Bank.Snapshot().Ledgers(),
		Borrowers:    w.Bank.Borrowers(),
	}
}

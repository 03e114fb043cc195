// internal/agent/factory.go

package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"economy/internal/orchestrator"
	"economy/internal/sim"
	"economy/internal/storage"
)

// Market 為工廠銷售的對象；定價與採購邏輯不在本模組範圍內。
type Market interface {
	// Owner 為市場在銀行登錄的 owner 身分，貨款由此帳戶支付。
	Owner() string
	PurchaseCapacity() int
	BidPrice() decimal.Decimal
	ReceiveDelivery(units int) error
}

// Factory 每週期生產固定數量，依市場採購量與出價銷售，並回報庫存。
type Factory struct {
	id        string
	bank      *orchestrator.Orchestrator
	market    Market
	output    int
	inventory int

	recorder     storage.Recorder
	simulationID uuid.UUID
	log          logrus.FieldLogger
}

// FactoryConfig 為建立工廠所需的協作者與參數。
type FactoryConfig struct {
	Bank         *orchestrator.Orchestrator
	Market       Market
	Output       int
	Recorder     storage.Recorder
	SimulationID uuid.UUID
}

// NewFactory 建立工廠。
func NewFactory(id string, cfg FactoryConfig, log logrus.FieldLogger) *Factory {
	return &Factory{
		id:           id,
		bank:         cfg.Bank,
		market:       cfg.Market,
		output:       cfg.Output,
		recorder:     cfg.Recorder,
		simulationID: cfg.SimulationID,
		log:          log.WithField("agent", id),
	}
}

func (f *Factory) ID() string { return f.id }

func (f *Factory) Kind() sim.Kind { return sim.KindOther }

// Inventory 回傳目前庫存。
func (f *Factory) Inventory() int { return f.inventory }

// Supply 自庫存出貨 qty 單位。
func (f *Factory) Supply(qty int) error {
	if f.inventory == 0 {
		return ErrOutOfStock
	}
	if qty > f.inventory {
		return fmt.Errorf("requested %d, have %d: %w", qty, f.inventory, ErrUnableToSupplyQuantity)
	}
	f.inventory -= qty
	return nil
}

func (f *Factory) Evaluate(ctx context.Context, cycle int) error {
	if f.bank == nil {
		return ErrNoBankAssigned
	}
	if err := ensureAccount(f.bank, f.id); err != nil {
		return err
	}
	f.inventory += f.output

	sold, err := f.sell(cycle)
	if rerr := f.report(ctx, cycle, sold); rerr != nil {
		f.log.WithField("cycle", cycle).WithError(rerr).Warn("report failed")
	}
	return err
}

func (f *Factory) sell(cycle int) (int, error) {
	if f.market == nil {
		return 0, nil
	}
	capacity := f.market.PurchaseCapacity()
	if capacity <= 0 {
		return 0, nil
	}
	qty := min(capacity, f.inventory)
	if err := f.Supply(qty); err != nil {
		return 0, err
	}

	buyer := orchestrator.Owner(f.market.Owner())
	me := orchestrator.Owner(f.id)
	price := f.market.BidPrice().Mul(decimal.NewFromInt(int64(qty)))
	if err := f.bank.Transfer(buyer, me, price, "sale", cycle); err != nil {
		f.inventory += qty
		return 0, err
	}
	if err := f.market.ReceiveDelivery(qty); err != nil {
		f.inventory += qty
		if rerr := f.bank.Transfer(me, buyer, price, "refund", cycle); rerr != nil {
			return 0, fmt.Errorf("refund after failed delivery (%v): %w", err, rerr)
		}
		return 0, err
	}
	return qty, nil
}

func (f *Factory) report(ctx context.Context, cycle, sold int) error {
	if f.recorder == nil {
		return nil
	}
	entry := func(label string, v int) storage.TimeSeriesEntry {
		return storage.TimeSeriesEntry{
			SimulationID: f.simulationID,
			Cycle:        cycle,
			Label:        "factory." + f.id + "." + label,
			Value:        decimal.NewFromInt(int64(v)),
		}
	}
	return f.recorder.InsertTimeSeries(ctx, []storage.TimeSeriesEntry{
		entry("inventory", f.inventory),
		entry("sold", sold),
	})
}

// internal/orchestrator/cycle.go
//
// 銀行的每週期例行作業：解雇已無負債的借款人、發放薪資補貼、
// 輸出本週期交易與指標、歸零週期變動並清空交易緩衝。

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"economy/internal/bank"
	"economy/internal/sim"
	"economy/internal/storage"
)

// AgentID 為銀行在排程器中的代理人 ID。
const AgentID = "bank"

// HireBorrower 將 owner 加入受雇借款人清單；允許重複。
func (o *Orchestrator) HireBorrower(owner string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.borrowers = append(o.borrowers, owner)
}

// FireBorrowers 只保留仍有未結清借款的借款人。
func (o *Orchestrator) FireBorrowers() {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.borrowers[:0:0]
	for _, owner := range o.borrowers {
		no, err := o.resolveLocked(Owner(owner))
		if err == nil && o.bank.HasDebt(no) {
			kept = append(kept, owner)
		}
	}
	o.borrowers = kept
}

// Borrowers 回傳受雇借款人清單的拷貝。
func (o *Orchestrator) Borrowers() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, len(o.borrowers))
	copy(out, o.borrowers)
	return out
}

// Evaluate 為每週期例行作業：
//  1. 解雇已無負債的借款人；
//  2. 對每位借款人，以其下一期應繳總額為上限、自利息收入帳戶發放薪資
//     （利息收入不為正時略過）；單一借款人失敗不影響其他人；
//  3. 將本週期交易與指標蓋上 simulationID 後交給紀錄器，並歸零週期變動；
//  4. 清空交易緩衝。紀錄器失敗時仍會清空，錯誤回傳給呼叫端。
func (o *Orchestrator) Evaluate(ctx context.Context, cycle int, simulationID uuid.UUID) error {
	o.mu.Lock()
	o.cycle = cycle
	o.mu.Unlock()

	o.FireBorrowers()
	o.paySalaries(o.Borrowers(), cycle)
	return o.flush(ctx, cycle, simulationID)
}

// paySalaries 依序發放薪資並回傳失敗的人數；失敗已由 paySalary 記錄。
func (o *Orchestrator) paySalaries(owners []string, cycle int) int {
	failed := 0
	for _, owner := range owners {
		if err := o.paySalary(owner, cycle); err != nil {
			failed++
		}
	}
	return failed
}

func (o *Orchestrator) paySalary(owner string, cycle int) error {
	return o.update("pay_salary", cycle, Owner(owner), nil, func(b bank.Bank) (bank.Bank, error) {
		no, err := o.resolveLocked(Owner(owner))
		if err != nil {
			return b, err
		}
		due, err := b.NextPayment(no)
		if err != nil {
			return b, err
		}
		house := bank.Endpoint{Ledger: bank.InterestIncome, AccountNo: bank.HouseAccount}
		income, err := b.AccountAt(house)
		if err != nil {
			return b, err
		}
		if !income.Deposit.IsPositive() {
			o.log.WithFields(logrus.Fields{"agent": owner, "cycle": cycle}).Debug("no interest income, salary skipped")
			return b, nil
		}
		amount := decimal.Min(due.Total(), income.Deposit)
		return b.TransferBetween(house, bank.Endpoint{Ledger: bank.Cash, AccountNo: no}, amount, "salary", cycle)
	})
}

// flush 在鎖內取出交易與指標並重設週期狀態，鎖外才呼叫紀錄器。
func (o *Orchestrator) flush(ctx context.Context, cycle int, simulationID uuid.UUID) error {
	o.mu.Lock()
	txs := o.bank.Transactions()
	series := o.metricsLocked(cycle, simulationID)
	o.bank = o.bank.ResetDeltas().ClearTransactions()
	o.mu.Unlock()
	return o.persist(ctx, cycle, simulationID, txs, series)
}

// Flush 將尚在緩衝中的交易交給紀錄器並清空緩衝。
// 不產生指標、不歸零週期變動；供模擬結束時讓最後一個週期的交易落地。
func (o *Orchestrator) Flush(ctx context.Context, cycle int, simulationID uuid.UUID) error {
	o.mu.Lock()
	txs := o.bank.Transactions()
	o.bank = o.bank.ClearTransactions()
	o.mu.Unlock()
	return o.persist(ctx, cycle, simulationID, txs, nil)
}

func (o *Orchestrator) persist(ctx context.Context, cycle int, simulationID uuid.UUID, txs []bank.Transaction, series []storage.TimeSeriesEntry) error {
	if o.recorder == nil {
		return nil
	}
	records := make([]storage.TransactionRecord, 0, len(txs))
	for _, tx := range txs {
		records = append(records, storage.TransactionRecord{
			SimulationID: simulationID,
			Cycle:        tx.Cycle,
			From:         tx.From,
			To:           tx.To,
			Amount:       tx.Amount,
			Text:         tx.Text,
		})
	}

	var errs []error
	if err := o.recorder.InsertTransactions(ctx, records); err != nil {
		errs = append(errs, fmt.Errorf("insert transactions: %w", err))
	}
	if len(series) > 0 {
		if err := o.recorder.InsertTimeSeries(ctx, series); err != nil {
			errs = append(errs, fmt.Errorf("insert time series: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		o.log.WithFields(logrus.Fields{
			"agent": AgentID,
			"cycle": cycle,
			"op":    "flush",
		}).WithError(err).Error("persisting cycle records failed")
		return err
	}
	return nil
}

// metricsLocked 產生每本分類帳的總額與週期變動，以及受雇借款人數。呼叫端須持有鎖。
func (o *Orchestrator) metricsLocked(cycle int, simulationID uuid.UUID) []storage.TimeSeriesEntry {
	entry := func(label string, v decimal.Decimal) storage.TimeSeriesEntry {
		return storage.TimeSeriesEntry{SimulationID: simulationID, Cycle: cycle, Label: label, Value: v}
	}
	var out []storage.TimeSeriesEntry
	for _, l := range o.bank.Ledgers() {
		out = append(out,
			entry(l.Name+".total", l.DepositTotal()),
			entry(l.Name+".delta", l.Delta()),
		)
	}
	out = append(out,
		entry("borrowers.hired", decimal.NewFromInt(int64(len(o.borrowers)))),
		entry("transactions.count", decimal.NewFromInt(int64(len(o.bank.Transactions())))),
	)
	return out
}

// cycleAgent 讓 Orchestrator 以 sim.Agent 身分參與排程。
type cycleAgent struct {
	o            *Orchestrator
	simulationID uuid.UUID
}

// Agent 回傳以 simulationID 執行 Evaluate 的排程代理人。
func (o *Orchestrator) Agent(simulationID uuid.UUID) sim.Agent {
	return &cycleAgent{o: o, simulationID: simulationID}
}

func (a *cycleAgent) ID() string { return AgentID }

func (a *cycleAgent) Kind() sim.Kind { return sim.KindBank }

func (a *cycleAgent) Evaluate(ctx context.Context, cycle int) error {
	return a.o.Evaluate(ctx, cycle, a.simulationID)
}

// internal/sim/scheduler.go

// Package sim 以離散週期驅動模擬。
// 每個週期依固定、可重現的順序同步評估每個代理人；
// 排在後面的代理人可以看到同週期前面代理人造成的狀態變化。
// 單一代理人的錯誤或 panic 只會被記錄，不會中止排程。
package sim

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Kind 為代理人類別，供排序策略使用。
type Kind int

const (
	KindBank Kind = iota
	KindBorrower
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindBank:
		return "bank"
	case KindBorrower:
		return "borrower"
	default:
		return "other"
	}
}

// Agent 為每週期被評估一次的代理人。
type Agent interface {
	ID() string
	Kind() Kind
	Evaluate(ctx context.Context, cycle int) error
}

// OrderPolicy 由加入順序的代理人清單產生本週期的評估順序。
// 不得修改傳入的切片。
type OrderPolicy func(agents []Agent) []Agent

// BankFirst 依類別穩定排序：銀行、借款人、其他；同類別維持加入順序。
func BankFirst(agents []Agent) []Agent {
	out := make([]Agent, len(agents))
	copy(out, agents)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind() < out[j].Kind() })
	return out
}

// Insertion 完全依加入順序。
func Insertion(agents []Agent) []Agent {
	out := make([]Agent, len(agents))
	copy(out, agents)
	return out
}

// PolicyByName 將設定檔中的名稱對應到排序策略。
func PolicyByName(name string) (OrderPolicy, error) {
	switch name {
	case "", "bank-first":
		return BankFirst, nil
	case "insertion":
		return Insertion, nil
	default:
		return nil, fmt.Errorf("unknown order policy %q", name)
	}
}

// Scheduler 只持有目前週期與代理人清單，不持有任何模擬狀態。
type Scheduler struct {
	agents []Agent
	order  OrderPolicy
	cycle  int
	log    logrus.FieldLogger
}

// Option 調整 Scheduler。
type Option func(*Scheduler)

// WithOrder 指定排序策略。
func WithOrder(p OrderPolicy) Option {
	return func(s *Scheduler) { s.order = p }
}

// WithStartCycle 從快照續跑時指定已完成的週期，下一個週期為 cycle+1。
func WithStartCycle(cycle int) Option {
	return func(s *Scheduler) { s.cycle = cycle }
}

// NewScheduler 建立排程器，預設排序為 BankFirst。
func NewScheduler(log logrus.FieldLogger, opts ...Option) *Scheduler {
	s := &Scheduler{order: BankFirst, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add 加入代理人。
func (s *Scheduler) Add(agents ...Agent) {
	s.agents = append(s.agents, agents...)
}

// Cycle 回傳最後完成的週期；尚未執行時為 0。
func (s *Scheduler) Cycle() int { return s.cycle }

// Order 回傳本排程器的評估順序。
func (s *Scheduler) Order() []Agent { return s.order(s.agents) }

// Step 執行下一個週期並回傳其編號。
// 代理人逐一評估，前一個完成後才評估下一個。
func (s *Scheduler) Step(ctx context.Context) int {
	cycle := s.cycle + 1
	for _, a := range s.order(s.agents) {
		if err := s.evaluate(ctx, a, cycle); err != nil {
			s.log.WithFields(logrus.Fields{
				"agent": a.ID(),
				"kind":  a.Kind().String(),
				"cycle": cycle,
				"op":    "evaluate",
			}).WithError(err).Error("agent evaluation failed")
		}
	}
	s.cycle = cycle
	return cycle
}

// Run 從目前週期之後連續執行 n 個週期。
// ctx 取消時在下一個週期開始前停止並回傳 ctx.Err()。
func (s *Scheduler) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step(ctx)
	}
	return nil
}

func (s *Scheduler) evaluate(ctx context.Context, a Agent, cycle int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Evaluate(ctx, cycle)
}

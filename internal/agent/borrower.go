// internal/agent/borrower.go

// Package agent 提供透過銀行交易的經濟代理人：借款人與工廠。
// 代理人只呼叫 orchestrator，從不直接碰觸銀行或分類帳。
package agent

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"economy/internal/bank"
	"economy/internal/ledger"
	"economy/internal/orchestrator"
	"economy/internal/sim"
)

// Borrower 每週期決定申請借款或繳納分期。
// 首次評估時開立存款帳戶；沒有未結清借款時申請借款並受雇於銀行，
// 否則繳納下一期。
type Borrower struct {
	id    string
	bank  *orchestrator.Orchestrator
	terms bank.LoanTerms
	log   logrus.FieldLogger
}

// NewBorrower 建立借款人。
func NewBorrower(id string, b *orchestrator.Orchestrator, terms bank.LoanTerms, log logrus.FieldLogger) *Borrower {
	return &Borrower{id: id, bank: b, terms: terms, log: log.WithField("agent", id)}
}

func (b *Borrower) ID() string { return b.id }

func (b *Borrower) Kind() sim.Kind { return sim.KindBorrower }

func (b *Borrower) Evaluate(_ context.Context, cycle int) error {
	if b.bank == nil {
		return ErrNoBankAssigned
	}
	if err := ensureAccount(b.bank, b.id); err != nil {
		return err
	}
	me := orchestrator.Owner(b.id)

	if !b.bank.HasDebt(me) {
		if err := b.bank.RequestLoan(me, b.terms, cycle); err != nil {
			return err
		}
		b.bank.HireBorrower(b.id)
		b.log.WithFields(logrus.Fields{"cycle": cycle, "amount": b.terms.Amount.String()}).Info("loan granted")
		return nil
	}

	p, err := b.bank.PayLoan(me, cycle)
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		b.log.WithField("cycle", cycle).Info("installment missed")
		return nil
	}
	if err != nil {
		return err
	}
	b.log.WithFields(logrus.Fields{
		"cycle":     cycle,
		"principal": p.Principal.String(),
		"interest":  p.Interest.String(),
	}).Debug("installment paid")
	return nil
}

// ensureAccount 在 owner 尚未登錄時為其開立空白帳戶。
func ensureAccount(o *orchestrator.Orchestrator, owner string) error {
	_, err := o.AccountNo(orchestrator.Owner(owner))
	if !errors.Is(err, orchestrator.ErrUnrecognizedOwner) {
		return err
	}
	_, err = o.OpenDepositAccount(owner, decimal.Zero)
	return err
}

// internal/loan/loan.go

// Package loan 定義等額本息（年金法）攤還的借款契約。
// 狀態機：Active →(部分還款)→ Active →(餘額歸零)→ PaidOff（終態）。
// Loan 為值型別；Apply 回傳新值，失敗時原值不變。
package loan

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Status 為借款狀態。
type Status int

const (
	Active Status = iota
	PaidOff
)

func (s Status) String() string {
	if s == PaidOff {
		return "paid-off"
	}
	return "active"
}

// cents 為所有分期金額的四捨五入位數。
const cents = 2

// Payment 為單期應繳金額，拆分為本金與利息。
type Payment struct {
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
}

// Total 回傳本期總額。
func (p Payment) Total() decimal.Decimal { return p.Principal.Add(p.Interest) }

// Loan 為借款契約。
// - InterestRate 為每期利率（例如 0.01 代表每週期 1%）。
// - Schedule 為開立時預先計算的完整攤還表。
type Loan struct {
	Principal        decimal.Decimal `json:"principal"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	Duration         int             `json:"duration"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	PaymentsMade     int             `json:"payments_made"`
	Schedule         []Payment       `json:"schedule"`
}

// New 建立借款並預算攤還表；本金需 > 0、期數需 > 0、利率不得為負。
func New(principal, interestRate decimal.Decimal, duration int) (Loan, error) {
	if !principal.IsPositive() || interestRate.IsNegative() || duration <= 0 {
		return Loan{}, fmt.Errorf("principal=%s rate=%s duration=%d: %w",
			principal, interestRate, duration, ErrBadTerms)
	}
	l := Loan{
		Principal:        principal,
		InterestRate:     interestRate,
		Duration:         duration,
		RemainingBalance: principal,
	}
	l.Schedule = l.plan()
	return l, nil
}

// plan 在暫存副本上逐期套用，產生完整攤還表。
func (l Loan) plan() []Payment {
	out := make([]Payment, 0, l.Duration)
	cur := l
	for cur.Status() == Active {
		p, err := cur.NextPayment()
		if err != nil {
			break
		}
		out = append(out, p)
		cur, _ = cur.Apply(p)
	}
	return out
}

// Status 由剩餘本金推得。
func (l Loan) Status() Status {
	if l.RemainingBalance.IsPositive() {
		return Active
	}
	return PaidOff
}

// NextPayment 計算本期分期：
// 利息 = 剩餘本金 × 利率；分期總額 = B·r / (1 − (1+r)^−n)，n 為剩餘期數；
// 本金 = 總額 − 利息。最後一期（或逾期）一次結清剩餘本金。
func (l Loan) NextPayment() (Payment, error) {
	if l.Status() == PaidOff {
		return Payment{}, ErrLoanFullyPaid
	}
	balance := l.RemainingBalance
	interest := balance.Mul(l.InterestRate).Round(cents)

	periods := l.Duration - l.PaymentsMade
	if periods <= 1 {
		return Payment{Principal: balance, Interest: interest}, nil
	}

	var installment decimal.Decimal
	if l.InterestRate.IsZero() {
		installment = balance.Div(decimal.NewFromInt(int64(periods)))
	} else {
		growth := decimal.NewFromInt(1).Add(l.InterestRate).Pow(decimal.NewFromInt(int64(periods)))
		discount := decimal.NewFromInt(1).Sub(decimal.NewFromInt(1).Div(growth))
		installment = balance.Mul(l.InterestRate).Div(discount)
	}
	installment = installment.Round(cents)

	principal := installment.Sub(interest)
	if principal.GreaterThan(balance) {
		principal = balance
	}
	if !principal.IsPositive() {
		// 利率過高導致分期不足以還本時，至少償還一分錢，確保契約會結束。
		principal = decimal.Min(decimal.New(1, -cents), balance)
	}
	return Payment{Principal: principal, Interest: interest}, nil
}

// Apply 套用一期還款，剩餘本金減少 p.Principal。
func (l Loan) Apply(p Payment) (Loan, error) {
	if l.Status() == PaidOff {
		return l, ErrLoanFullyPaid
	}
	next := l
	next.RemainingBalance = l.RemainingBalance.Sub(p.Principal)
	if next.RemainingBalance.IsNegative() {
		next.RemainingBalance = decimal.Zero
	}
	next.PaymentsMade++
	return next, nil
}

// internal/bank/bank.go

// Package bank 定義銀行聚合根：多本具名分類帳、借款登錄表與本週期交易緩衝。
// 所有資金移動皆組成一份「借貸平衡」的分錄 (journal)，在草稿上逐筆過帳；
// 任一筆失敗即丟棄草稿並回傳原值，保證不會留下部分變更。
// Bank 為值型別，本身不含鎖；並發序列化由 orchestrator 負責。
package bank

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"economy/internal/ledger"
	"economy/internal/loan"
)

// 分類帳名稱。
const (
	Cash           = "cash"
	Loans          = "loans"
	InterestIncome = "interest-income"
	Equity         = "equity"
	Reserves       = "reserves"
)

// HouseAccount 為銀行自有帳戶的帳號（利息收入、權益、準備金）。
const HouseAccount = "bank"

type ledgerDef struct {
	name        string
	ledgerType  string
	accountType ledger.AccountType
	house       bool
}

// layout 決定分類帳的建立與列舉順序。
var layout = []ledgerDef{
	{Cash, "deposits", ledger.Liability, false},
	{Loans, "receivables", ledger.Asset, false},
	{InterestIncome, "income", ledger.Equity, true},
	{Equity, "capital", ledger.Equity, true},
	{Reserves, "vault", ledger.Asset, true},
}

// Endpoint 指定某本分類帳中的某個帳戶。
type Endpoint struct {
	Ledger    string
	AccountNo string
}

func (e Endpoint) String() string { return e.Ledger + "/" + e.AccountNo }

// LoanTerms 為申請借款的條件。
type LoanTerms struct {
	Amount       decimal.Decimal
	InterestRate decimal.Decimal
	Duration     int
}

type side int

const (
	debit side = iota
	credit
)

// posting 為分錄中的一行。
type posting struct {
	at     Endpoint
	side   side
	amount decimal.Decimal
}

// Bank 為聚合根。
// - ledgers：名稱 → 分類帳。
// - loans：帳號 → 借款；永遠已初始化。
// - transactions：本週期已完成的交易，由 orchestrator 輸出後清空。
type Bank struct {
	ledgers      map[string]ledger.Ledger
	loans        map[string]loan.Loan
	transactions []Transaction
}

// New 建立銀行：開立各分類帳與自有帳戶；capital 非零時借記準備金、貸記權益。
func New(capital decimal.Decimal) (Bank, error) {
	if capital.IsNegative() {
		return Bank{}, fmt.Errorf("capital %s: %w", capital, ErrBadAmount)
	}
	b := Bank{
		ledgers: make(map[string]ledger.Ledger, len(layout)),
		loans:   make(map[string]loan.Loan),
	}
	for _, s := range layout {
		l := ledger.New(s.name, s.ledgerType, s.accountType)
		if s.house {
			var err error
			if l, _, err = l.AddAccount(HouseAccount); err != nil {
				return Bank{}, err
			}
		}
		b.ledgers[s.name] = l
	}
	if capital.IsZero() {
		return b, nil
	}
	return b.apply(
		posting{Endpoint{Reserves, HouseAccount}, debit, capital},
		posting{Endpoint{Equity, HouseAccount}, credit, capital},
	)
}

// clone 複製頂層索引；分類帳與借款皆為值型別。
func (b Bank) clone() Bank {
	next := Bank{
		ledgers:      make(map[string]ledger.Ledger, len(b.ledgers)),
		loans:        make(map[string]loan.Loan, len(b.loans)+1),
		transactions: slices.Clip(b.transactions),
	}
	for k, v := range b.ledgers {
		next.ledgers[k] = v
	}
	for k, v := range b.loans {
		next.loans[k] = v
	}
	return next
}

// apply 在草稿上依序過帳；分錄借貸不平衡或任一筆失敗時回傳原值與錯誤。
func (b Bank) apply(entries ...posting) (Bank, error) {
	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range entries {
		if e.side == debit {
			debits = debits.Add(e.amount)
		} else {
			credits = credits.Add(e.amount)
		}
	}
	if !debits.Equal(credits) {
		return b, fmt.Errorf("debits %s, credits %s: %w", debits, credits, ErrUnbalanced)
	}

	draft := b.clone()
	for _, e := range entries {
		if e.amount.IsZero() {
			continue
		}
		l, ok := draft.ledgers[e.at.Ledger]
		if !ok {
			return b, fmt.Errorf("%s: %w", e.at.Ledger, ErrUnknownLedger)
		}
		var err error
		if e.side == debit {
			l, err = l.Debit(e.at.AccountNo, e.amount)
		} else {
			l, err = l.Credit(e.at.AccountNo, e.amount)
		}
		if err != nil {
			return b, err
		}
		draft.ledgers[e.at.Ledger] = l
	}
	return draft, nil
}

func (b Bank) record(tx Transaction) Bank {
	b.transactions = append(slices.Clip(b.transactions), tx)
	return b
}

// OpenDepositAccount 於現金帳開立存款帳戶。
func (b Bank) OpenDepositAccount() (Bank, string, error) {
	l, no, err := b.ledgers[Cash].AddAccount("")
	if err != nil {
		return b, "", err
	}
	next := b.clone()
	next.ledgers[Cash] = l
	return next, no, nil
}

// DepositCash 存入現金：借記準備金、貸記客戶存款。
func (b Bank) DepositCash(accountNo string, amount decimal.Decimal) (Bank, error) {
	if !amount.IsPositive() {
		return b, ErrBadAmount
	}
	return b.apply(
		posting{Endpoint{Cash, accountNo}, credit, amount},
		posting{Endpoint{Reserves, HouseAccount}, debit, amount},
	)
}

// RequestLoan 放款：建立借款契約，借記放款帳、貸記客戶存款，兩端同時成功或同時失敗。
// 帳戶已有未結清借款時回傳 ErrLoanOutstanding。
func (b Bank) RequestLoan(accountNo string, terms LoanTerms, cycle int) (Bank, error) {
	if _, err := b.Account(accountNo); err != nil {
		return b, err
	}
	if b.HasDebt(accountNo) {
		return b, fmt.Errorf("%s: %w", accountNo, ErrLoanOutstanding)
	}
	ln, err := loan.New(terms.Amount, terms.InterestRate, terms.Duration)
	if err != nil {
		return b, err
	}

	draft := b.clone()
	if _, err := draft.ledgers[Loans].Account(accountNo); err != nil {
		l, _, err := draft.ledgers[Loans].AddAccount(accountNo)
		if err != nil {
			return b, err
		}
		draft.ledgers[Loans] = l
	}
	draft, err = draft.apply(
		posting{Endpoint{Loans, accountNo}, debit, terms.Amount},
		posting{Endpoint{Cash, accountNo}, credit, terms.Amount},
	)
	if err != nil {
		return b, err
	}
	draft.loans[accountNo] = ln
	return draft.record(Transaction{
		From: HouseAccount, To: accountNo, Amount: terms.Amount, Text: "loan", Cycle: cycle,
	}), nil
}

// PayLoan 繳納下一期：借記客戶存款（總額）、貸記放款帳（本金）、貸記利息收入（利息）。
// 存款不足以支付整期時不做部分繳款。
func (b Bank) PayLoan(accountNo string, cycle int) (Bank, loan.Payment, error) {
	ln, err := b.Loan(accountNo)
	if err != nil {
		return b, loan.Payment{}, err
	}
	p, err := ln.NextPayment()
	if err != nil {
		return b, loan.Payment{}, fmt.Errorf("%s: %w", accountNo, err)
	}
	paid, err := ln.Apply(p)
	if err != nil {
		return b, loan.Payment{}, err
	}

	draft, err := b.apply(
		posting{Endpoint{Cash, accountNo}, debit, p.Total()},
		posting{Endpoint{Loans, accountNo}, credit, p.Principal},
		posting{Endpoint{InterestIncome, HouseAccount}, credit, p.Interest},
	)
	if err != nil {
		return b, loan.Payment{}, err
	}
	draft.loans[accountNo] = paid
	return draft.record(Transaction{
		From: accountNo, To: HouseAccount, Amount: p.Total(), Text: "loan repayment", Cycle: cycle,
	}), p, nil
}

// TransferBetween 跨分類帳轉帳：借記來源、貸記目的地，並記錄一筆交易。
func (b Bank) TransferBetween(from, to Endpoint, amount decimal.Decimal, text string, cycle int) (Bank, error) {
	if !amount.IsPositive() {
		return b, ErrBadAmount
	}
	if from == to {
		return b, ErrSameAccount
	}
	draft, err := b.apply(
		posting{from, debit, amount},
		posting{to, credit, amount},
	)
	if err != nil {
		return b, err
	}
	return draft.record(Transaction{
		From: from.AccountNo, To: to.AccountNo, Amount: amount, Text: text, Cycle: cycle,
	}), nil
}

// Transfer 為現金帳內兩個存款帳戶之間的轉帳。
func (b Bank) Transfer(fromNo, toNo string, amount decimal.Decimal, text string, cycle int) (Bank, error) {
	return b.TransferBetween(Endpoint{Cash, fromNo}, Endpoint{Cash, toNo}, amount, text, cycle)
}

// Account 取得存款帳戶。
func (b Bank) Account(accountNo string) (ledger.Account, error) {
	return b.ledgers[Cash].Account(accountNo)
}

// AccountAt 取得任一分類帳中的帳戶。
func (b Bank) AccountAt(at Endpoint) (ledger.Account, error) {
	l, err := b.Ledger(at.Ledger)
	if err != nil {
		return ledger.Account{}, err
	}
	return l.Account(at.AccountNo)
}

// Ledger 依名稱取得分類帳。
func (b Bank) Ledger(name string) (ledger.Ledger, error) {
	l, ok := b.ledgers[name]
	if !ok {
		return ledger.Ledger{}, fmt.Errorf("%s: %w", name, ErrUnknownLedger)
	}
	return l, nil
}

// Ledgers 依固定順序回傳所有分類帳。
func (b Bank) Ledgers() []ledger.Ledger {
	out := make([]ledger.Ledger, 0, len(b.ledgers))
	for _, s := range layout {
		if l, ok := b.ledgers[s.name]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Loan 取得帳戶的借款（含已結清者）。
func (b Bank) Loan(accountNo string) (loan.Loan, error) {
	ln, ok := b.loans[accountNo]
	if !ok {
		return loan.Loan{}, fmt.Errorf("%s: %w", accountNo, ErrLoanNotFound)
	}
	return ln, nil
}

// HasDebt 回傳帳戶是否有未結清借款。
func (b Bank) HasDebt(accountNo string) bool {
	ln, ok := b.loans[accountNo]
	return ok && ln.Status() == loan.Active
}

// NextPayment 回傳帳戶借款的下一期應繳金額。
func (b Bank) NextPayment(accountNo string) (loan.Payment, error) {
	ln, err := b.Loan(accountNo)
	if err != nil {
		return loan.Payment{}, err
	}
	return ln.NextPayment()
}

// Transactions 回傳本週期交易的拷貝。
func (b Bank) Transactions() []Transaction {
	return slices.Clone(b.transactions)
}

// ClearTransactions 清空本週期交易緩衝。
func (b Bank) ClearTransactions() Bank {
	b.transactions = nil
	return b
}

// ResetDeltas 歸零所有分類帳的週期變動。
func (b Bank) ResetDeltas() Bank {
	next := b.clone()
	for name, l := range next.ledgers {
		next.ledgers[name] = l.ResetDeltas()
	}
	return next
}

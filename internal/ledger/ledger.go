// internal/ledger/ledger.go

// Package ledger 提供複式記帳的最小單位：同一極性類別的帳戶集合。
// Ledger 為值型別，所有變更皆回傳新的 Ledger（copy-on-write），
// 失敗時原值不變，上層可自由丟棄草稿，達成「全有或全無」。
// 金額一律使用 decimal.Decimal，避免浮點誤差。
package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// AccountType 決定分類帳的極性 (polarity)。
type AccountType string

const (
	Asset     AccountType = "asset"
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
)

// Polarity 回傳帳戶類型對應的符號乘數：資產 -1，負債與權益 +1，其他 0。
func (t AccountType) Polarity() int64 {
	switch t {
	case Asset:
		return -1
	case Liability, Equity:
		return 1
	default:
		return 0
	}
}

// Ledger 為具名分類帳。
// - accounts：帳號 → 帳戶，只在複製後的草稿上修改。
// - delta：本週期所有過帳的淨變動，由 ResetDeltas 歸零。
type Ledger struct {
	Name        string
	Type        string
	AccountType AccountType

	accounts map[string]Account
	delta    decimal.Decimal
}

// New 建立空白分類帳。
func New(name, ledgerType string, accountType AccountType) Ledger {
	return Ledger{
		Name:        name,
		Type:        ledgerType,
		AccountType: accountType,
		accounts:    make(map[string]Account),
	}
}

// clone 複製帳戶表；Account 為值型別，淺拷貝即足夠。
func (l Ledger) clone() Ledger {
	next := l
	next.accounts = make(map[string]Account, len(l.accounts)+1)
	for no, a := range l.accounts {
		next.accounts[no] = a
	}
	return next
}

// Polarity 回傳本帳的極性。
func (l Ledger) Polarity() int64 { return l.AccountType.Polarity() }

// Delta 回傳本週期淨變動。
func (l Ledger) Delta() decimal.Decimal { return l.delta }

// Len 回傳帳戶數量。
func (l Ledger) Len() int { return len(l.accounts) }

// AddAccount 開立帳戶並回傳新分類帳與帳號。
// accountNo 為空字串時自動產生：現有帳戶數 + 1，左補零至 4 位（例如 "0001"）。
// 產生與存在檢查的原子性由持有者（orchestrator）保證。
func (l Ledger) AddAccount(accountNo string) (Ledger, string, error) {
	if accountNo == "" {
		accountNo = fmt.Sprintf("%04d", len(l.accounts)+1)
	}
	if _, ok := l.accounts[accountNo]; ok {
		return l, "", fmt.Errorf("%s/%s: %w", l.Name, accountNo, ErrAccountExists)
	}
	next := l.clone()
	next.accounts[accountNo] = Account{AccountNo: accountNo}
	return next, accountNo, nil
}

// Account 依帳號取得帳戶（值拷貝）。
func (l Ledger) Account(accountNo string) (Account, error) {
	a, ok := l.accounts[accountNo]
	if !ok {
		return Account{}, fmt.Errorf("%s/%s: %w", l.Name, accountNo, ErrAccountNotFound)
	}
	return a, nil
}

// Accounts 依帳號排序回傳所有帳戶。
func (l Ledger) Accounts() []Account {
	out := make([]Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNo < out[j].AccountNo })
	return out
}

// Credit 貸記：signed = amount × polarity。
func (l Ledger) Credit(accountNo string, amount decimal.Decimal) (Ledger, error) {
	return l.Post(accountNo, amount.Mul(decimal.NewFromInt(l.Polarity())))
}

// Debit 借記：signed = -(amount × polarity)。
func (l Ledger) Debit(accountNo string, amount decimal.Decimal) (Ledger, error) {
	return l.Post(accountNo, amount.Mul(decimal.NewFromInt(l.Polarity())).Neg())
}

// Post 以帶號金額更新帳戶餘額。
// 新餘額若為負則回傳 ErrInsufficientFunds，且原分類帳不變。
func (l Ledger) Post(accountNo string, signed decimal.Decimal) (Ledger, error) {
	a, ok := l.accounts[accountNo]
	if !ok {
		return l, fmt.Errorf("%s/%s: %w", l.Name, accountNo, ErrAccountNotFound)
	}
	deposit := a.Deposit.Add(signed)
	if deposit.IsNegative() {
		return l, fmt.Errorf("%s/%s: deposit %s, change %s: %w",
			l.Name, accountNo, a.Deposit, signed, ErrInsufficientFunds)
	}
	a.Deposit = deposit
	a.Delta = a.Delta.Add(signed)

	next := l.clone()
	next.accounts[accountNo] = a
	next.delta = l.delta.Add(signed)
	return next, nil
}

// DepositTotal 加總所有帳戶餘額，僅供報表使用。
func (l Ledger) DepositTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range l.accounts {
		total = total.Add(a.Deposit)
	}
	return total
}

// ResetDeltas 將本帳與所有帳戶的週期變動歸零；每週期統計輸出後呼叫一次。
func (l Ledger) ResetDeltas() Ledger {
	next := l.clone()
	for no, a := range next.accounts {
		a.Delta = decimal.Zero
		next.accounts[no] = a
	}
	next.delta = decimal.Zero
	return next
}

// Restore 由已存在的帳戶清單重建分類帳（快照還原用）。
func Restore(name, ledgerType string, accountType AccountType, accounts []Account) Ledger {
	l := New(name, ledgerType, accountType)
	for _, a := range accounts {
		l.accounts[a.AccountNo] = a
		l.delta = l.delta.Add(a.Delta)
	}
	return l
}

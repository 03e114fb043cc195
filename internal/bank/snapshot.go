// internal/bank/snapshot.go

package bank

import (
	"fmt"

	"economy/internal/ledger"
	"economy/internal/loan"
	"economy/internal/storage"
)

// Snapshot 匯出分類帳與借款到可持久化的 storage.Snapshot。
// 交易緩衝不在快照內：它每週期都會被輸出並清空。
func (b Bank) Snapshot() storage.Snapshot {
	s := storage.Snapshot{
		Meta: storage.Meta{Storage: "json_snapshot", Version: storage.SnapshotVersion},
	}
	for _, l := range b.Ledgers() {
		pl := storage.PersistLedger{Name: l.Name, Type: l.Type, AccountType: string(l.AccountType)}
		for _, a := range l.Accounts() {
			pl.Accounts = append(pl.Accounts, storage.PersistAccount{
				AccountNo: a.AccountNo, Deposit: a.Deposit, Delta: a.Delta,
			})
		}
		s.Ledgers = append(s.Ledgers, pl)
	}
	for _, a := range b.ledgers[Cash].Accounts() {
		ln, ok := b.loans[a.AccountNo]
		if !ok {
			continue
		}
		pl := storage.PersistLoan{
			AccountNo:        a.AccountNo,
			Principal:        ln.Principal,
			InterestRate:     ln.InterestRate,
			Duration:         ln.Duration,
			RemainingBalance: ln.RemainingBalance,
			PaymentsMade:     ln.PaymentsMade,
		}
		for _, p := range ln.Schedule {
			pl.Schedule = append(pl.Schedule, storage.PersistPayment{Principal: p.Principal, Interest: p.Interest})
		}
		s.Loans = append(s.Loans, pl)
	}
	return s
}

// Restore 由快照重建銀行。快照必須包含所有標準分類帳。
func Restore(s storage.Snapshot) (Bank, error) {
	b := Bank{
		ledgers: make(map[string]ledger.Ledger, len(layout)),
		loans:   make(map[string]loan.Loan, len(s.Loans)),
	}
	for _, pl := range s.Ledgers {
		at := ledger.AccountType(pl.AccountType)
		if at.Polarity() == 0 {
			return Bank{}, fmt.Errorf("restore %s: %q: %w", pl.Name, pl.AccountType, ErrBadAccountType)
		}
		if def, ok := layoutOf(pl.Name); ok && def.accountType != at {
			return Bank{}, fmt.Errorf("restore %s: %s, want %s: %w", pl.Name, at, def.accountType, ErrBadAccountType)
		}
		accts := make([]ledger.Account, 0, len(pl.Accounts))
		for _, pa := range pl.Accounts {
			if pa.Deposit.IsNegative() {
				return Bank{}, fmt.Errorf("restore %s/%s: %w", pl.Name, pa.AccountNo, ledger.ErrInsufficientFunds)
			}
			accts = append(accts, ledger.Account{AccountNo: pa.AccountNo, Deposit: pa.Deposit, Delta: pa.Delta})
		}
		b.ledgers[pl.Name] = ledger.Restore(pl.Name, pl.Type, at, accts)
	}
	for _, def := range layout {
		if _, ok := b.ledgers[def.name]; !ok {
			return Bank{}, fmt.Errorf("restore: %s: %w", def.name, ErrUnknownLedger)
		}
	}
	for _, pl := range s.Loans {
		ln := loan.Loan{
			Principal:        pl.Principal,
			InterestRate:     pl.InterestRate,
			Duration:         pl.Duration,
			RemainingBalance: pl.RemainingBalance,
			PaymentsMade:     pl.PaymentsMade,
		}
		for _, p := range pl.Schedule {
			ln.Schedule = append(ln.Schedule, loan.Payment{Principal: p.Principal, Interest: p.Interest})
		}
		b.loans[pl.AccountNo] = ln
	}
	return b, nil
}

func layoutOf(name string) (ledgerDef, bool) {
	for _, def := range layout {
		if def.name == name {
			return def, true
		}
	}
	return ledgerDef{}, false
}

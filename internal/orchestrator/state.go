// internal/orchestrator/state.go

package orchestrator

import (
	"fmt"

	"economy/internal/bank"
	"economy/internal/ledger"
	"economy/internal/storage"
)

// State 匯出銀行、登錄表、借款人清單與週期的完整快照。
func (o *Orchestrator) State() storage.Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := o.bank.Snapshot()
	s.Cycle = o.cycle
	s.Owners = make(map[string]string, len(o.accounts))
	for owner, no := range o.accounts {
		s.Owners[owner] = no
	}
	s.Borrowers = append([]string(nil), o.borrowers...)
	return s
}

// Restore 以快照取代目前狀態。登錄表必須是一對一且指向現存的存款帳戶，
// 驗證失敗時目前狀態不變。
func (o *Orchestrator) Restore(s storage.Snapshot) error {
	b, err := bank.Restore(s)
	if err != nil {
		return err
	}
	accounts := make(map[string]string, len(s.Owners))
	owners := make(map[string]string, len(s.Owners))
	for owner, no := range s.Owners {
		if _, err := b.Account(no); err != nil {
			return fmt.Errorf("restore owner %s: %w", owner, err)
		}
		if holder, taken := owners[no]; taken {
			return fmt.Errorf("restore: %s claimed by %s and %s: %w", no, holder, owner, ledger.ErrAccountExists)
		}
		accounts[owner] = no
		owners[no] = owner
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.bank = b
	o.accounts = accounts
	o.owners = owners
	o.borrowers = append([]string(nil), s.Borrowers...)
	o.cycle = s.Cycle
	return nil
}

// internal/orchestrator/orchestrator.go

// Package orchestrator 是銀行的唯一持有者與序列化點。
// 所有代理人都透過 Orchestrator 操作銀行，從不直接接觸 Bank 或 Ledger。
//
// 每個變更操作在整段「讀取 → 計算新值 → 安裝」期間持有寫鎖：
// 在鎖內以目前的 Bank 快照計算新的 Bank 值，成功才替換，失敗則丟棄草稿。
// 因此兩筆同時發出的轉帳不可能交錯，也不會留下部分變更。
// 唯讀查詢只取讀鎖，讀到的永遠是某個完整安裝過的快照。
package orchestrator

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"economy/internal/bank"
	"economy/internal/ledger"
	"economy/internal/loan"
	"economy/internal/storage"
)

// Ref 以 owner 身分或帳號指定一個存款帳戶；兩種寫法可在同一呼叫中混用。
type Ref struct {
	owner     string
	accountNo string
}

// Owner 以 owner 身分指定帳戶，經登錄表解析。
func Owner(id string) Ref { return Ref{owner: id} }

// AccountNo 直接以帳號指定帳戶。
func AccountNo(no string) Ref { return Ref{accountNo: no} }

func (r Ref) String() string {
	if r.owner != "" {
		return "owner:" + r.owner
	}
	return "account:" + r.accountNo
}

// Orchestrator 持有唯一的 Bank 值、owner ↔ 帳號 雙向登錄表與受雇借款人清單。
type Orchestrator struct {
	mu deadlock.RWMutex

	bank      bank.Bank
	accounts  map[string]string // owner → 帳號
	owners    map[string]string // 帳號 → owner
	borrowers []string
	cycle     int

	recorder storage.Recorder
	log      logrus.FieldLogger
}

// New 建立銀行並初始化登錄表。recorder 為 nil 時週期紀錄不落地。
func New(capital decimal.Decimal, recorder storage.Recorder, log logrus.FieldLogger) (*Orchestrator, error) {
	b, err := bank.New(capital)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		bank:     b,
		accounts: make(map[string]string),
		owners:   make(map[string]string),
		recorder: recorder,
		log:      log,
	}, nil
}

// fail 記錄失敗的操作並原樣回傳錯誤。呼叫端須持有鎖。
// cycle 為請求所屬的週期；who 為發起者，以帳號指定時經登錄表換回 owner。
func (o *Orchestrator) fail(op string, cycle int, who Ref, fields logrus.Fields, err error) error {
	entry := o.log.WithFields(logrus.Fields{"op": op, "cycle": cycle})
	agent := who.owner
	if agent == "" {
		agent = o.owners[who.accountNo]
	}
	if agent != "" {
		entry = entry.WithField("agent", agent)
	}
	entry.WithFields(fields).WithError(err).Warn("bank operation failed")
	return err
}

// resolveLocked 將 Ref 解析為帳號。呼叫端須持有鎖。
func (o *Orchestrator) resolveLocked(r Ref) (string, error) {
	if r.owner == "" {
		if r.accountNo == "" {
			return "", fmt.Errorf("empty reference: %w", ErrUnrecognizedOwner)
		}
		return r.accountNo, nil
	}
	no, ok := o.accounts[r.owner]
	if !ok {
		return "", fmt.Errorf("%s: %w", r.owner, ErrUnrecognizedOwner)
	}
	return no, nil
}

// update 在寫鎖內以 fn 計算新的 Bank 並安裝；fn 失敗則維持原值。
func (o *Orchestrator) update(op string, cycle int, who Ref, fields logrus.Fields, fn func(b bank.Bank) (bank.Bank, error)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	next, err := fn(o.bank)
	if err != nil {
		return o.fail(op, cycle, who, fields, err)
	}
	o.bank = next
	return nil
}

// OpenDepositAccount 為 owner 開立存款帳戶，並可同時存入初始金額（同一原子步驟）。
// 同一 owner 重複開戶會被拒絕（ErrOwnerRegistered），狀態不變。
func (o *Orchestrator) OpenDepositAccount(owner string, initialDeposit decimal.Decimal) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fail := func(err error) error { return o.fail("open_account", o.cycle, Owner(owner), nil, err) }

	if owner == "" {
		return "", fail(fmt.Errorf("empty owner: %w", ErrUnrecognizedOwner))
	}
	if no, ok := o.accounts[owner]; ok {
		return "", fail(fmt.Errorf("%s already holds %s: %w", owner, no, ErrOwnerRegistered))
	}
	if initialDeposit.IsNegative() {
		return "", fail(fmt.Errorf("initial deposit %s: %w", initialDeposit, bank.ErrBadAmount))
	}

	next, no, err := o.bank.OpenDepositAccount()
	if err != nil {
		return "", fail(err)
	}
	if holder, taken := o.owners[no]; taken {
		return "", fail(fmt.Errorf("%s registered to %s: %w", no, holder, ledger.ErrAccountExists))
	}
	if initialDeposit.IsPositive() {
		if next, err = next.DepositCash(no, initialDeposit); err != nil {
			return "", fail(err)
		}
	}

	o.bank = next
	o.accounts[owner] = no
	o.owners[no] = owner
	return no, nil
}

// AccountNo 將 Ref 解析為帳號。
func (o *Orchestrator) AccountNo(r Ref) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.resolveLocked(r)
}

// OwnerOf 反查帳號的 owner。
func (o *Orchestrator) OwnerOf(accountNo string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	owner, ok := o.owners[accountNo]
	if !ok {
		return "", fmt.Errorf("%s: %w", accountNo, ErrUnrecognizedOwner)
	}
	return owner, nil
}

// Account 取得存款帳戶。
func (o *Orchestrator) Account(r Ref) (ledger.Account, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	no, err := o.resolveLocked(r)
	if err != nil {
		return ledger.Account{}, err
	}
	return o.bank.Account(no)
}

// AccountDeposit 取得存款餘額。
func (o *Orchestrator) AccountDeposit(r Ref) (decimal.Decimal, error) {
	a, err := o.Account(r)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Deposit, nil
}

// Loan 取得帳戶的借款。
func (o *Orchestrator) Loan(r Ref) (loan.Loan, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	no, err := o.resolveLocked(r)
	if err != nil {
		return loan.Loan{}, err
	}
	return o.bank.Loan(no)
}

// HasDebt 回傳帳戶是否有未結清借款；無法解析的 Ref 視為無負債。
func (o *Orchestrator) HasDebt(r Ref) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	no, err := o.resolveLocked(r)
	return err == nil && o.bank.HasDebt(no)
}

// DepositCash 存入現金。
func (o *Orchestrator) DepositCash(r Ref, amount decimal.Decimal) error {
	return o.update("deposit", o.cycle, r, logrus.Fields{"ref": r.String()}, func(b bank.Bank) (bank.Bank, error) {
		no, err := o.resolveLocked(r)
		if err != nil {
			return b, err
		}
		return b.DepositCash(no, amount)
	})
}

// RequestLoan 為帳戶申請借款。
func (o *Orchestrator) RequestLoan(r Ref, terms bank.LoanTerms, cycle int) error {
	return o.update("request_loan", cycle, r, logrus.Fields{"ref": r.String()}, func(b bank.Bank) (bank.Bank, error) {
		no, err := o.resolveLocked(r)
		if err != nil {
			return b, err
		}
		return b.RequestLoan(no, terms, cycle)
	})
}

// PayLoan 繳納帳戶借款的下一期，回傳實際繳納的分期。
func (o *Orchestrator) PayLoan(r Ref, cycle int) (loan.Payment, error) {
	var paid loan.Payment
	err := o.update("pay_loan", cycle, r, logrus.Fields{"ref": r.String()}, func(b bank.Bank) (bank.Bank, error) {
		no, err := o.resolveLocked(r)
		if err != nil {
			return b, err
		}
		next, p, err := b.PayLoan(no, cycle)
		paid = p
		return next, err
	})
	return paid, err
}

// Transfer 在兩個存款帳戶之間轉帳。
func (o *Orchestrator) Transfer(from, to Ref, amount decimal.Decimal, text string, cycle int) error {
	fields := logrus.Fields{"from": from.String(), "to": to.String(), "amount": amount.String()}
	return o.update("transfer", cycle, from, fields, func(b bank.Bank) (bank.Bank, error) {
		fromNo, err := o.resolveLocked(from)
		if err != nil {
			return b, err
		}
		toNo, err := o.resolveLocked(to)
		if err != nil {
			return b, err
		}
		return b.Transfer(fromNo, toNo, amount, text, cycle)
	})
}

// Snapshot 回傳目前安裝中的 Bank 值；Bank 為值型別，呼叫端無法改動內部狀態。
func (o *Orchestrator) Snapshot() bank.Bank {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.bank
}

// Cycle 回傳最近一次 Evaluate 的週期。
func (o *Orchestrator) Cycle() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cycle
}

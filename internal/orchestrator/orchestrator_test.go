// internal/orchestrator/orchestrator_test.go
//
// Orchestrator 測試：登錄表雙向一致、Ref 混用、並發序列化、借款人生命週期、
// 每週期例行作業與快照還原。

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"economy/internal/bank"
	"economy/internal/ledger"
	"economy/internal/loan"
	"economy/internal/storage"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var tenPercent = decimal.RequireFromString("0.1")

func newOrch(t *testing.T, rec storage.Recorder) (*Orchestrator, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	o, err := New(decimal.Zero, rec, log)
	if err != nil {
		t.Fatal(err)
	}
	return o, hook
}

func mustOpen(t *testing.T, o *Orchestrator, owner string, initial int64) string {
	t.Helper()
	no, err := o.OpenDepositAccount(owner, d(initial))
	if err != nil {
		t.Fatalf("OpenDepositAccount(%s) err=%v", owner, err)
	}
	return no
}

func deposit(t *testing.T, o *Orchestrator, r Ref) decimal.Decimal {
	t.Helper()
	v, err := o.AccountDeposit(r)
	if err != nil {
		t.Fatalf("AccountDeposit(%s) err=%v", r, err)
	}
	return v
}

// failingRecorder 模擬外部紀錄器寫入失敗。
type failingRecorder struct{ calls int }

func (f *failingRecorder) InsertTransactions(context.Context, []storage.TransactionRecord) error {
	f.calls++
	return errors.New("disk full")
}

func (f *failingRecorder) InsertTimeSeries(context.Context, []storage.TimeSeriesEntry) error {
	return nil
}

func TestOpenDepositAccountRegistry(t *testing.T) {
	o, _ := newOrch(t, nil)
	alice := mustOpen(t, o, "alice", 0)
	bob := mustOpen(t, o, "bob", 250)

	if alice != "0001" || bob != "0002" {
		t.Fatalf("numbers=%s,%s", alice, bob)
	}
	for owner, no := range map[string]string{"alice": alice, "bob": bob} {
		got, err := o.AccountNo(Owner(owner))
		if err != nil || got != no {
			t.Fatalf("AccountNo(%s)=%s,%v want %s", owner, got, err, no)
		}
		back, err := o.OwnerOf(no)
		if err != nil || back != owner {
			t.Fatalf("OwnerOf(%s)=%s,%v want %s", no, back, err, owner)
		}
	}
	if got := deposit(t, o, Owner("bob")); !got.Equal(d(250)) {
		t.Fatalf("bob=%s want=250", got)
	}

	// 重複開戶：拒絕且不產生新帳戶
	if _, err := o.OpenDepositAccount("alice", d(10)); !errors.Is(err, ErrOwnerRegistered) {
		t.Fatalf("want ErrOwnerRegistered, got %v", err)
	}
	if cash, _ := o.Snapshot().Ledger(bank.Cash); cash.Len() != 2 {
		t.Fatalf("cash accounts=%d want=2", cash.Len())
	}
	if _, err := o.OpenDepositAccount("carol", d(-1)); !errors.Is(err, bank.ErrBadAmount) {
		t.Fatalf("want ErrBadAmount, got %v", err)
	}
	if _, err := o.AccountNo(Owner("carol")); !errors.Is(err, ErrUnrecognizedOwner) {
		t.Fatalf("carol registered after failure: %v", err)
	}
}

func TestUnrecognizedOwner(t *testing.T) {
	o, hook := newOrch(t, nil)
	mustOpen(t, o, "alice", 100)

	if _, err := o.Account(Owner("mallory")); !errors.Is(err, ErrUnrecognizedOwner) {
		t.Fatalf("Account: want ErrUnrecognizedOwner, got %v", err)
	}
	if _, err := o.Loan(Owner("mallory")); !errors.Is(err, ErrUnrecognizedOwner) {
		t.Fatalf("Loan: want ErrUnrecognizedOwner, got %v", err)
	}
	err := o.Transfer(Owner("alice"), Owner("mallory"), d(1), "x", 7)
	if !errors.Is(err, ErrUnrecognizedOwner) {
		t.Fatalf("Transfer: want ErrUnrecognizedOwner, got %v", err)
	}
	if got := deposit(t, o, Owner("alice")); !got.Equal(d(100)) {
		t.Fatalf("alice=%s want=100", got)
	}

	last := hook.LastEntry()
	if last == nil || last.Data["op"] != "transfer" || last.Level != logrus.WarnLevel {
		t.Fatalf("failure not logged: %+v", last)
	}
	if last.Data["cycle"] != 7 || last.Data["agent"] != "alice" {
		t.Fatalf("want cycle=7 agent=alice, got %+v", last.Data)
	}

	// 以帳號指定時，agent 由登錄表換回 owner
	no, _ := o.AccountNo(Owner("alice"))
	if _, err := o.PayLoan(AccountNo(no), 9); !errors.Is(err, bank.ErrLoanNotFound) {
		t.Fatalf("PayLoan: want ErrLoanNotFound, got %v", err)
	}
	last = hook.LastEntry()
	if last.Data["op"] != "pay_loan" || last.Data["cycle"] != 9 || last.Data["agent"] != "alice" {
		t.Fatalf("unexpected entry: %+v", last.Data)
	}
}

// TestMixedRefs 同一呼叫可混用 owner 與帳號。
func TestMixedRefs(t *testing.T) {
	o, _ := newOrch(t, nil)
	mustOpen(t, o, "alice", 1000)
	bobNo := mustOpen(t, o, "bob", 0)

	if err := o.Transfer(Owner("alice"), AccountNo(bobNo), d(400), "rent", 3); err != nil {
		t.Fatal(err)
	}
	if err := o.DepositCash(AccountNo(bobNo), d(5)); err != nil {
		t.Fatal(err)
	}
	if got := deposit(t, o, Owner("alice")); !got.Equal(d(600)) {
		t.Fatalf("alice=%s want=600", got)
	}
	if got := deposit(t, o, AccountNo(bobNo)); !got.Equal(d(405)) {
		t.Fatalf("bob=%s want=405", got)
	}
	txs := o.Snapshot().Transactions()
	if len(txs) != 1 || txs[0].Text != "rent" || txs[0].Cycle != 3 || !txs[0].Amount.Equal(d(400)) {
		t.Fatalf("transactions=%+v", txs)
	}
}

// TestConcurrentTransfersSerialized N 筆並發轉出後餘額恰為 D − N×A。
func TestConcurrentTransfersSerialized(t *testing.T) {
	o, _ := newOrch(t, nil)
	mustOpen(t, o, "payer", 1000)
	for i := 0; i < 4; i++ {
		mustOpen(t, o, fmt.Sprintf("payee-%d", i), 0)
	}

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			to := Owner(fmt.Sprintf("payee-%d", i%4))
			if err := o.Transfer(Owner("payer"), to, d(10), "x", 1); err != nil {
				t.Errorf("transfer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if got := deposit(t, o, Owner("payer")); !got.IsZero() {
		t.Fatalf("payer=%s want=0", got)
	}
	for i := 0; i < 4; i++ {
		if got := deposit(t, o, Owner(fmt.Sprintf("payee-%d", i))); !got.Equal(d(250)) {
			t.Fatalf("payee-%d=%s want=250", i, got)
		}
	}
	if got := len(o.Snapshot().Transactions()); got != n {
		t.Fatalf("transactions=%d want=%d", got, n)
	}
}

// TestConcurrentOpenKeepsBijection 並發開戶：帳號唯一且登錄表雙向一致。
func TestConcurrentOpenKeepsBijection(t *testing.T) {
	o, _ := newOrch(t, nil)
	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if _, err := o.OpenDepositAccount(fmt.Sprintf("agent-%02d", i), d(1)); err != nil {
				t.Errorf("open %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		owner := fmt.Sprintf("agent-%02d", i)
		no, err := o.AccountNo(Owner(owner))
		if err != nil {
			t.Fatal(err)
		}
		if seen[no] {
			t.Fatalf("duplicate account %s", no)
		}
		seen[no] = true
		if back, _ := o.OwnerOf(no); back != owner {
			t.Fatalf("OwnerOf(%s)=%s want=%s", no, back, owner)
		}
	}
	if cash, _ := o.Snapshot().Ledger(bank.Cash); !cash.DepositTotal().Equal(d(n)) {
		t.Fatalf("cash total=%s want=%d", cash.DepositTotal(), n)
	}
}

func TestLoanThroughOrchestrator(t *testing.T) {
	o, _ := newOrch(t, nil)
	mustOpen(t, o, "alice", 500)
	terms := bank.LoanTerms{Amount: d(1000), InterestRate: tenPercent, Duration: 2}

	if err := o.RequestLoan(Owner("alice"), terms, 1); err != nil {
		t.Fatal(err)
	}
	if err := o.RequestLoan(Owner("alice"), terms, 1); !errors.Is(err, bank.ErrLoanOutstanding) {
		t.Fatalf("want ErrLoanOutstanding, got %v", err)
	}
	for cycle := 2; cycle <= 3; cycle++ {
		if _, err := o.PayLoan(Owner("alice"), cycle); err != nil {
			t.Fatal(err)
		}
	}
	ln, err := o.Loan(Owner("alice"))
	if err != nil || ln.Status() != loan.PaidOff {
		t.Fatalf("loan=%+v err=%v", ln, err)
	}
	if _, err := o.PayLoan(Owner("alice"), 4); !errors.Is(err, loan.ErrLoanFullyPaid) {
		t.Fatalf("want ErrLoanFullyPaid, got %v", err)
	}
	// 1500 − 2 × 576.19
	if got := deposit(t, o, Owner("alice")); !got.Equal(decimal.RequireFromString("347.62")) {
		t.Fatalf("alice=%s want=347.62", got)
	}
}

func TestPayLoanInsufficientFunds(t *testing.T) {
	o, _ := newOrch(t, nil)
	mustOpen(t, o, "alice", 0)
	mustOpen(t, o, "shop", 0)
	_ = o.RequestLoan(Owner("alice"), bank.LoanTerms{Amount: d(1000), InterestRate: tenPercent, Duration: 2}, 1)
	_ = o.Transfer(Owner("alice"), Owner("shop"), d(900), "groceries", 1)

	if _, err := o.PayLoan(Owner("alice"), 2); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if ln, _ := o.Loan(Owner("alice")); ln.PaymentsMade != 0 {
		t.Fatalf("partial payment applied: %+v", ln)
	}
}

// TestBorrowerLifecycle 有未結清借款者在 FireBorrowers 後仍在清單；結清後被移除。
func TestBorrowerLifecycle(t *testing.T) {
	o, _ := newOrch(t, nil)
	mustOpen(t, o, "alice", 1000)
	mustOpen(t, o, "bob", 0)
	_ = o.RequestLoan(Owner("alice"), bank.LoanTerms{Amount: d(100), Duration: 2}, 1)

	o.HireBorrower("alice")
	o.HireBorrower("alice")
	o.HireBorrower("bob")
	o.HireBorrower("ghost")

	o.FireBorrowers()
	if got := o.Borrowers(); len(got) != 2 || got[0] != "alice" || got[1] != "alice" {
		t.Fatalf("borrowers=%v want [alice alice]", got)
	}

	_, _ = o.PayLoan(Owner("alice"), 2)
	o.FireBorrowers()
	if got := o.Borrowers(); len(got) != 2 {
		t.Fatalf("removed while still in debt: %v", got)
	}

	_, _ = o.PayLoan(Owner("alice"), 3)
	o.FireBorrowers()
	if got := o.Borrowers(); len(got) != 0 {
		t.Fatalf("borrowers=%v want empty", got)
	}
}

func TestEvaluatePaysSalaryAndFlushes(t *testing.T) {
	rec := storage.NewMemoryRecorder()
	o, _ := newOrch(t, rec)
	simID := uuid.New()
	terms := bank.LoanTerms{Amount: d(1000), InterestRate: tenPercent, Duration: 2}

	mustOpen(t, o, "payer", 2000)
	mustOpen(t, o, "worker", 0)
	mustOpen(t, o, "second", 0)
	_ = o.RequestLoan(Owner("payer"), terms, 1)
	_, _ = o.PayLoan(Owner("payer"), 1) // 利息收入 100
	_ = o.RequestLoan(Owner("worker"), terms, 1)
	_ = o.RequestLoan(Owner("second"), terms, 1)
	o.HireBorrower("worker")
	o.HireBorrower("second")

	if err := o.Evaluate(context.Background(), 1, simID); err != nil {
		t.Fatal(err)
	}

	// worker 領走全部 100（上限 576.19）；second 因利息收入歸零而略過
	if got := deposit(t, o, Owner("worker")); !got.Equal(d(1100)) {
		t.Fatalf("worker=%s want=1100", got)
	}
	if got := deposit(t, o, Owner("second")); !got.Equal(d(1000)) {
		t.Fatalf("second=%s want=1000", got)
	}
	income, _ := o.Snapshot().AccountAt(bank.Endpoint{Ledger: bank.InterestIncome, AccountNo: bank.HouseAccount})
	if !income.Deposit.IsZero() {
		t.Fatalf("interest income=%s want 0", income.Deposit)
	}

	records := rec.Transactions()
	if len(records) != 5 {
		t.Fatalf("records=%d want=5", len(records))
	}
	last := records[len(records)-1]
	if last.Text != "salary" || !last.Amount.Equal(d(100)) || last.From != bank.HouseAccount || last.SimulationID != simID {
		t.Fatalf("salary record=%+v", last)
	}

	// 緩衝清空、週期變動歸零
	snap := o.Snapshot()
	if len(snap.Transactions()) != 0 {
		t.Fatalf("buffer not cleared")
	}
	for _, l := range snap.Ledgers() {
		if !l.Delta().IsZero() {
			t.Fatalf("%s delta=%s want 0", l.Name, l.Delta())
		}
	}

	labels := make(map[string]decimal.Decimal)
	for _, e := range rec.TimeSeries() {
		if e.SimulationID != simID || e.Cycle != 1 {
			t.Fatalf("entry not stamped: %+v", e)
		}
		labels[e.Label] = e.Value
	}
	if v := labels["borrowers.hired"]; !v.Equal(d(2)) {
		t.Fatalf("borrowers.hired=%s want=2", v)
	}
	if v, ok := labels["cash.total"]; !ok || v.IsZero() {
		t.Fatalf("cash.total missing: %v", labels)
	}

	// 下一週期沒有新交易
	if err := o.Evaluate(context.Background(), 2, simID); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.Transactions()); got != 5 {
		t.Fatalf("records=%d after quiet cycle want=5", got)
	}
	if o.Cycle() != 2 {
		t.Fatalf("cycle=%d want=2", o.Cycle())
	}
}

func TestSalaryFailureDoesNotStopOthers(t *testing.T) {
	o, hook := newOrch(t, nil)
	terms := bank.LoanTerms{Amount: d(1000), InterestRate: tenPercent, Duration: 2}
	mustOpen(t, o, "payer", 2000)
	mustOpen(t, o, "worker", 0)
	_ = o.RequestLoan(Owner("payer"), terms, 1)
	_, _ = o.PayLoan(Owner("payer"), 1) // 利息收入 100
	_ = o.RequestLoan(Owner("worker"), terms, 1)

	// ghost 未登錄，發薪失敗；排在後面的 worker 仍照常領薪
	if failed := o.paySalaries([]string{"ghost", "worker"}, 2); failed != 1 {
		t.Fatalf("failed=%d want=1", failed)
	}
	if got := deposit(t, o, Owner("worker")); !got.Equal(d(1100)) {
		t.Fatalf("worker=%s want=1100", got)
	}

	var ghost *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Data["op"] == "pay_salary" && e.Data["agent"] == "ghost" {
			ghost = e
		}
	}
	if ghost == nil || ghost.Level != logrus.WarnLevel || ghost.Data["cycle"] != 2 {
		t.Fatalf("ghost failure not logged: %+v", ghost)
	}
}

func TestFlushDrainsPendingTransfers(t *testing.T) {
	rec := storage.NewMemoryRecorder()
	o, _ := newOrch(t, rec)
	simID := uuid.New()
	mustOpen(t, o, "a", 100)
	mustOpen(t, o, "b", 0)
	_ = o.Transfer(Owner("a"), Owner("b"), d(10), "x", 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.Flush(context.WithoutCancel(ctx), 3, simID); err != nil {
		t.Fatal(err)
	}
	records := rec.Transactions()
	if len(records) != 1 || records[0].Cycle != 3 || records[0].SimulationID != simID {
		t.Fatalf("records=%+v", records)
	}
	if len(rec.TimeSeries()) != 0 {
		t.Fatalf("flush wrote metrics: %d", len(rec.TimeSeries()))
	}
	snap := o.Snapshot()
	if len(snap.Transactions()) != 0 {
		t.Fatal("buffer not cleared")
	}
	// 週期變動保留給下一次 Evaluate
	if cash, _ := snap.Ledger(bank.Cash); cash.Delta().IsZero() {
		t.Fatal("deltas reset by Flush")
	}
}

func TestEvaluateFlushFailure(t *testing.T) {
	rec := &failingRecorder{}
	o, hook := newOrch(t, rec)
	mustOpen(t, o, "a", 100)
	mustOpen(t, o, "b", 0)
	_ = o.Transfer(Owner("a"), Owner("b"), d(10), "x", 1)

	err := o.Evaluate(context.Background(), 1, uuid.New())
	if err == nil {
		t.Fatal("want flush error")
	}
	if rec.calls != 1 {
		t.Fatalf("recorder calls=%d want=1", rec.calls)
	}
	if len(o.Snapshot().Transactions()) != 0 {
		t.Fatalf("buffer kept after failed flush")
	}
	if last := hook.LastEntry(); last.Level != logrus.ErrorLevel || last.Data["op"] != "flush" {
		t.Fatalf("flush failure not logged: %+v", last)
	}
}

func TestAgentAdapter(t *testing.T) {
	rec := storage.NewMemoryRecorder()
	o, _ := newOrch(t, rec)
	simID := uuid.New()
	a := o.Agent(simID)
	if a.ID() != AgentID {
		t.Fatalf("id=%s", a.ID())
	}
	if err := a.Evaluate(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
	if o.Cycle() != 4 || len(rec.TimeSeries()) == 0 {
		t.Fatalf("cycle=%d series=%d", o.Cycle(), len(rec.TimeSeries()))
	}
}

func TestStateRestore(t *testing.T) {
	o, _ := newOrch(t, nil)
	mustOpen(t, o, "alice", 500)
	mustOpen(t, o, "bob", 0)
	_ = o.RequestLoan(Owner("bob"), bank.LoanTerms{Amount: d(300), InterestRate: tenPercent, Duration: 3}, 1)
	o.HireBorrower("bob")
	_ = o.Evaluate(context.Background(), 1, uuid.New())

	restored, _ := newOrch(t, nil)
	if err := restored.Restore(o.State()); err != nil {
		t.Fatal(err)
	}
	if got := deposit(t, restored, Owner("bob")); !got.Equal(d(300)) {
		t.Fatalf("bob=%s want=300", got)
	}
	if !restored.HasDebt(Owner("bob")) || len(restored.Borrowers()) != 1 || restored.Cycle() != 1 {
		t.Fatalf("restored state incomplete")
	}
	no, err := restored.OpenDepositAccount("carol", decimal.Zero)
	if err != nil || no != "0003" {
		t.Fatalf("carol=%s err=%v", no, err)
	}

	bad := o.State()
	bad.Owners["mallory"] = bad.Owners["alice"]
	if err := restored.Restore(bad); !errors.Is(err, ledger.ErrAccountExists) {
		t.Fatalf("want ErrAccountExists, got %v", err)
	}
	if _, err := restored.AccountNo(Owner("carol")); err != nil {
		t.Fatalf("failed restore changed state: %v", err)
	}
}

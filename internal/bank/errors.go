// internal/bank/errors.go
//
// 本檔集中定義銀行層級的領域錯誤。
// 分類帳與借款層級的錯誤（帳戶不存在、餘額不足、借款已結清）沿用
// ledger 與 loan 套件的定義，由本層以 %w 包裝後向上傳遞。

package bank

import "errors"

var (
	// ErrLoanNotFound 代表帳戶沒有借款紀錄。
	ErrLoanNotFound = errors.New("loan not found")

	// ErrLoanOutstanding 代表帳戶仍有未結清借款，不得再申請。
	ErrLoanOutstanding = errors.New("loan outstanding")

	// ErrBadAmount 代表金額非法（<=0 或初始資本為負）。
	ErrBadAmount = errors.New("amount must be > 0")

	// ErrSameAccount 代表轉帳來源與目標相同。
	ErrSameAccount = errors.New("from and to are same")

	// ErrUnbalanced 代表分錄借貸不平衡；屬於程式錯誤，不應在正常流程出現。
	ErrUnbalanced = errors.New("unbalanced journal")

	// ErrUnknownLedger 代表分類帳名稱不存在。
	ErrUnknownLedger = errors.New("unknown ledger")

	// ErrBadAccountType 代表快照中的分類帳類型不是 asset、liability、equity，
	// 或與該分類帳應有的類型不符。
	ErrBadAccountType = errors.New("bad account type")
)

// internal/ledger/errors.go
//
// 分類帳層級的領域錯誤。上層以 errors.Is 判斷，並以 %w 附加上下文。

package ledger

import "errors"

var (
	// ErrAccountNotFound 代表帳號不存在於該分類帳。
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists 代表帳號已被開立。
	ErrAccountExists = errors.New("account already exists")

	// ErrInsufficientFunds 代表過帳後餘額將為負。
	ErrInsufficientFunds = errors.New("insufficient funds")
)

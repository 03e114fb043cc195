// internal/ledger/account.go

package ledger

import "github.com/shopspring/decimal"

// Account 為分類帳內的單一帳戶。
// Deposit 恆為非負；Delta 為本週期的淨變動累計。
type Account struct {
	AccountNo string          `json:"account_no"`
	Deposit   decimal.Decimal `json:"deposit"`
	Delta     decimal.Decimal `json:"delta"`
}

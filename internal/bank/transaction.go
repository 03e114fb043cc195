// internal/bank/transaction.go

package bank

import "github.com/shopspring/decimal"

// Transaction 為一筆已完成轉帳的不可變紀錄。
// 由每次轉帳產生，每週期由 orchestrator 輸出後清空。
type Transaction struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Text   string          `json:"text"`
	Cycle  int             `json:"cycle"`
}

// internal/storage/model.go
//
// 定義「資料持久化層 (storage layer)」的結構模型：
//   - TransactionRecord / TimeSeriesEntry：每週期輸出到外部紀錄器的資料列。
//   - Snapshot：銀行與登錄表的完整狀態，用於 JSON 快照存取。
//
// 本層不依賴 bank 或 orchestrator，只描述資料形狀。
package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionRecord 為一筆已完成的轉帳，附上所屬模擬 ID。
type TransactionRecord struct {
	SimulationID uuid.UUID       `json:"simulation_id"`
	Cycle        int             `json:"cycle"`
	From         string          `json:"from"`
	To           string          `json:"to"`
	Amount       decimal.Decimal `json:"amount"`
	Text         string          `json:"text"`
}

// TimeSeriesEntry 為單一指標在某週期的取樣值。
type TimeSeriesEntry struct {
	SimulationID uuid.UUID       `json:"simulation_id"`
	Cycle        int             `json:"cycle"`
	Label        string          `json:"label"`
	Value        decimal.Decimal `json:"value"`
}

// Meta 為快照的中繼資料，保留儲存類型與版本以利日後遷移。
type Meta struct {
	Storage   string    `json:"storage"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// PersistAccount 為帳戶在儲存層的序列化格式。
type PersistAccount struct {
	AccountNo string          `json:"account_no"`
	Deposit   decimal.Decimal `json:"deposit"`
	Delta     decimal.Decimal `json:"delta"`
}

// PersistLedger 為分類帳的序列化格式。
type PersistLedger struct {
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	AccountType string           `json:"account_type"`
	Accounts    []PersistAccount `json:"accounts"`
}

// PersistPayment 為攤還表中的單期。
type PersistPayment struct {
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
}

// PersistLoan 為借款契約的序列化格式，以帳號為鍵。
type PersistLoan struct {
	AccountNo        string           `json:"account_no"`
	Principal        decimal.Decimal  `json:"principal"`
	InterestRate     decimal.Decimal  `json:"interest_rate"`
	Duration         int              `json:"duration"`
	RemainingBalance decimal.Decimal  `json:"remaining_balance"`
	PaymentsMade     int              `json:"payments_made"`
	Schedule         []PersistPayment `json:"schedule"`
}

// Snapshot 為整個銀行狀態的快照。
// Owners 為 owner → 帳號 登錄表，由 orchestrator 填入。
type Snapshot struct {
	Meta      Meta              `json:"_meta"`
	Cycle     int               `json:"cycle"`
	Ledgers   []PersistLedger   `json:"ledgers"`
	Loans     []PersistLoan     `json:"loans"`
	Owners    map[string]string `json:"owners,omitempty"`
	Borrowers []string          `json:"borrowers,omitempty"`
}

// internal/storage/recorder.go

package storage

import (
	"context"
	"sync"
)

// Recorder 為外部持久化協作者：每週期接收一批轉帳紀錄與指標。
// 寫入失敗以錯誤回報，核心不重試。
type Recorder interface {
	InsertTransactions(ctx context.Context, records []TransactionRecord) error
	InsertTimeSeries(ctx context.Context, entries []TimeSeriesEntry) error
}

// MemoryRecorder 將紀錄保存在記憶體，供測試與不落地的執行使用。
type MemoryRecorder struct {
	mu           sync.Mutex
	transactions []TransactionRecord
	series       []TimeSeriesEntry
}

// NewMemoryRecorder 建立空白的記憶體紀錄器。
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) InsertTransactions(_ context.Context, records []TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, records...)
	return nil
}

func (m *MemoryRecorder) InsertTimeSeries(_ context.Context, entries []TimeSeriesEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series = append(m.series, entries...)
	return nil
}

// Transactions 回傳目前為止收到的轉帳紀錄（拷貝）。
func (m *MemoryRecorder) Transactions() []TransactionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TransactionRecord, len(m.transactions))
	copy(out, m.transactions)
	return out
}

// TimeSeries 回傳目前為止收到的指標（拷貝）。
func (m *MemoryRecorder) TimeSeries() []TimeSeriesEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TimeSeriesEntry, len(m.series))
	copy(out, m.series)
	return out
}

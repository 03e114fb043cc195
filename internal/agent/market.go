// internal/agent/market.go

package agent

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// StaticMarket 為固定採購量、固定出價的市場。
type StaticMarket struct {
	owner    string
	capacity int
	price    decimal.Decimal

	mu       sync.Mutex
	received int
}

// NewStaticMarket 建立市場；owner 需已在銀行開戶並有足夠存款支付貨款。
func NewStaticMarket(owner string, capacity int, price decimal.Decimal) *StaticMarket {
	return &StaticMarket{owner: owner, capacity: capacity, price: price}
}

func (m *StaticMarket) Owner() string { return m.owner }

func (m *StaticMarket) PurchaseCapacity() int { return m.capacity }

func (m *StaticMarket) BidPrice() decimal.Decimal { return m.price }

func (m *StaticMarket) ReceiveDelivery(units int) error {
	if units <= 0 {
		return fmt.Errorf("delivery of %d units", units)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received += units
	return nil
}

// Received 回傳累計收貨量。
func (m *StaticMarket) Received() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

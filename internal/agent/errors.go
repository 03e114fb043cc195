// internal/agent/errors.go

package agent

import "errors"

var (
	// ErrOutOfStock 代表庫存為零。
	ErrOutOfStock = errors.New("out of stock")

	// ErrUnableToSupplyQuantity 代表要求數量超過庫存。
	ErrUnableToSupplyQuantity = errors.New("unable to supply quantity")

	// ErrNoBankAssigned 代表代理人沒有可用的銀行。
	ErrNoBankAssigned = errors.New("no bank assigned")
)

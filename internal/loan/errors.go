// internal/loan/errors.go

package loan

import "errors"

var (
	// ErrLoanFullyPaid 代表借款已結清，不再接受還款。
	ErrLoanFullyPaid = errors.New("loan fully paid")

	// ErrBadTerms 代表本金、利率或期數不合法。
	ErrBadTerms = errors.New("invalid loan terms")
)

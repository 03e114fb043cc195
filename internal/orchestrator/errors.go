// internal/orchestrator/errors.go

package orchestrator

import "errors"

var (
	// ErrUnrecognizedOwner 代表 owner 沒有登錄任何帳戶。
	ErrUnrecognizedOwner = errors.New("unrecognized owner")

	// ErrOwnerRegistered 代表 owner 已持有帳戶；重複開戶一律拒絕。
	ErrOwnerRegistered = errors.New("owner already registered")
)

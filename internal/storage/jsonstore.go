// internal/storage/jsonstore.go
//
// JSON 快照的讀寫。
// 寫入時先在同一目錄建立暫存檔，寫完並 fsync 後才以 rename() 取代原檔；
// 任何一步失敗都會移除暫存檔，既有快照保持原樣。
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotVersion 為目前寫出的快照格式版本。
const SnapshotVersion = 1

// ErrSnapshotVersion 代表快照由較新的版本寫出，無法安全讀取。
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// LoadSnapshot 讀取指定路徑的 JSON 快照。
// 檔案不存在時回傳的錯誤滿足 errors.Is(err, os.ErrNotExist)。
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	b, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snap.Meta.Version > SnapshotVersion {
		return Snapshot{}, fmt.Errorf("snapshot %s: version %d: %w", path, snap.Meta.Version, ErrSnapshotVersion)
	}
	return snap, nil
}

// SaveSnapshot 將 Snapshot 以縮排 JSON 原子寫入 path，必要時建立上層目錄。
func SaveSnapshot(path string, snap Snapshot) error {
	snap.Meta.Storage = "json_snapshot"
	snap.Meta.Version = SnapshotVersion
	snap.Meta.Timestamp = time.Now()

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmp := f.Name()

	_, err = f.Write(append(b, '\n'))
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

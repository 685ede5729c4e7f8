package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/lib/log"
	"github.com/dep2p/go-assoc/pkg/types"
)

var logger = log.Logger("core/roster")

// FileStore JSON 文件名册
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ interfaces.RosterStore = (*FileStore)(nil)

// NewFileStore 创建文件名册
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path 返回文件路径
func (s *FileStore) Path() string { return s.path }

// Load 实现 interfaces.RosterStore，文件不存在时返回 (nil, nil)
func (s *FileStore) Load(ctx context.Context) (*types.RosterSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", s.path, err)
	}

	var snap types.RosterSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode roster %s: %w", s.path, err)
	}
	logger.Debug("名册已加载", "path", s.path, "servers", len(snap.Servers), "associations", len(snap.Associations))
	return &snap, nil
}

// Save 实现 interfaces.RosterStore
func (s *FileStore) Save(ctx context.Context, snap *types.RosterSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap == nil {
		snap = &types.RosterSnapshot{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create roster dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp roster: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write roster: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync roster: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close roster: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace roster: %w", err)
	}
	return nil
}

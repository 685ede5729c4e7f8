package roster

import (
	"context"
	"sync"

	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/types"
)

// MemoryStore 内存名册
type MemoryStore struct {
	mu    sync.Mutex
	snap  *types.RosterSnapshot
	saves int
}

var _ interfaces.RosterStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存名册，initial 可为 nil
func NewMemoryStore(initial *types.RosterSnapshot) *MemoryStore {
	return &MemoryStore{snap: clone(initial)}
}

// Load 实现 interfaces.RosterStore
func (s *MemoryStore) Load(context.Context) (*types.RosterSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.snap), nil
}

// Save 实现 interfaces.RosterStore
func (s *MemoryStore) Save(_ context.Context, snap *types.RosterSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = clone(snap)
	s.saves++
	return nil
}

// Saves 返回 Save 调用次数
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func clone(in *types.RosterSnapshot) *types.RosterSnapshot {
	if in == nil {
		return nil
	}
	out := &types.RosterSnapshot{
		Servers:      make([]types.ServerConfig, len(in.Servers)),
		Associations: make([]types.RosterAssociation, len(in.Associations)),
		Settings:     in.Settings,
	}
	for i, s := range in.Servers {
		s.ExtraHostAddresses = append([]string(nil), s.ExtraHostAddresses...)
		out.Servers[i] = s
	}
	for i, a := range in.Associations {
		a.ExtraHostAddresses = append([]string(nil), a.ExtraHostAddresses...)
		out.Associations[i] = a
	}
	return out
}

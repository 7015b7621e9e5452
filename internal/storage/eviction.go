package storage

import (
	"context"
	"time"

	"github.com/hpungsan/scratchpad/internal/db"
	"github.com/hpungsan/scratchpad/internal/metrics"
)

// Eviction records the pads one Create removed to make room. Each call gets
// its own value.
type Eviction struct {
	IDs       []string
	snapshots []*Snapshot
}

// Evicted returns the victim ids; a nil Eviction has none.
func (e *Eviction) Evicted() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.IDs...)
}

// evict deletes ids from tenant. With keep set, a snapshot of each victim is
// captured first and returned for RestoreEviction.
func (s *Storage) evict(ctx context.Context, tenant string, ids []string, reason string, keep bool) ([]*Snapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var snaps []*Snapshot
	for _, id := range ids {
		if keep {
			snap, err := s.captureSnapshot(ctx, tenant, id)
			if err != nil {
				return snaps, err
			}
			if snap != nil {
				snaps = append(snaps, snap)
			}
		}
		if _, err := s.deletePad(ctx, tenant, id); err != nil {
			return snaps, err
		}
	}
	metrics.RecordEviction(s.cfg.EvictionPolicy, len(ids))
	s.logger.Info("eviction."+reason,
		"policy", s.cfg.EvictionPolicy,
		"tenant_id", tenant,
		"scratchpad_ids", ids,
	)
	return snaps, nil
}

// EvictStale removes every pad, in any tenant, last accessed at or before
// now-age. It returns the evicted ids; no snapshots are kept.
func (s *Storage) EvictStale(ctx context.Context, age time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-age).UnixMicro()
	refs, err := db.StaleScratchpads(ctx, s.db, cutoff)
	if err != nil {
		return nil, err
	}

	byTenant := make(map[string][]string)
	var tenants []string
	for _, ref := range refs {
		if _, ok := byTenant[ref.TenantID]; !ok {
			tenants = append(tenants, ref.TenantID)
		}
		byTenant[ref.TenantID] = append(byTenant[ref.TenantID], ref.ScratchID)
	}

	var evicted []string
	for _, tenant := range tenants {
		if _, err := s.evict(ctx, tenant, byTenant[tenant], "preempt", false); err != nil {
			return evicted, err
		}
		evicted = append(evicted, byTenant[tenant]...)
	}
	return evicted, nil
}

// RestoreEviction puts back every pad in ev, newest first. Individual
// failures are logged and skipped. A nil Eviction is a no-op.
func (s *Storage) RestoreEviction(ctx context.Context, ev *Eviction) {
	if ev == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreEviction(ctx, ev)
}

func (s *Storage) restoreEviction(ctx context.Context, ev *Eviction) {
	for i := len(ev.snapshots) - 1; i >= 0; i-- {
		snap := ev.snapshots[i]
		if err := s.restoreSnapshot(ctx, snap); err != nil {
			s.logger.Error("failed to restore evicted scratchpad", "scratch_id", snap.ScratchID, "error", err)
		}
	}
	ev.snapshots = nil
}

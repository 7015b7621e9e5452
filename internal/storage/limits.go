package storage

import (
	"context"

	"github.com/hpungsan/scratchpad/internal/config"
	"github.com/hpungsan/scratchpad/internal/db"
	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
)

// checkCellLimits enforces max cells per pad and max bytes per cell over
// cells plus an optional pending cell.
func checkCellLimits(limits config.Limits, cells []notebook.Cell, pending *notebook.Cell) error {
	count := len(cells)
	if pending != nil {
		if err := checkCellSize(limits, pending); err != nil {
			return err
		}
		count++
	}
	if limits.MaxCellsPerPad > 0 && count > limits.MaxCellsPerPad {
		return errors.NewCapacityLimit("maximum cells per scratchpad exceeded", limits.MaxCellsPerPad)
	}
	for i := range cells {
		if err := checkCellSize(limits, &cells[i]); err != nil {
			return err
		}
	}
	return nil
}

// checkCellSize enforces the per-cell byte ceiling on UTF-8 content length.
func checkCellSize(limits config.Limits, cell *notebook.Cell) error {
	if limits.MaxCellBytes <= 0 {
		return nil
	}
	if size := len(cell.Content); size > limits.MaxCellBytes {
		return errors.NewCapacityLimit("cell content exceeds configured byte limit", limits.MaxCellBytes).
			WithDetail("size", size)
	}
	return nil
}

// enforceCapacity makes room for one new pad in the active tenant. Under
// the fail policy a full tenant is an error; otherwise the least recently
// used pad is evicted and returned with its snapshot.
func (s *Storage) enforceCapacity(ctx context.Context, limits config.Limits) (*Eviction, error) {
	if limits.MaxScratchpads <= 0 {
		return nil, nil
	}
	count, err := db.CountScratchpads(ctx, s.db, s.tenant)
	if err != nil {
		return nil, err
	}
	if count < limits.MaxScratchpads {
		return nil, nil
	}

	switch s.cfg.EvictionPolicy {
	case config.PolicyFail:
		return nil, errors.NewCapacityLimit("maximum scratchpad capacity reached", limits.MaxScratchpads)
	case config.PolicyDiscard, config.PolicyPreempt:
	default:
		return nil, errors.NewConfig("unknown eviction policy").WithDetail("policy", s.cfg.EvictionPolicy)
	}

	victim, ok, err := db.LeastRecentlyUsed(ctx, s.db, s.tenant)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewCapacityLimit("maximum scratchpad capacity reached", limits.MaxScratchpads)
	}
	ev := &Eviction{IDs: []string{victim}}
	ev.snapshots, err = s.evict(ctx, s.tenant, ev.IDs, "capacity", true)
	if err != nil {
		s.restoreEviction(ctx, ev)
		return nil, errors.NewCapacityLimit("maximum scratchpad capacity reached", limits.MaxScratchpads).
			WithDetail("eviction_error", err.Error())
	}
	return ev, nil
}

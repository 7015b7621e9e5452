package ops

import (
	"context"

	"github.com/hpungsan/scratchpad/internal/metrics"
	"github.com/hpungsan/scratchpad/internal/storage"
)

// StatsOutput contains the result of the Stats operation.
type StatsOutput struct {
	TenantID string            `json:"tenant_id"`
	Counts   storage.Counts    `json:"counts"`
	Metrics  *metrics.Snapshot `json:"metrics,omitempty"`
}

// Stats reports the active tenant's gauges and this process's counters.
func Stats(ctx context.Context, env *Env) (out *StatsOutput, err error) {
	done, err := env.begin("stats")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	counts, err := env.Store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	out = &StatsOutput{TenantID: env.Store.Tenant(), Counts: counts}
	if r := metrics.Installed(); r != nil {
		snap := r.Snapshot()
		out.Metrics = &snap
	}
	return out, nil
}

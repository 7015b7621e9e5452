// Package ops is the operation layer behind every tool: input checking,
// validation policy, and the snapshot/reindex/rollback sequence around
// storage writes.
package ops

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/scratchpad/internal/config"
	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/metrics"
	"github.com/hpungsan/scratchpad/internal/notebook"
	"github.com/hpungsan/scratchpad/internal/search"
	"github.com/hpungsan/scratchpad/internal/shutdown"
	"github.com/hpungsan/scratchpad/internal/storage"
	"github.com/hpungsan/scratchpad/internal/validate"
)

// DefaultSearchLimit is used when a search omits its limit.
const DefaultSearchLimit = search.DefaultLimit

// Env carries the collaborators shared by every operation. The storage
// tenant is set once by the process that owns the Env.
type Env struct {
	Store     *storage.Storage
	Search    *search.Service
	Validator *validate.Dispatcher
	Shutdown  *shutdown.Coordinator
	Config    *config.Config
	Logger    *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Env) validationTimeout() time.Duration {
	if e.Config == nil {
		return 0
	}
	return e.Config.ValidationTimeout.Std()
}

// begin admits one operation. The returned func must be called with the
// operation's final error; it releases the admission slot and records metrics.
func (e *Env) begin(name string) (func(error), error) {
	release := func() {}
	if e.Shutdown != nil {
		r, ok := e.Shutdown.TryEnter()
		if !ok {
			metrics.RecordError(string(errors.ErrShuttingDown))
			return nil, errors.NewShuttingDown()
		}
		release = r
	}
	return func(err error) {
		release()
		if err != nil {
			metrics.RecordError(string(errors.As(err).Code))
			return
		}
		metrics.RecordOperation(name)
	}, nil
}

// padPayload renders pad for a response, dropping metadata when not wanted.
func padPayload(pad *notebook.Scratchpad, includeMetadata bool) map[string]any {
	payload := pad.ToMap()
	if !includeMetadata {
		delete(payload, "metadata")
	}
	return payload
}

func normalizeNamespaceFilter(values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, errors.NewValidation("namespaces filter values must not be empty")
		}
		out = append(out, v)
	}
	return out, nil
}

func normalizeTagFilter(values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return nil, errors.NewValidation("tags filter values must not be empty")
		}
	}
	return notebook.NormalizeTags(values), nil
}

func normalizeLimit(limit *int) (int, error) {
	if limit == nil {
		return 0, nil
	}
	if *limit < 0 {
		return 0, errors.NewValidation("limit must not be negative")
	}
	return *limit, nil
}

// rollback restores snap after a failed reindex. A nil snapshot is a no-op.
func (e *Env) rollback(ctx context.Context, snap *storage.Snapshot, cause error) {
	if snap == nil {
		return
	}
	if err := e.Store.RestoreSnapshot(ctx, snap); err != nil {
		e.logger().Error("failed to restore scratchpad after index failure",
			"scratch_id", snap.ScratchID, "cause", cause, "error", err)
	}
}

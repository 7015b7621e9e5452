// Package storage is the scratchpad table engine: tenant-scoped CRUD over
// SQLite, capacity enforcement with eviction, snapshots for rollback, the
// namespace registry and the embedding index.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/scratchpad/internal/config"
	"github.com/hpungsan/scratchpad/internal/db"
	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
)

// Storage serializes every table operation behind one mutex. The active
// tenant is per-instance state set by the caller before each operation.
// Exported methods take the lock; lowercase helpers assume it is held.
type Storage struct {
	mu     sync.Mutex
	db     *sql.DB
	cfg    *config.Config
	tenant string
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Storage.
type Option func(*Storage)

// WithClock overrides the time source (tests use it to order last access).
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) { s.logger = logger }
}

// New wraps an initialized database. It fails with CONFIG_ERROR when an
// existing database lacks columns the engine depends on.
func New(ctx context.Context, conn *sql.DB, cfg *config.Config, opts ...Option) (*Storage, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	missing, err := db.MissingColumns(ctx, conn)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(missing) > 0 {
		return nil, errors.NewConfig("existing database is missing required columns").
			WithDetail("missing", missing)
	}

	tenant := strings.TrimSpace(cfg.Tenant)
	if tenant == "" {
		tenant = config.DefaultTenant
	}
	s := &Storage{
		db:     conn,
		cfg:    cfg,
		tenant: tenant,
		now:    time.Now,
		logger: slog.Default().With("component", "storage"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetTenant switches the active tenant. Blank selects the default tenant.
func (s *Storage) SetTenant(tenant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		tenant = config.DefaultTenant
	}
	s.tenant = tenant
}

// Tenant returns the active tenant.
func (s *Storage) Tenant() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenant
}

// Policy returns the configured eviction policy.
func (s *Storage) Policy() string {
	return s.cfg.EvictionPolicy
}

// Limits returns the capacity limits of the active tenant.
func (s *Storage) Limits() config.Limits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.LimitsFor(s.tenant)
}

func (s *Storage) timestamp() int64 {
	return s.now().UnixMicro()
}

// ValidateIdentifier rejects ids outside the scratchpad charset.
func (s *Storage) ValidateIdentifier(id string) error {
	if !notebook.ValidID(id) {
		return errors.NewInvalidID(id)
	}
	return nil
}

// Has reports whether the active tenant holds id.
func (s *Storage) Has(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return db.ScratchpadExists(ctx, s.db, s.tenant, id)
}

// Create writes pad. With overwrite unset an existing id is rejected.
// Capacity is enforced only when the id is new and may evict one victim.
// The returned Eviction (nil when nothing was evicted) lets the caller report
// the victim or put it back with RestoreEviction. If the write itself fails,
// victims are restored before returning.
func (s *Storage) Create(ctx context.Context, pad *notebook.Scratchpad, overwrite bool) (*notebook.Scratchpad, *Eviction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ValidateIdentifier(pad.ID); err != nil {
		return nil, nil, err
	}
	existing, err := s.fetchRow(ctx, pad.ID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil && !overwrite {
		return nil, nil, errors.NewAlreadyExists(pad.ID)
	}

	limits := s.cfg.LimitsFor(s.tenant)
	if err := checkCellLimits(limits, pad.Cells, nil); err != nil {
		return nil, nil, err
	}
	var ev *Eviction
	if existing == nil {
		if ev, err = s.enforceCapacity(ctx, limits); err != nil {
			return nil, nil, err
		}
	}

	pad.Reindex()
	if err := s.writePad(ctx, s.db, pad, existing, true); err != nil {
		if ev != nil {
			s.restoreEviction(ctx, ev)
		}
		return nil, nil, err
	}
	stored, err := s.readRow(ctx, pad.ID)
	if err != nil {
		return nil, ev, err
	}
	return stored, ev, nil
}

// Read loads a pad and refreshes its last access time.
func (s *Storage) Read(ctx context.Context, id string) (*notebook.Scratchpad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ValidateIdentifier(id); err != nil {
		return nil, err
	}
	return s.readTouch(ctx, id)
}

func (s *Storage) readTouch(ctx context.Context, id string) (*notebook.Scratchpad, error) {
	if err := db.TouchScratchpad(ctx, s.db, s.tenant, id, s.timestamp()); err != nil {
		return nil, err
	}
	return s.readRow(ctx, id)
}

func (s *Storage) readRow(ctx context.Context, id string) (*notebook.Scratchpad, error) {
	row, err := db.GetScratchpad(ctx, s.db, s.tenant, id)
	if err != nil {
		return nil, err
	}
	return decodePad(row)
}

// fetchRow returns the raw row or nil when absent.
func (s *Storage) fetchRow(ctx context.Context, id string) (*db.ScratchpadRow, error) {
	row, err := db.GetScratchpad(ctx, s.db, s.tenant, id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	return row, err
}

// Delete removes a pad and its embeddings. Deleting an absent pad returns false.
func (s *Storage) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ValidateIdentifier(id); err != nil {
		return false, err
	}
	return s.deletePad(ctx, s.tenant, id)
}

func (s *Storage) deletePad(ctx context.Context, tenant, id string) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if deleted, err = db.DeleteScratchpad(ctx, tx, tenant, id); err != nil {
			return err
		}
		_, err = db.DeleteEmbeddings(ctx, tx, tenant, id)
		return err
	})
	return deleted, err
}

// AppendCell adds cell at the end of the pad.
func (s *Storage) AppendCell(ctx context.Context, id string, cell notebook.Cell) (*notebook.Scratchpad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := db.GetScratchpad(ctx, s.db, s.tenant, id)
	if err != nil {
		return nil, err
	}
	pad, err := decodePad(row)
	if err != nil {
		return nil, err
	}
	if err := checkCellLimits(s.cfg.LimitsFor(s.tenant), pad.Cells, &cell); err != nil {
		return nil, err
	}

	cell.Index = len(pad.Cells)
	pad.Cells = append(pad.Cells, cell)
	if err := s.writePad(ctx, s.db, pad, row, true); err != nil {
		return nil, err
	}
	return s.readRow(ctx, id)
}

// ReplaceCell swaps the content of cellID, keeping its id. With newIndex set
// the cell moves: it is removed and reinserted at the clamped position, the
// cells in between shift by one, and indices are rewritten contiguously.
func (s *Storage) ReplaceCell(ctx context.Context, id, cellID string, cell notebook.Cell, newIndex *int) (*notebook.Scratchpad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := db.GetScratchpad(ctx, s.db, s.tenant, id)
	if err != nil {
		return nil, err
	}
	pad, err := decodePad(row)
	if err != nil {
		return nil, err
	}

	current := pad.FindCell(cellID)
	if current < 0 {
		return nil, errors.NewNotFoundf("cell id %s not found", cellID).
			WithDetail("scratch_id", id).
			WithDetail("cell_id", cellID)
	}
	target := current
	if newIndex != nil {
		target = *newIndex
	}
	if target < 0 || target >= len(pad.Cells) {
		return nil, errors.NewInvalidIndex(target)
	}
	if err := checkCellSize(s.cfg.LimitsFor(s.tenant), &cell); err != nil {
		return nil, err
	}

	cell.CellID = pad.Cells[current].CellID
	pad.Cells[current] = cell
	if target != current {
		moving := pad.Cells[current]
		pad.Cells = slices.Delete(pad.Cells, current, current+1)
		pad.Cells = slices.Insert(pad.Cells, min(target, len(pad.Cells)), moving)
	}
	pad.Reindex()

	if err := s.writePad(ctx, s.db, pad, row, true); err != nil {
		return nil, err
	}
	return s.readRow(ctx, id)
}

// ListCells returns the pad's cells in order.
func (s *Storage) ListCells(ctx context.Context, id string) ([]notebook.Cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pad, err := s.readTouch(ctx, id)
	if err != nil {
		return nil, err
	}
	return pad.Cells, nil
}

// ListFilter narrows List. Empty fields do not filter; Limit <= 0 is unlimited.
type ListFilter struct {
	Namespaces []string
	Tags       []string
	Limit      int
}

// List returns lean summaries sorted by id. The tag filter matches against
// each pad's aggregate tags and cell tags; the namespace filter is exact.
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]notebook.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := db.ListScratchpads(ctx, s.db, s.tenant)
	if err != nil {
		return nil, err
	}
	namespaces := stringSet(filter.Namespaces)
	tags := stringSet(filter.Tags)

	summaries := make([]notebook.Summary, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		if namespaces != nil && !namespaces[deref(row.Namespace)] {
			continue
		}
		if tags != nil && !intersects(tags, row.Tags, row.CellTags) {
			continue
		}
		summaries = append(summaries, notebook.Summary{
			ScratchID:   row.ScratchID,
			Title:       row.Title,
			Description: row.Description,
			Namespace:   row.Namespace,
			CellCount:   row.CellCount,
		})
		if filter.Limit > 0 && len(summaries) == filter.Limit {
			break
		}
	}
	return summaries, nil
}

// TagLists is the result of ListTags.
type TagLists struct {
	ScratchpadTags []string `json:"scratchpad_tags"`
	CellTags       []string `json:"cell_tags"`
}

// ListTags returns the sorted, deduplicated pad-level and cell-level tags.
func (s *Storage) ListTags(ctx context.Context, namespaces []string) (TagLists, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := db.ListScratchpads(ctx, s.db, s.tenant)
	if err != nil {
		return TagLists{}, err
	}
	filter := stringSet(namespaces)

	var padTags, cellTags []string
	for i := range rows {
		if filter != nil && !filter[deref(rows[i].Namespace)] {
			continue
		}
		padTags = append(padTags, rows[i].Tags...)
		cellTags = append(cellTags, rows[i].CellTags...)
	}
	out := TagLists{
		ScratchpadTags: notebook.NormalizeTags(padTags),
		CellTags:       notebook.NormalizeTags(cellTags),
	}
	sort.Strings(out.ScratchpadTags)
	sort.Strings(out.CellTags)
	if out.ScratchpadTags == nil {
		out.ScratchpadTags = []string{}
	}
	if out.CellTags == nil {
		out.CellTags = []string{}
	}
	return out, nil
}

// ListSchemas returns the pad's registry ordered by description then name.
func (s *Storage) ListSchemas(ctx context.Context, id string) ([]notebook.SchemaEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pad, err := s.readTouch(ctx, id)
	if err != nil {
		return nil, err
	}
	return pad.Schemas().Sorted(), nil
}

// GetSchema finds a registry entry by id (case-insensitive).
func (s *Storage) GetSchema(ctx context.Context, id, schemaID string) (notebook.SchemaEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pad, err := s.readTouch(ctx, id)
	if err != nil {
		return notebook.SchemaEntry{}, err
	}
	entry, ok := pad.Schemas().ByID(schemaID)
	if !ok {
		return notebook.SchemaEntry{}, errors.NewNotFoundf("schema not found").
			WithDetail("scratch_id", id).
			WithDetail("schema_id", schemaID)
	}
	return entry, nil
}

// UpsertSchema inserts or updates one registry entry and persists the pad.
// The schema body is expected to have been checked by the caller.
func (s *Storage) UpsertSchema(ctx context.Context, id string, entry notebook.SchemaEntry) (notebook.SchemaEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := db.GetScratchpad(ctx, s.db, s.tenant, id)
	if err != nil {
		return notebook.SchemaEntry{}, err
	}
	pad, err := decodePad(row)
	if err != nil {
		return notebook.SchemaEntry{}, err
	}

	registry := pad.Schemas()
	stored, err := registry.Upsert(entry)
	if err != nil {
		if se := errors.As(err); se.Details == nil {
			se.WithDetail("scratch_id", id)
		}
		return notebook.SchemaEntry{}, err
	}
	pad.SetSchemas(registry)
	if err := s.writePad(ctx, s.db, pad, row, true); err != nil {
		return notebook.SchemaEntry{}, err
	}
	return stored, nil
}

// Counts holds gauge values for the active tenant.
type Counts struct {
	Scratchpads int `json:"scratchpads"`
	Cells       int `json:"cells"`
}

// Counts returns the active tenant's pad and cell totals.
func (s *Storage) Counts(ctx context.Context) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pads, err := db.CountScratchpads(ctx, s.db, s.tenant)
	if err != nil {
		return Counts{}, err
	}
	cells, err := db.CountCells(ctx, s.db, s.tenant)
	if err != nil {
		return Counts{}, err
	}
	return Counts{Scratchpads: pads, Cells: cells}, nil
}

// MigrateDefaultTenant moves pads stored under the default tenant to target
// and, when any moved, makes target the active tenant.
func (s *Storage) MigrateDefaultTenant(ctx context.Context, target string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target = strings.TrimSpace(target)
	if target == "" || target == config.DefaultTenant {
		return nil, nil
	}
	var moved []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		moved, err = db.MoveTenant(ctx, tx, config.DefaultTenant, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(moved) > 0 {
		s.tenant = target
		s.logger.Info("tenant.migrated", "tenant_id", target, "scratchpad_ids", moved)
	}
	return moved, nil
}

// writePad persists pad and registers its namespace. Registration failures
// are logged and do not fail the write.
func (s *Storage) writePad(ctx context.Context, q db.Querier, pad *notebook.Scratchpad, existing *db.ScratchpadRow, touch bool) error {
	now := s.timestamp()
	row, err := encodePad(s.tenant, pad, existing, now, touch)
	if err != nil {
		return err
	}
	if err := db.ReplaceScratchpad(ctx, q, row); err != nil {
		return err
	}
	if row.Namespace != nil {
		if _, err := db.InsertNamespace(ctx, q, s.tenant, *row.Namespace, now); err != nil {
			s.logger.Warn("failed to register namespace", "namespace", *row.Namespace, "error", err)
		}
	}
	return nil
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("begin: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// stringSet trims values and drops empties. A nil result means "no filter".
func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func intersects(set map[string]bool, lists ...[]string) bool {
	for _, list := range lists {
		for _, v := range list {
			if set[v] {
				return true
			}
		}
	}
	return false
}

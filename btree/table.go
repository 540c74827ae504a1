package btree

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"minidb/pager"
	"minidb/row"
)

// Table is the storage engine facade: it owns the pager, knows the root page,
// and exposes open/insert/find/scan/close.
type Table struct {
	pager    *pager.Pager
	rootPage uint32
	logger   *zap.Logger
	rowCache *ristretto.Cache[uint32, row.Row]
}

type options struct {
	maxPages     uint32
	rowCacheSize int64
	logger       *zap.Logger
}

// Option configures Open.
type Option func(*options)

// WithMaxPages bounds the database file to n pages. Zero keeps the default.
func WithMaxPages(n uint32) Option {
	return func(o *options) { o.maxPages = n }
}

// WithRowCacheSize sets how many rows the point-lookup cache may hold.
func WithRowCacheSize(n int64) Option {
	return func(o *options) { o.rowCacheSize = n }
}

// WithLogger routes engine logging to l instead of a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open opens or creates the single-table database at path. A fresh file gets
// page 0 initialized as an empty root leaf; an existing file is validated and
// refused on any structural corruption.
func Open(path string, opts ...Option) (*Table, error) {
	o := options{
		maxPages:     pager.DefaultMaxPages,
		rowCacheSize: 1 << 14,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	p, err := pager.Open(path, o.maxPages, o.logger)
	if err != nil {
		return nil, err
	}
	t := &Table{pager: p, rootPage: 0, logger: o.logger}

	if p.NumPages() == 0 {
		root, err := p.GetPage(t.rootPage)
		if err != nil {
			p.Discard()
			return nil, err
		}
		initLeafNode(root)
		setRootNode(root, true)
	} else if err := t.validate(); err != nil {
		// Never write back to a file that failed validation.
		p.Discard()
		return nil, err
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint32, row.Row]{
		NumCounters: o.rowCacheSize * 10,
		MaxCost:     o.rowCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		p.Discard()
		return nil, fmt.Errorf("row cache: %w", err)
	}
	t.rowCache = cache

	t.logger.Info("table opened",
		zap.String("path", path),
		zap.Uint32("pages", p.NumPages()))
	return t, nil
}

// validate checks an existing file before the table is used: page 0 carries
// the root flag, every node has a known type within capacity, leaf keys are
// strictly ascending, and every stored row carries the validity marker.
func (t *Table) validate() error {
	root, err := t.pager.GetPage(t.rootPage)
	if err != nil {
		return err
	}
	if !isRootNode(root) {
		return fmt.Errorf("page 0 is missing the root flag: %w", pager.ErrCorrupt)
	}
	return t.validateNode(t.rootPage, true)
}

func (t *Table) validateNode(pageNum uint32, root bool) error {
	page, err := t.pager.GetPage(pageNum)
	if err != nil {
		return err
	}
	if !root && isRootNode(page) {
		return fmt.Errorf("page %d carries the root flag: %w", pageNum, pager.ErrCorrupt)
	}
	switch getNodeType(page) {
	case nodeLeaf:
		n := leafNumCells(page)
		if n > LeafMaxCells {
			return fmt.Errorf("page %d holds %d cells (max %d): %w", pageNum, n, LeafMaxCells, pager.ErrCorrupt)
		}
		for i := uint32(0); i < n; i++ {
			if i > 0 && leafCellKey(page, i-1) >= leafCellKey(page, i) {
				return fmt.Errorf("page %d cells out of order at %d: %w", pageNum, i, pager.ErrCorrupt)
			}
			if !row.MarkerValid(leafCellValue(page, i)) {
				return fmt.Errorf("page %d cell %d: %v: %w", pageNum, i, row.ErrInvalidMarker, pager.ErrCorrupt)
			}
		}
	case nodeInternal:
		n := internalNumKeys(page)
		if n == 0 || n > internalMaxKeys {
			return fmt.Errorf("page %d holds %d keys (max %d): %w", pageNum, n, internalMaxKeys, pager.ErrCorrupt)
		}
		for i := uint32(0); i <= n; i++ {
			if err := t.validateNode(internalChild(page, i), false); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("page %d has unknown node type %d: %w", pageNum, page[nodeTypeOffset], pager.ErrCorrupt)
	}
	return nil
}

// Find returns the row stored under id. Hits go through the row cache first;
// the table is insert-only, so a cached row can never be stale.
func (t *Table) Find(id uint32) (row.Row, bool, error) {
	if r, ok := t.rowCache.Get(id); ok {
		return r, true, nil
	}
	c, err := t.find(id)
	if err != nil {
		return row.Row{}, false, err
	}
	page, err := t.pager.GetPage(c.pageNum)
	if err != nil {
		return row.Row{}, false, err
	}
	if c.cellNum >= leafNumCells(page) || leafCellKey(page, c.cellNum) != id {
		return row.Row{}, false, nil
	}
	r, err := row.Deserialize(leafCellValue(page, c.cellNum))
	if err != nil {
		return row.Row{}, false, err
	}
	t.cacheRow(r)
	return r, true, nil
}

func (t *Table) cacheRow(r row.Row) {
	if t.rowCache != nil {
		t.rowCache.Set(r.ID, r, 1)
	}
}

// Scan returns every row in ascending key order. Cells that fail the validity
// marker check are skipped rather than surfaced.
func (t *Table) Scan() ([]row.Row, error) {
	c, err := t.Start()
	if err != nil {
		return nil, err
	}
	var rows []row.Row
	for !c.End() {
		v, err := c.Value()
		if err != nil {
			return nil, err
		}
		if row.MarkerValid(v) {
			r, err := row.Deserialize(v)
			if err != nil {
				return nil, err
			}
			rows = append(rows, r)
		}
		if err := c.Advance(); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Close flushes every resident page and releases the table. The table must
// not be used afterwards.
func (t *Table) Close() error {
	if t.rowCache != nil {
		t.rowCache.Close()
		t.rowCache = nil
	}
	if err := t.pager.Close(); err != nil {
		return err
	}
	t.logger.Info("table closed")
	return nil
}

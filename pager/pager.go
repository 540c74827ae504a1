// Package pager owns the database file: it lazily loads fixed-size pages into
// memory, tracks the page count, and writes pages back on demand. Pages stay
// resident for the lifetime of the pager; residency is bounded by a maximum
// page count, never by eviction.
package pager

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

const (
	// PageSize is the fixed on-disk page size in bytes.
	PageSize = 4096

	// DefaultMaxPages bounds the file when no explicit limit is given.
	DefaultMaxPages = 1024
)

var (
	// ErrPageOutOfRange reports a page number beyond the configured maximum.
	ErrPageOutOfRange = errors.New("page number out of range")

	// ErrCorrupt reports a database file the engine refuses to operate on.
	ErrCorrupt = errors.New("corrupt database file")
)

// Pager is the page cache over a single database file.
type Pager struct {
	file       *os.File
	path       string
	fileLength int64
	numPages   uint32
	maxPages   uint32
	pages      map[uint32][]byte
	logger     *zap.Logger
}

// Open opens or creates the database file at path. The file length must be an
// exact multiple of PageSize; anything else is corruption, not a short file.
func Open(path string, maxPages uint32, logger *zap.Logger) (*Pager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open database file %s: %w", path, err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat database file %s: %w", path, err)
	}
	if stat.Size()%PageSize != 0 {
		file.Close()
		return nil, fmt.Errorf("file length %d is not a multiple of page size %d: %w",
			stat.Size(), PageSize, ErrCorrupt)
	}
	p := &Pager{
		file:       file,
		path:       path,
		fileLength: stat.Size(),
		numPages:   uint32(stat.Size() / PageSize),
		maxPages:   maxPages,
		pages:      make(map[uint32][]byte),
		logger:     logger,
	}
	logger.Debug("pager opened",
		zap.String("path", path),
		zap.Uint32("pages", p.numPages),
		zap.Uint32("max_pages", p.maxPages))
	return p, nil
}

// GetPage returns the resident buffer for page n, reading it from disk on
// first touch. Requesting a page beyond the current extent hands back a fresh
// zero-filled page and grows the page count; the caller initializes it.
func (p *Pager) GetPage(n uint32) ([]byte, error) {
	if n >= p.maxPages {
		return nil, fmt.Errorf("page %d (max %d): %w", n, p.maxPages, ErrPageOutOfRange)
	}
	if page, ok := p.pages[n]; ok {
		return page, nil
	}
	page := make([]byte, PageSize)
	if n < p.numPages {
		// A short read near EOF leaves the remainder zero-filled.
		if _, err := p.file.ReadAt(page, int64(n)*PageSize); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read page %d: %w", n, err)
		}
	} else {
		p.numPages = n + 1
		p.logger.Debug("page count grew", zap.Uint32("pages", p.numPages))
	}
	p.pages[n] = page
	return page, nil
}

// Flush writes exactly PageSize bytes for resident page n at its fixed offset.
func (p *Pager) Flush(n uint32) error {
	page, ok := p.pages[n]
	if !ok {
		return fmt.Errorf("flush of non-resident page %d", n)
	}
	written, err := p.file.WriteAt(page, int64(n)*PageSize)
	if err != nil {
		return fmt.Errorf("write page %d: %w", n, err)
	}
	if written != PageSize {
		return fmt.Errorf("short write on page %d: %d of %d bytes", n, written, PageSize)
	}
	return nil
}

// NumPages reports the current page count, including never-flushed pages.
func (p *Pager) NumPages() uint32 { return p.numPages }

// MaxPages reports the configured page bound.
func (p *Pager) MaxPages() uint32 { return p.maxPages }

// UnusedPage returns the page number the next allocation will occupy. New
// pages always go to the end of the file; there is no free list because
// deletion is not supported.
func (p *Pager) UnusedPage() uint32 { return p.numPages }

// CanAllocate reports whether n more pages fit under the page bound.
func (p *Pager) CanAllocate(n uint32) bool {
	return p.numPages+n <= p.maxPages
}

// Close flushes every resident page, releases the cache, and closes the file.
func (p *Pager) Close() error {
	flushed := 0
	for n := uint32(0); n < p.numPages; n++ {
		if _, ok := p.pages[n]; !ok {
			continue
		}
		if err := p.Flush(n); err != nil {
			p.file.Close()
			return err
		}
		flushed++
	}
	p.pages = nil
	if err := p.file.Sync(); err != nil {
		p.file.Close()
		return fmt.Errorf("sync database file: %w", err)
	}
	p.logger.Debug("pager closed", zap.Int("pages_flushed", flushed))
	return p.file.Close()
}

// Discard releases the cache and closes the file without flushing. Used when
// validation refuses a file: a corrupt database must not be written to.
func (p *Pager) Discard() error {
	p.pages = nil
	return p.file.Close()
}

package btree

import (
	"fmt"

	"go.uber.org/zap"

	"minidb/row"
)

// Insert adds r to the table, keyed by r.ID. The key must not already exist.
// Recoverable failures (ErrDuplicateKey, ErrTableFull) leave the tree
// untouched.
func (t *Table) Insert(r row.Row) error {
	c, err := t.find(r.ID)
	if err != nil {
		return err
	}
	page, err := t.pager.GetPage(c.pageNum)
	if err != nil {
		return err
	}
	numCells := leafNumCells(page)
	if c.cellNum < numCells && leafCellKey(page, c.cellNum) == r.ID {
		return fmt.Errorf("key %d: %w", r.ID, ErrDuplicateKey)
	}

	if numCells >= LeafMaxCells {
		if err := t.ensureSplitCapacity(page); err != nil {
			return err
		}
		if err := t.leafSplitAndInsert(c.pageNum, c.cellNum, r); err != nil {
			return err
		}
	} else {
		for i := numCells; i > c.cellNum; i-- {
			copy(leafCell(page, i), leafCell(page, i-1))
		}
		writeLeafCell(page, c.cellNum, r.ID, r)
		setLeafNumCells(page, numCells+1)
	}
	t.cacheRow(r)
	return nil
}

// ensureSplitCapacity verifies the pager can hold every page a split of this
// full leaf could allocate, so a capacity failure mutates nothing. Each full
// ancestor adds one sibling page; a splitting root also needs a page for the
// moved root body.
func (t *Table) ensureSplitCapacity(leaf []byte) error {
	needed := uint32(1)
	node := leaf
	for {
		if isRootNode(node) {
			needed++
			break
		}
		parent, err := t.pager.GetPage(parentPointer(node))
		if err != nil {
			return err
		}
		if internalNumKeys(parent) < internalMaxKeys {
			break
		}
		needed++
		node = parent
	}
	if !t.pager.CanAllocate(needed) {
		return fmt.Errorf("split needs %d new pages, %d of %d in use: %w",
			needed, t.pager.NumPages(), t.pager.MaxPages(), ErrTableFull)
	}
	return nil
}

// leafSplitAndInsert relieves a full leaf: the existing cells plus the new one
// are partitioned in order across the old page and a new sibling, and the
// sibling is promoted into the parent keyed by its maximum.
func (t *Table) leafSplitAndInsert(leafPage uint32, cellNum uint32, r row.Row) error {
	oldPage, err := t.pager.GetPage(leafPage)
	if err != nil {
		return err
	}
	oldMax, err := t.nodeMaxKey(oldPage)
	if err != nil {
		return err
	}

	newPageNum := t.pager.UnusedPage()
	newPage, err := t.pager.GetPage(newPageNum)
	if err != nil {
		return err
	}
	initLeafNode(newPage)
	setParentPointer(newPage, parentPointer(oldPage))

	// Walk the combined cell sequence from the top so in-place shifts on the
	// old page never clobber an unread source cell.
	for i := int(LeafMaxCells); i >= 0; i-- {
		var dst []byte
		var idx uint32
		if i >= leafLeftSplitCount {
			dst, idx = newPage, uint32(i-leafLeftSplitCount)
		} else {
			dst, idx = oldPage, uint32(i)
		}
		switch {
		case i == int(cellNum):
			writeLeafCell(dst, idx, r.ID, r)
		case i > int(cellNum):
			copy(leafCell(dst, idx), leafCell(oldPage, uint32(i-1)))
		default:
			copy(leafCell(dst, idx), leafCell(oldPage, uint32(i)))
		}
	}
	setLeafNumCells(oldPage, leafLeftSplitCount)
	setLeafNumCells(newPage, leafRightSplitCount)

	t.logger.Debug("leaf split",
		zap.Uint32("page", leafPage),
		zap.Uint32("sibling", newPageNum),
		zap.Uint32("key", r.ID))

	if isRootNode(oldPage) {
		return t.createNewRoot(newPageNum)
	}
	parentNum := parentPointer(oldPage)
	parent, err := t.pager.GetPage(parentNum)
	if err != nil {
		return err
	}
	newMax, err := t.nodeMaxKey(oldPage)
	if err != nil {
		return err
	}
	updateInternalKey(parent, oldMax, newMax)
	return t.internalInsert(parentNum, newPageNum)
}

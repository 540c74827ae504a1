package btree

import (
	"fmt"

	"minidb/pager"
)

// leafFind returns the index of the first cell whose key is >= key. The index
// doubles as the insertion point and, when the key there matches, as an exact
// hit for duplicate detection.
func leafFind(page []byte, key uint32) uint32 {
	lo, hi := uint32(0), leafNumCells(page)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if leafCellKey(page, mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// internalFindChildIndex returns the index of the child that owns key: the
// first entry whose key is >= key, or key_count for the right child.
func internalFindChildIndex(page []byte, key uint32) uint32 {
	lo, hi := uint32(0), internalNumKeys(page)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if internalKey(page, mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// findLeaf descends from pageNum through any number of internal levels to the
// leaf owning key.
func (t *Table) findLeaf(pageNum uint32, key uint32) (uint32, []byte, error) {
	for {
		page, err := t.pager.GetPage(pageNum)
		if err != nil {
			return 0, nil, err
		}
		if getNodeType(page) == nodeLeaf {
			return pageNum, page, nil
		}
		pageNum = internalChild(page, internalFindChildIndex(page, key))
	}
}

// leftmostLeaf descends from pageNum following only first children.
func (t *Table) leftmostLeaf(pageNum uint32) (uint32, []byte, error) {
	for {
		page, err := t.pager.GetPage(pageNum)
		if err != nil {
			return 0, nil, err
		}
		if getNodeType(page) == nodeLeaf {
			return pageNum, page, nil
		}
		pageNum = internalChild(page, 0)
	}
}

// internalChildIndexOf locates child among a node's children: entry children
// first, the right child at index key_count.
func internalChildIndexOf(page []byte, child uint32) (uint32, error) {
	n := internalNumKeys(page)
	for i := uint32(0); i <= n; i++ {
		if internalChild(page, i) == child {
			return i, nil
		}
	}
	return 0, fmt.Errorf("page %d is not a child of its recorded parent: %w", child, pager.ErrCorrupt)
}

// nextLeaf locates the leaf following pageNum in key order: climb the parent
// links to the first ancestor with a sibling on the right, then descend that
// sibling's leftmost path. Returns false when pageNum is the last leaf.
func (t *Table) nextLeaf(pageNum uint32) (uint32, bool, error) {
	for {
		page, err := t.pager.GetPage(pageNum)
		if err != nil {
			return 0, false, err
		}
		if isRootNode(page) {
			return 0, false, nil
		}
		parentNum := parentPointer(page)
		parent, err := t.pager.GetPage(parentNum)
		if err != nil {
			return 0, false, err
		}
		idx, err := internalChildIndexOf(parent, pageNum)
		if err != nil {
			return 0, false, err
		}
		if idx < internalNumKeys(parent) {
			leafNum, _, err := t.leftmostLeaf(internalChild(parent, idx+1))
			if err != nil {
				return 0, false, err
			}
			return leafNum, true, nil
		}
		// Current page is the right child; keep climbing.
		pageNum = parentNum
	}
}

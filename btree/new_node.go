package btree

import "go.uber.org/zap"

// initLeafNode formats page as an empty non-root leaf.
func initLeafNode(page []byte) {
	setNodeType(page, nodeLeaf)
	setRootNode(page, false)
	setParentPointer(page, 0)
	setLeafNumCells(page, 0)
}

// initInternalNode formats page as an empty non-root internal node.
func initInternalNode(page []byte) {
	setNodeType(page, nodeInternal)
	setRootNode(page, false)
	setParentPointer(page, 0)
	setInternalNumKeys(page, 0)
	setInternalRightChild(page, 0)
}

// nodeMaxKey returns the largest key in the subtree rooted at page: the last
// cell of a leaf, or the max of an internal node's right child. An empty leaf
// only exists as a brand-new root and reports 0.
func (t *Table) nodeMaxKey(page []byte) (uint32, error) {
	if getNodeType(page) == nodeLeaf {
		n := leafNumCells(page)
		if n == 0 {
			return 0, nil
		}
		return leafCellKey(page, n-1), nil
	}
	child, err := t.pager.GetPage(internalRightChild(page))
	if err != nil {
		return 0, err
	}
	return t.nodeMaxKey(child)
}

// createNewRoot grows the tree by one level after the root split off
// rightChildPage. The old root's contents move to a fresh page so that page 0
// stays the root; page 0 is rewritten as an internal node over the moved page
// and the new sibling.
func (t *Table) createNewRoot(rightChildPage uint32) error {
	root, err := t.pager.GetPage(t.rootPage)
	if err != nil {
		return err
	}
	leftChildPage := t.pager.UnusedPage()
	leftChild, err := t.pager.GetPage(leftChildPage)
	if err != nil {
		return err
	}
	copy(leftChild, root)
	setRootNode(leftChild, false)
	setParentPointer(leftChild, t.rootPage)
	if getNodeType(leftChild) == nodeInternal {
		// The moved node's children still point at page 0.
		for i := uint32(0); i <= internalNumKeys(leftChild); i++ {
			child, err := t.pager.GetPage(internalChild(leftChild, i))
			if err != nil {
				return err
			}
			setParentPointer(child, leftChildPage)
		}
	}
	leftMax, err := t.nodeMaxKey(leftChild)
	if err != nil {
		return err
	}

	initInternalNode(root)
	setRootNode(root, true)
	setInternalNumKeys(root, 1)
	setInternalChild(root, 0, leftChildPage)
	setInternalKey(root, 0, leftMax)
	setInternalRightChild(root, rightChildPage)

	rightChild, err := t.pager.GetPage(rightChildPage)
	if err != nil {
		return err
	}
	setParentPointer(rightChild, t.rootPage)

	t.logger.Debug("tree grew a level",
		zap.Uint32("left_child", leftChildPage),
		zap.Uint32("right_child", rightChildPage),
		zap.Uint32("separator", leftMax))
	return nil
}

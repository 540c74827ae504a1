package btree

// updateInternalKey rewrites the separator that routed oldKey after the
// corresponding child's maximum changed. When the child is the right child
// there is no separator to rewrite.
func updateInternalKey(page []byte, oldKey, newKey uint32) {
	i := internalFindChildIndex(page, oldKey)
	if i < internalNumKeys(page) {
		setInternalKey(page, i, newKey)
	}
}

// internalInsert adds childPage to the internal node at parentPage, keyed by
// the child's maximum. A child greater than the current right child takes its
// place and the displaced right child gets a routing entry. A full parent
// splits first and propagates upward.
func (t *Table) internalInsert(parentPage, childPage uint32) error {
	parent, err := t.pager.GetPage(parentPage)
	if err != nil {
		return err
	}
	child, err := t.pager.GetPage(childPage)
	if err != nil {
		return err
	}
	childMax, err := t.nodeMaxKey(child)
	if err != nil {
		return err
	}

	numKeys := internalNumKeys(parent)
	if numKeys >= internalMaxKeys {
		return t.internalSplitAndInsert(parentPage, childPage)
	}

	rightChildPage := internalRightChild(parent)
	rightChild, err := t.pager.GetPage(rightChildPage)
	if err != nil {
		return err
	}
	rightMax, err := t.nodeMaxKey(rightChild)
	if err != nil {
		return err
	}
	if childMax > rightMax {
		internalInsertEntryAt(parent, numKeys, rightChildPage, rightMax)
		setInternalRightChild(parent, childPage)
	} else {
		internalInsertEntryAt(parent, internalFindChildIndex(parent, childMax), childPage, childMax)
	}
	setParentPointer(child, parentPage)
	return nil
}

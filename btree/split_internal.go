package btree

import "go.uber.org/zap"

// internalSplitAndInsert relieves a full internal node while inserting
// childPage. The node's upper entries move to a new sibling, the pending child
// is routed into whichever half owns its key range, and the sibling is
// promoted into the parent exactly like a split leaf.
func (t *Table) internalSplitAndInsert(oldPageNum, childPage uint32) error {
	oldPage, err := t.pager.GetPage(oldPageNum)
	if err != nil {
		return err
	}
	oldMax, err := t.nodeMaxKey(oldPage)
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

	newPageNum := t.pager.UnusedPage()
	newPage, err := t.pager.GetPage(newPageNum)
	if err != nil {
		return err
	}
	initInternalNode(newPage)
	setParentPointer(newPage, parentPointer(oldPage))

	numKeys := internalNumKeys(oldPage)
	mid := numKeys / 2
	// Separator between the halves: the max of entry mid's subtree, which
	// stays behind as the left half's right child.
	separator := internalKey(oldPage, mid)
	oldRightChild := internalRightChild(oldPage)
	leftRightChild := internalChild(oldPage, mid)

	for i := mid + 1; i < numKeys; i++ {
		internalInsertEntryAt(newPage, internalNumKeys(newPage),
			internalChild(oldPage, i), internalKey(oldPage, i))
	}
	setInternalRightChild(newPage, oldRightChild)

	setInternalNumKeys(oldPage, mid)
	setInternalRightChild(oldPage, leftRightChild)

	// Children that moved still record the old page as their parent.
	for i := uint32(0); i <= internalNumKeys(newPage); i++ {
		moved, err := t.pager.GetPage(internalChild(newPage, i))
		if err != nil {
			return err
		}
		setParentPointer(moved, newPageNum)
	}

	target := oldPageNum
	if childMax > separator {
		target = newPageNum
	}
	if err := t.internalInsert(target, childPage); err != nil {
		return err
	}

	t.logger.Debug("internal node split",
		zap.Uint32("page", oldPageNum),
		zap.Uint32("sibling", newPageNum),
		zap.Uint32("separator", separator))

	if isRootNode(oldPage) {
		return t.createNewRoot(newPageNum)
	}
	parentNum := parentPointer(oldPage)
	parent, err := t.pager.GetPage(parentNum)
	if err != nil {
		return err
	}
	newLeftMax, err := t.nodeMaxKey(oldPage)
	if err != nil {
		return err
	}
	updateInternalKey(parent, oldMax, newLeftMax)
	return t.internalInsert(parentNum, newPageNum)
}

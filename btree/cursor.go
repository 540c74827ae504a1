package btree

import "minidb/row"

// Cursor is a resolved position in the table: a leaf page, a cell index
// within it, and whether the position is past the last row. Cursors are
// transient locators; they are never persisted and do not survive mutation.
type Cursor struct {
	table      *Table
	pageNum    uint32
	cellNum    uint32
	endOfTable bool
}

// Start returns a cursor on the first row in key order, positioned at cell 0
// of the leftmost leaf. On an empty table the cursor starts exhausted.
func (t *Table) Start() (*Cursor, error) {
	pageNum, page, err := t.leftmostLeaf(t.rootPage)
	if err != nil {
		return nil, err
	}
	return &Cursor{
		table:      t,
		pageNum:    pageNum,
		endOfTable: leafNumCells(page) == 0,
	}, nil
}

// find returns a cursor at key's cell, or at the position where the key would
// be inserted. The caller distinguishes the two by comparing the key there.
func (t *Table) find(key uint32) (*Cursor, error) {
	pageNum, page, err := t.findLeaf(t.rootPage, key)
	if err != nil {
		return nil, err
	}
	return &Cursor{
		table:   t,
		pageNum: pageNum,
		cellNum: leafFind(page, key),
	}, nil
}

// End reports whether the cursor has moved past the last row.
func (c *Cursor) End() bool { return c.endOfTable }

// Key returns the cell key under the cursor.
func (c *Cursor) Key() (uint32, error) {
	page, err := c.table.pager.GetPage(c.pageNum)
	if err != nil {
		return 0, err
	}
	return leafCellKey(page, c.cellNum), nil
}

// Value returns the raw serialized row bytes under the cursor.
func (c *Cursor) Value() ([]byte, error) {
	page, err := c.table.pager.GetPage(c.pageNum)
	if err != nil {
		return nil, err
	}
	return leafCellValue(page, c.cellNum), nil
}

// Row decodes the record under the cursor.
func (c *Cursor) Row() (row.Row, error) {
	v, err := c.Value()
	if err != nil {
		return row.Row{}, err
	}
	return row.Deserialize(v)
}

// Advance moves the cursor one cell forward, continuing into the next leaf in
// key order when the current one is exhausted.
func (c *Cursor) Advance() error {
	page, err := c.table.pager.GetPage(c.pageNum)
	if err != nil {
		return err
	}
	c.cellNum++
	if c.cellNum < leafNumCells(page) {
		return nil
	}
	next, ok, err := c.table.nextLeaf(c.pageNum)
	if err != nil {
		return err
	}
	if !ok {
		c.endOfTable = true
		return nil
	}
	// Leaves are only ever created by splits, so the next leaf is never empty.
	c.pageNum = next
	c.cellNum = 0
	return nil
}

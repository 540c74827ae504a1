package btree

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"minidb/pager"
	"minidb/row"
)

func testRow(t *testing.T, id uint32) row.Row {
	t.Helper()
	r, err := row.New(id, fmt.Sprintf("user%d", id), fmt.Sprintf("user%d@example.com", id))
	require.NoError(t, err)
	return r
}

func openTestTable(t *testing.T, path string, opts ...Option) *Table {
	t.Helper()
	table, err := Open(path, opts...)
	require.NoError(t, err)
	return table
}

func requireScan(t *testing.T, table *Table, wantIDs ...uint32) []row.Row {
	t.Helper()
	rows, err := table.Scan()
	require.NoError(t, err)
	require.Len(t, rows, len(wantIDs))
	for i, r := range rows {
		require.Equal(t, wantIDs[i], r.ID)
	}
	return rows
}

func TestInsertAndScanSingleRow(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	r, err := row.New(1, "foo", "a@b.com")
	require.NoError(t, err)
	require.NoError(t, table.Insert(r))

	rows := requireScan(t, table, 1)
	require.Equal(t, "foo", rows[0].Username)
	require.Equal(t, "a@b.com", rows[0].Email)
	require.NoError(t, table.Close())
}

func TestScanReturnsKeyOrder(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	x, err := row.New(2, "x", "x@x.com")
	require.NoError(t, err)
	y, err := row.New(1, "y", "y@y.com")
	require.NoError(t, err)
	require.NoError(t, table.Insert(x))
	require.NoError(t, table.Insert(y))

	rows := requireScan(t, table, 1, 2)
	require.Equal(t, "y", rows[0].Username)
	require.Equal(t, "x", rows[1].Username)
	require.NoError(t, table.Close())
}

func TestDuplicateKeyRejected(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	first, err := row.New(3, "dup", "d@d.com")
	require.NoError(t, err)
	second, err := row.New(3, "dup2", "d2@d.com")
	require.NoError(t, err)

	require.NoError(t, table.Insert(first))
	require.ErrorIs(t, table.Insert(second), ErrDuplicateKey)

	rows := requireScan(t, table, 3)
	require.Equal(t, "dup", rows[0].Username)
	require.NoError(t, table.Close())
}

func TestEmptyTable(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	requireScan(t, table)
	c, err := table.Start()
	require.NoError(t, err)
	require.True(t, c.End())

	_, found, err := table.Find(1)
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, table.Close())
}

func TestFindHitAndMiss(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	for i := uint32(1); i <= 30; i++ {
		require.NoError(t, table.Insert(testRow(t, i)))
	}

	got, found, err := table.Find(17)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, testRow(t, 17), got)

	// A second lookup may come out of the row cache; it must agree.
	again, found, err := table.Find(17)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, got, again)

	_, found, err = table.Find(31)
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, table.Close())
}

func TestRandomOrderScansAscending(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	const n = 100
	for _, id := range rand.New(rand.NewSource(1)).Perm(n) {
		require.NoError(t, table.Insert(testRow(t, uint32(id+1))))
	}
	rows, err := table.Scan()
	require.NoError(t, err)
	require.Len(t, rows, n)
	for i, r := range rows {
		require.EqualValues(t, i+1, r.ID)
	}
	require.NoError(t, table.Close())
}

func TestLeafSplitSpansTwoLeaves(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	want := make([]uint32, 0, LeafMaxCells+1)
	for i := uint32(1); i <= LeafMaxCells+1; i++ {
		require.NoError(t, table.Insert(testRow(t, i)))
		want = append(want, i)
	}

	// The split allocated a sibling leaf and a page for the moved root body.
	require.EqualValues(t, 3, table.pager.NumPages())
	root, err := table.pager.GetPage(0)
	require.NoError(t, err)
	require.Equal(t, nodeInternal, getNodeType(root))
	require.EqualValues(t, 1, internalNumKeys(root))

	// Both halves are non-empty and their key ranges are disjoint.
	left, err := table.pager.GetPage(internalChild(root, 0))
	require.NoError(t, err)
	right, err := table.pager.GetPage(internalRightChild(root))
	require.NoError(t, err)
	require.NotZero(t, leafNumCells(left))
	require.NotZero(t, leafNumCells(right))
	require.Less(t,
		leafCellKey(left, leafNumCells(left)-1),
		leafCellKey(right, 0))

	requireScan(t, table, want...)
	require.NoError(t, table.Close())
}

func TestCursorWalksAcrossLeaves(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	const n = 3*LeafMaxCells + 1
	for i := uint32(1); i <= n; i++ {
		require.NoError(t, table.Insert(testRow(t, i)))
	}

	c, err := table.Start()
	require.NoError(t, err)
	var keys []uint32
	for !c.End() {
		k, err := c.Key()
		require.NoError(t, err)
		keys = append(keys, k)
		r, err := c.Row()
		require.NoError(t, err)
		require.Equal(t, k, r.ID)
		require.NoError(t, c.Advance())
	}
	require.Len(t, keys, n)
	for i, k := range keys {
		require.EqualValues(t, i+1, k)
	}
	require.NoError(t, table.Close())
}

func TestReopenPreservesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	table := openTestTable(t, path)
	want := make([]uint32, 0, 40)
	for i, id := range rand.New(rand.NewSource(2)).Perm(40) {
		require.NoError(t, table.Insert(testRow(t, uint32(id+1))))
		want = append(want, uint32(i+1))
	}
	require.NoError(t, table.Close())

	table = openTestTable(t, path)
	rows := requireScan(t, table, want...)
	require.Equal(t, testRow(t, rows[4].ID), rows[4])

	// The reopened table keeps accepting inserts.
	require.NoError(t, table.Insert(testRow(t, 1000)))
	require.ErrorIs(t, table.Insert(testRow(t, 7)), ErrDuplicateKey)
	require.NoError(t, table.Close())
}

func TestOpenCloseEmptyAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	table := openTestTable(t, path)
	require.NoError(t, table.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, pager.PageSize, info.Size())

	table = openTestTable(t, path)
	requireScan(t, table)
	require.NoError(t, table.Close())
}

func TestTableFullLeavesContentUnchanged(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"), WithMaxPages(4))

	var inserted []uint32
	var fullErr error
	for i := uint32(1); i <= 100; i++ {
		if err := table.Insert(testRow(t, i)); err != nil {
			fullErr = err
			break
		}
		inserted = append(inserted, i)
	}
	require.ErrorIs(t, fullErr, ErrTableFull)
	require.Greater(t, len(inserted), LeafMaxCells)

	requireScan(t, table, inserted...)
	require.ErrorIs(t, table.Insert(testRow(t, 200)), ErrTableFull)
	requireScan(t, table, inserted...)
	require.NoError(t, table.Close())
}

func TestScanSkipsCellsWithoutMarker(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, table.Insert(testRow(t, 1)))
	require.NoError(t, table.Insert(testRow(t, 2)))

	// Damage the second cell's marker in the resident page.
	page, err := table.pager.GetPage(0)
	require.NoError(t, err)
	value := leafCellValue(page, 1)
	value[4] = 0
	value[5] = 0
	value[6] = 0
	value[7] = 0

	requireScan(t, table, 1)
	require.NoError(t, table.Close())
}

func TestDumpWritesEveryLevel(t *testing.T) {
	table := openTestTable(t, filepath.Join(t.TempDir(), "test.db"))
	for i := uint32(1); i <= 2*LeafMaxCells; i++ {
		require.NoError(t, table.Insert(testRow(t, i)))
	}
	require.NoError(t, table.Dump(io.Discard))
	require.NoError(t, table.Close())
}

func corruptByte(t *testing.T, path string, offset int64, value byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{value}, offset)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestOpenRejectsCorruption(t *testing.T) {
	newFile := func(t *testing.T) string {
		path := filepath.Join(t.TempDir(), "test.db")
		table := openTestTable(t, path)
		require.NoError(t, table.Insert(testRow(t, 1)))
		require.NoError(t, table.Close())
		return path
	}

	t.Run("partial page", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")
		require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))
		_, err := Open(path)
		require.ErrorIs(t, err, pager.ErrCorrupt)
	})

	t.Run("unknown node type", func(t *testing.T) {
		path := newFile(t)
		corruptByte(t, path, nodeTypeOffset, 7)
		_, err := Open(path)
		require.ErrorIs(t, err, pager.ErrCorrupt)
	})

	t.Run("missing root flag", func(t *testing.T) {
		path := newFile(t)
		corruptByte(t, path, isRootOffset, 0)
		_, err := Open(path)
		require.ErrorIs(t, err, pager.ErrCorrupt)
	})

	t.Run("row marker mismatch", func(t *testing.T) {
		path := newFile(t)
		// First cell's marker lives right after the cell key and row id.
		corruptByte(t, path, leafHeaderSize+leafKeySize+4, 0)
		_, err := Open(path)
		require.ErrorIs(t, err, pager.ErrCorrupt)
	})

	t.Run("corrupt file is not written back", func(t *testing.T) {
		path := newFile(t)
		corruptByte(t, path, isRootOffset, 0)
		before, err := os.ReadFile(path)
		require.NoError(t, err)
		_, openErr := Open(path)
		require.Error(t, openErr)
		after, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, before, after)
	})
}

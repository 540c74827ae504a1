package btree

import (
	"fmt"
	"io"

	"minidb/pager"
	"minidb/row"
)

// Dump writes a BFS dump of the tree to w: each level's nodes, internal
// routing entries, and leaf keys.
func (t *Table) Dump(w io.Writer) error {
	queue := []uint32{t.rootPage}
	level := 0
	for len(queue) > 0 {
		size := len(queue)
		fmt.Fprintf(w, "level %d:\n", level)
		for i := 0; i < size; i++ {
			pageNum := queue[i]
			page, err := t.pager.GetPage(pageNum)
			if err != nil {
				return err
			}
			switch getNodeType(page) {
			case nodeInternal:
				n := internalNumKeys(page)
				fmt.Fprintf(w, "  [page %d] internal keys=%d root=%v\n", pageNum, n, isRootNode(page))
				for j := uint32(0); j < n; j++ {
					fmt.Fprintf(w, "    <=%d -> page %d\n", internalKey(page, j), internalChild(page, j))
					queue = append(queue, internalChild(page, j))
				}
				fmt.Fprintf(w, "    >   -> page %d\n", internalRightChild(page))
				queue = append(queue, internalRightChild(page))
			case nodeLeaf:
				n := leafNumCells(page)
				fmt.Fprintf(w, "  [page %d] leaf cells=%d root=%v\n", pageNum, n, isRootNode(page))
				for j := uint32(0); j < n; j++ {
					fmt.Fprintf(w, "    %d\n", leafCellKey(page, j))
				}
			default:
				fmt.Fprintf(w, "  [page %d] unknown node type %d\n", pageNum, page[nodeTypeOffset])
			}
		}
		queue = queue[size:]
		level++
	}
	return nil
}

// Layout reports the derived on-disk layout numbers.
type Layout struct {
	PageSize           int
	RowSize            int
	CommonHeaderSize   int
	LeafHeaderSize     int
	LeafCellSize       int
	LeafMaxCells       int
	InternalHeaderSize int
	InternalMaxKeys    int
}

// Constants returns the engine's layout numbers, useful for tooling and for
// sizing capacity tests.
func Constants() Layout {
	return Layout{
		PageSize:           pager.PageSize,
		RowSize:            row.Size,
		CommonHeaderSize:   commonHeaderSize,
		LeafHeaderSize:     leafHeaderSize,
		LeafCellSize:       leafCellSize,
		LeafMaxCells:       LeafMaxCells,
		InternalHeaderSize: internalHeaderSize,
		InternalMaxKeys:    int(internalMaxKeys),
	}
}

func (l Layout) String() string {
	return fmt.Sprintf(
		"page size: %d\nrow size: %d\ncommon header size: %d\nleaf header size: %d\nleaf cell size: %d\nleaf max cells: %d\ninternal header size: %d\ninternal max keys: %d",
		l.PageSize, l.RowSize, l.CommonHeaderSize, l.LeafHeaderSize,
		l.LeafCellSize, l.LeafMaxCells, l.InternalHeaderSize, l.InternalMaxKeys)
}

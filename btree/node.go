// Structure of the on-disk B+tree
/*
Page 0 (root, never moves)
 ├── Internal node: header | (child,key) entries | trailing right child
 │      └── ... any number of internal levels ...
 │             └── Leaf nodes: header | (key,row) cells sorted ascending

- every entry routes keys <= entry key into its child page
- the right child holds keys greater than every stored key
- leaves are chained implicitly through the parent pointers
*/
package btree

import (
	"encoding/binary"

	"minidb/pager"
	"minidb/row"
)

type nodeType byte

const (
	nodeInternal nodeType = iota
	nodeLeaf
)

// Common node header layout: node_type:u8 | is_root:u8 | parent_page:u32.
const (
	nodeTypeOffset      = 0
	isRootOffset        = 1
	parentPointerOffset = 2
	commonHeaderSize    = 6
)

// Leaf node layout: common header | cell_count:u32 | cells.
// Each cell is key:u32 followed by the serialized row.
const (
	leafNumCellsOffset = commonHeaderSize
	leafHeaderSize     = commonHeaderSize + 4

	leafKeySize  = 4
	leafCellSize = leafKeySize + row.Size

	// LeafMaxCells is how many rows fit in one leaf page.
	LeafMaxCells = (pager.PageSize - leafHeaderSize) / leafCellSize

	leafRightSplitCount = (LeafMaxCells + 1) / 2
	leafLeftSplitCount  = LeafMaxCells + 1 - leafRightSplitCount
)

// Internal node layout: common header | key_count:u32 | entries | right_child:u32.
// Each entry is child_page:u32 followed by key:u32; the right child trails the
// last entry, so its offset moves as entries are added.
const (
	internalNumKeysOffset = commonHeaderSize
	internalHeaderSize    = commonHeaderSize + 4

	internalEntrySize  = 8
	rightChildPtrSize  = 4
	internalMaxKeysCap = (pager.PageSize - internalHeaderSize - rightChildPtrSize) / internalEntrySize
)

// internalMaxKeys is the internal fanout. A variable rather than a constant so
// split-propagation tests can lower it; the page format does not depend on it.
var internalMaxKeys uint32 = internalMaxKeysCap

func getNodeType(page []byte) nodeType { return nodeType(page[nodeTypeOffset]) }

func setNodeType(page []byte, t nodeType) { page[nodeTypeOffset] = byte(t) }

func isRootNode(page []byte) bool { return page[isRootOffset] != 0 }

func setRootNode(page []byte, root bool) {
	if root {
		page[isRootOffset] = 1
	} else {
		page[isRootOffset] = 0
	}
}

func parentPointer(page []byte) uint32 {
	return binary.LittleEndian.Uint32(page[parentPointerOffset:])
}

func setParentPointer(page []byte, parent uint32) {
	binary.LittleEndian.PutUint32(page[parentPointerOffset:], parent)
}

func leafNumCells(page []byte) uint32 {
	return binary.LittleEndian.Uint32(page[leafNumCellsOffset:])
}

func setLeafNumCells(page []byte, n uint32) {
	binary.LittleEndian.PutUint32(page[leafNumCellsOffset:], n)
}

// leafCell returns the full cell span (key plus row bytes) at index i.
func leafCell(page []byte, i uint32) []byte {
	off := leafHeaderSize + i*leafCellSize
	return page[off : off+leafCellSize]
}

func leafCellKey(page []byte, i uint32) uint32 {
	return binary.LittleEndian.Uint32(leafCell(page, i))
}

// leafCellValue returns the serialized row bytes of cell i.
func leafCellValue(page []byte, i uint32) []byte {
	return leafCell(page, i)[leafKeySize:]
}

// writeLeafCell fills cell i with key and the serialized form of r.
func writeLeafCell(page []byte, i uint32, key uint32, r row.Row) {
	cell := leafCell(page, i)
	binary.LittleEndian.PutUint32(cell, key)
	r.Serialize(cell[leafKeySize:])
}

func internalNumKeys(page []byte) uint32 {
	return binary.LittleEndian.Uint32(page[internalNumKeysOffset:])
}

func setInternalNumKeys(page []byte, n uint32) {
	binary.LittleEndian.PutUint32(page[internalNumKeysOffset:], n)
}

func internalEntryOffset(i uint32) uint32 {
	return internalHeaderSize + i*internalEntrySize
}

// internalChild returns child i, where i == key_count addresses the trailing
// right child.
func internalChild(page []byte, i uint32) uint32 {
	if i == internalNumKeys(page) {
		return internalRightChild(page)
	}
	return binary.LittleEndian.Uint32(page[internalEntryOffset(i):])
}

func setInternalChild(page []byte, i uint32, child uint32) {
	if i == internalNumKeys(page) {
		setInternalRightChild(page, child)
		return
	}
	binary.LittleEndian.PutUint32(page[internalEntryOffset(i):], child)
}

func internalKey(page []byte, i uint32) uint32 {
	return binary.LittleEndian.Uint32(page[internalEntryOffset(i)+4:])
}

func setInternalKey(page []byte, i uint32, key uint32) {
	binary.LittleEndian.PutUint32(page[internalEntryOffset(i)+4:], key)
}

func internalRightChild(page []byte) uint32 {
	return binary.LittleEndian.Uint32(page[internalEntryOffset(internalNumKeys(page)):])
}

func setInternalRightChild(page []byte, child uint32) {
	binary.LittleEndian.PutUint32(page[internalEntryOffset(internalNumKeys(page)):], child)
}

// internalInsertEntryAt opens a slot at entry index i and writes (child, key).
// The trailing right child moves up with the shifted entries.
func internalInsertEntryAt(page []byte, i uint32, child, key uint32) {
	n := internalNumKeys(page)
	right := internalRightChild(page)
	start := internalEntryOffset(i)
	end := internalEntryOffset(n)
	copy(page[start+internalEntrySize:end+internalEntrySize], page[start:end])
	binary.LittleEndian.PutUint32(page[start:], child)
	binary.LittleEndian.PutUint32(page[start+4:], key)
	setInternalNumKeys(page, n+1)
	setInternalRightChild(page, right)
}

package btree

import "errors"

var (
	// ErrDuplicateKey reports an insert whose key already exists. The tree is
	// left unchanged.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrTableFull reports an insert that would exceed the pager's page
	// bound. The tree is left unchanged.
	ErrTableFull = errors.New("table full")
)

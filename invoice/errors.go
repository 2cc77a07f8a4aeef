package invoice

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange = errors.New("invoice: item index out of range")
	ErrUnknownField    = errors.New("invoice: unknown field")
	ErrDuplicateItemID = errors.New("invoice: duplicate item id")
)

// IndexError reports an item operation addressed past the end of Items.
// The invoice is left unchanged when this is returned.
type IndexError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("invoice: %s: item index %d out of range [0,%d)", e.Op, e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

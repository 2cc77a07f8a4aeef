package invoice

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IDGenerator produces fresh line item ids.
type IDGenerator func() string

// Engine applies typed updates to one Invoice and keeps the derived fields in sync.
// It is not safe for concurrent use; callers serialize access.
type Engine struct {
	inv   *Invoice
	newID IDGenerator
	// ids of removed items; they are never handed out or accepted again
	retired map[string]struct{}
}

type EngineOption func(*Engine)

func WithIDGenerator(gen IDGenerator) EngineOption {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// NewEngine takes ownership of inv and recomputes it.
// An invoice with no items gets one blank item so Items is never empty.
func NewEngine(inv *Invoice, opts ...EngineOption) *Engine {
	e := &Engine{inv: inv, newID: uuid.NewString, retired: make(map[string]struct{})}
	for _, opt := range opts {
		opt(e)
	}
	if len(inv.Items) == 0 {
		inv.Items = append(inv.Items, e.blankItem())
	}
	Recompute(inv)
	return e
}

func (e *Engine) Invoice() *Invoice {
	return e.inv
}

func (e *Engine) SetField(u InvoiceUpdate) {
	u.applyInvoice(e.inv)
	Recompute(e.inv)
}

func (e *Engine) SetSenderField(u SenderUpdate) {
	u.applySender(&e.inv.Sender)
	Recompute(e.inv)
}

func (e *Engine) SetClientField(u PartyUpdate) {
	u.applyParty(&e.inv.Client)
	Recompute(e.inv)
}

func (e *Engine) SetItemField(index int, u ItemUpdate) error {
	if err := e.checkIndex("set item field", index); err != nil {
		return err
	}
	if idu, ok := u.(SetItemID); ok {
		if at := e.inv.indexOfItemID(idu.Value); at >= 0 && at != index {
			return ErrDuplicateItemID
		}
		if e.isRetired(idu.Value) {
			return ErrDuplicateItemID
		}
	}
	u.applyItem(&e.inv.Items[index])
	if u.touchesAmount() {
		Recompute(e.inv)
	}
	return nil
}

// AddItem appends a blank item (quantity 1, rate 0) and returns it.
func (e *Engine) AddItem() LineItem {
	item := e.blankItem()
	for e.inv.indexOfItemID(item.ID) >= 0 || e.isRetired(item.ID) {
		item.ID = e.newID()
	}
	e.inv.Items = append(e.inv.Items, item)
	Recompute(e.inv)
	return e.inv.Items[len(e.inv.Items)-1]
}

// RemoveItem deletes the item at index. Removing the only item is a no-op.
func (e *Engine) RemoveItem(index int) error {
	if err := e.checkIndex("remove item", index); err != nil {
		return err
	}
	if len(e.inv.Items) <= 1 {
		return nil
	}
	e.retired[e.inv.Items[index].ID] = struct{}{}
	e.inv.Items = append(e.inv.Items[:index:index], e.inv.Items[index+1:]...)
	Recompute(e.inv)
	return nil
}

func (e *Engine) isRetired(id string) bool {
	_, ok := e.retired[id]
	return ok
}

func (e *Engine) checkIndex(op string, index int) error {
	if index < 0 || index >= len(e.inv.Items) {
		return &IndexError{Op: op, Index: index, Len: len(e.inv.Items)}
	}
	return nil
}

func (e *Engine) blankItem() LineItem {
	return LineItem{
		ID:       e.newID(),
		Quantity: decimal.NewFromInt(1),
		Rate:     decimal.Zero,
		Amount:   decimal.Zero,
	}
}

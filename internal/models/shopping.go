package models

import "time"

// Item is a single entry in a shopping list. Items carry no stable public
// identity at the handler boundary; they are addressed by position within
// their list's current ordering. ID is the internal storage row id used to
// translate a position into an identity at mutation time.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Quantity  string    `json:"quantity"`
	AddedBy   string    `json:"added_by"`
	Purchased bool      `json:"purchased"`
	CreatedAt time.Time `json:"created_at"`
}

// ShoppingList is one named list inside a conversation. Items are kept in
// insertion order, which is also display order.
type ShoppingList struct {
	ConversationID int64     `json:"conversation_id"`
	ListID         string    `json:"list_id"`
	Name           string    `json:"name"`
	Items          []Item    `json:"items"`
	CreatedAt      time.Time `json:"created_at"`
}

// Pending returns the items not yet marked purchased, in order.
func (l *ShoppingList) Pending() []Item {
	pending := make([]Item, 0, len(l.Items))
	for _, item := range l.Items {
		if !item.Purchased {
			pending = append(pending, item)
		}
	}
	return pending
}

// PurchasedCount returns how many items are marked purchased.
func (l *ShoppingList) PurchasedCount() int {
	n := 0
	for _, item := range l.Items {
		if item.Purchased {
			n++
		}
	}
	return n
}

// ListInfo is list metadata without items, as returned by the store.
type ListInfo struct {
	RowID     int64     `json:"row_id"`
	ListID    string    `json:"list_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is one chat scope. Every conversation owns at least one list
// and exactly one active-list pointer.
type Conversation struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	ActiveListID string `json:"active_list_id"`
}

// Stats holds store-wide counters for the /stats command.
type Stats struct {
	Conversations  int `json:"conversations"`
	Lists          int `json:"lists"`
	Items          int `json:"items"`
	PurchasedItems int `json:"purchased_items"`
}

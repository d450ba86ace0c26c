package storage

import (
	"context"
	"errors"

	"groceries-bot/internal/models"
)

// DefaultListID is the list every new conversation starts with, and the id
// the active-list pointer falls back to when nothing else is stored.
const DefaultListID = "groceries"

// DefaultListName is the display name of the default list.
const DefaultListName = "Groceries"

// ErrBackupUnsupported is returned by stores that have no file-level
// snapshot (the Postgres variant).
var ErrBackupUnsupported = errors.New("backup not supported by this store")

// Store is the persistent adapter for conversations, lists and items.
//
// Lists are unique per (conversation, list id); deleting a list cascades to
// its items. Index-taking operations resolve the index against the current
// creation-ordered item slice and then mutate by the underlying row id, so
// an index is only meaningful until the list changes.
type Store interface {
	// EnsureConversation is idempotent: the first call creates the
	// conversation together with the default "Groceries" list and points
	// the active-list pointer at it.
	EnsureConversation(ctx context.Context, convID int64, title string) error

	// CreateList inserts a new list. It returns false without error when
	// (convID, listID) already exists; callers generate unique ids first.
	CreateList(ctx context.Context, convID int64, listID, name string) (bool, error)

	// ListLists returns all lists of a conversation ordered by creation.
	ListLists(ctx context.Context, convID int64) ([]models.ListInfo, error)

	// DeleteList removes a list and all its items. It reports whether a
	// list was actually removed.
	DeleteList(ctx context.Context, convID int64, listID string) (bool, error)

	// ActiveListID returns the conversation's active-list pointer,
	// defaulting to DefaultListID when the conversation row is missing.
	ActiveListID(ctx context.Context, convID int64) (string, error)
	SetActiveListID(ctx context.Context, convID int64, listID string) error

	// AddItem appends an item. It returns false when (convID, listID)
	// does not resolve to a stored list.
	AddItem(ctx context.Context, convID int64, listID, name, quantity, addedBy string) (bool, error)

	// ListItems returns the list's items ordered by creation.
	ListItems(ctx context.Context, convID int64, listID string) ([]models.Item, error)

	RemoveItemAt(ctx context.Context, convID int64, listID string, index int) (bool, error)
	SetPurchasedAt(ctx context.Context, convID int64, listID string, index int, purchased bool) (bool, error)

	// ClearPurchased and ClearAll bulk-delete items and return the count
	// removed.
	ClearPurchased(ctx context.Context, convID int64, listID string) (int, error)
	ClearAll(ctx context.Context, convID int64, listID string) (int, error)

	Stats(ctx context.Context) (models.Stats, error)

	// Backup writes an atomic snapshot of the whole store to path without
	// blocking concurrent readers or writers.
	Backup(ctx context.Context, path string) error

	Close() error
}

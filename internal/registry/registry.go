// Package registry presents each conversation's shopping lists as in-memory
// objects backed by the persistent store, with a write-through cache keyed
// by (conversation, list id).
//
// Every mutation funnels through one choke point that performs the store
// write and evicts the affected cache entry while holding the conversation
// lock, so a mutation path cannot forget invalidation and two events for
// the same conversation cannot interleave mid-mutation.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"groceries-bot/internal/models"
	"groceries-bot/internal/storage"
)

type cacheKey struct {
	convID int64
	listID string
}

type Registry struct {
	store  storage.Store
	logger *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
	cache map[cacheKey]*models.ShoppingList
}

func New(store storage.Store, logger *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
		locks:  make(map[int64]*sync.Mutex),
		cache:  make(map[cacheKey]*models.ShoppingList),
	}
}

// convLock returns the mutex serializing all operations for one
// conversation, creating it on first use.
func (r *Registry) convLock(convID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[convID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[convID] = l
	}
	return l
}

func (r *Registry) cacheGet(key cacheKey) (*models.ShoppingList, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.cache[key]
	return l, ok
}

func (r *Registry) cachePut(key cacheKey, list *models.ShoppingList) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = list
}

// invalidate evicts one cache entry, or every entry of the conversation
// when listID is empty.
func (r *Registry) invalidate(convID int64, listID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listID != "" {
		delete(r.cache, cacheKey{convID, listID})
		return
	}
	for key := range r.cache {
		if key.convID == convID {
			delete(r.cache, key)
		}
	}
}

// Ensure makes sure the conversation and its default list exist.
func (r *Registry) Ensure(ctx context.Context, convID int64, title string) error {
	lock := r.convLock(convID)
	lock.Lock()
	defer lock.Unlock()

	return r.store.EnsureConversation(ctx, convID, title)
}

// NameForID derives a display name from a list id: "groceries" maps to the
// default name, anything else is title-cased with underscores as spaces.
func NameForID(listID string) string {
	if listID == storage.DefaultListID {
		return storage.DefaultListName
	}
	words := strings.Fields(strings.ReplaceAll(listID, "_", " "))
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// getListLocked loads a list through the cache. On a miss the metadata and
// items come from the store; a list with no stored row is created with a
// name derived from its id. Caller holds the conversation lock.
func (r *Registry) getListLocked(ctx context.Context, convID int64, listID string) (*models.ShoppingList, error) {
	key := cacheKey{convID, listID}
	if cached, ok := r.cacheGet(key); ok {
		return cached, nil
	}

	lists, err := r.store.ListLists(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lists: %w", err)
	}

	var info *models.ListInfo
	for i := range lists {
		if lists[i].ListID == listID {
			info = &lists[i]
			break
		}
	}

	name := NameForID(listID)
	if info == nil {
		if _, err := r.store.CreateList(ctx, convID, listID, name); err != nil {
			return nil, fmt.Errorf("failed to create list: %w", err)
		}
	} else {
		name = info.Name
	}

	items, err := r.store.ListItems(ctx, convID, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	list := &models.ShoppingList{
		ConversationID: convID,
		ListID:         listID,
		Name:           name,
		Items:          items,
	}
	if info != nil {
		list.CreatedAt = info.CreatedAt
	}
	r.cachePut(key, list)
	return list, nil
}

// GetList returns the list, loading and caching it if necessary.
func (r *Registry) GetList(ctx context.Context, convID int64, listID string) (*models.ShoppingList, error) {
	lock := r.convLock(convID)
	lock.Lock()
	defer lock.Unlock()

	return r.getListLocked(ctx, convID, listID)
}

// GetActiveList resolves the conversation's active list id and returns that
// list.
func (r *Registry) GetActiveList(ctx context.Context, convID int64) (*models.ShoppingList, error) {
	lock := r.convLock(convID)
	lock.Lock()
	defer lock.Unlock()

	activeID, err := r.store.ActiveListID(ctx, convID)
	if err != nil {
		r.logger.Error("Failed to resolve active list, using default",
			zap.Error(err),
			zap.Int64("conv_id", convID))
		activeID = storage.DefaultListID
	}
	return r.getListLocked(ctx, convID, activeID)
}

// SetActiveList points the conversation at listID, creating the list if it
// does not exist yet.
func (r *Registry) SetActiveList(ctx context.Context, convID int64, listID string) error {
	lock := r.convLock(convID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := r.getListLocked(ctx, convID, listID); err != nil {
		return err
	}
	if err := r.store.SetActiveListID(ctx, convID, listID); err != nil {
		return err
	}
	r.logger.Info("Switched active list",
		zap.Int64("conv_id", convID),
		zap.String("list_id", listID))
	return nil
}

// ListID derives the storage id for a list name: lower-cased with spaces
// folded to underscores.
func ListID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// CreateList creates a new list named name and returns its id. When the
// derived id is taken, increasing suffixes _1, _2, ... are probed until one
// is free.
func (r *Registry) CreateList(ctx context.Context, convID int64, name string) (string, error) {
	lock := r.convLock(convID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := r.store.ListLists(ctx, convID)
	if err != nil {
		return "", fmt.Errorf("failed to load lists: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, info := range existing {
		taken[info.ListID] = true
	}

	base := ListID(name)
	listID := base
	for counter := 1; taken[listID]; counter++ {
		listID = fmt.Sprintf("%s_%d", base, counter)
	}

	ok, err := r.store.CreateList(ctx, convID, listID, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("list %q already exists", listID)
	}

	r.invalidate(convID, "")
	r.logger.Info("Created list",
		zap.Int64("conv_id", convID),
		zap.String("list_id", listID),
		zap.String("name", name))
	return listID, nil
}

// DeleteList removes a list. The last remaining list of a conversation
// cannot be deleted. When the active list is deleted, the pointer moves to
// the first remaining list in creation order, or the default id if none
// remain.
func (r *Registry) DeleteList(ctx context.Context, convID int64, listID string) (bool, error) {
	lock := r.convLock(convID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := r.store.ListLists(ctx, convID)
	if err != nil {
		return false, fmt.Errorf("failed to load lists: %w", err)
	}
	if len(existing) <= 1 {
		return false, nil
	}

	ok, err := r.store.DeleteList(ctx, convID, listID)
	if err != nil || !ok {
		return false, err
	}
	r.invalidate(convID, listID)

	activeID, err := r.store.ActiveListID(ctx, convID)
	if err == nil && activeID == listID {
		remaining, err := r.store.ListLists(ctx, convID)
		newActive := storage.DefaultListID
		if err == nil && len(remaining) > 0 {
			newActive = remaining[0].ListID
		}
		if err := r.store.SetActiveListID(ctx, convID, newActive); err != nil {
			return true, fmt.Errorf("failed to repoint active list: %w", err)
		}
		r.logger.Info("Repointed active list after deletion",
			zap.Int64("conv_id", convID),
			zap.String("deleted", listID),
			zap.String("active", newActive))
	}

	return true, nil
}

// Lists returns every list of the conversation in creation order, items
// included.
func (r *Registry) Lists(ctx context.Context, convID int64) ([]*models.ShoppingList, error) {
	lock := r.convLock(convID)
	lock.Lock()
	defer lock.Unlock()

	infos, err := r.store.ListLists(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lists: %w", err)
	}
	lists := make([]*models.ShoppingList, 0, len(infos))
	for _, info := range infos {
		list, err := r.getListLocked(ctx, convID, info.ListID)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, nil
}

// mutateActive is the single mutation choke point: it locks the
// conversation, resolves the active list, runs fn against it, and evicts
// the cache entry whenever fn reports a mutation.
func (r *Registry) mutateActive(ctx context.Context, convID int64, fn func(listID string) (bool, error)) error {
	lock := r.convLock(convID)
	lock.Lock()
	defer lock.Unlock()

	activeID, err := r.store.ActiveListID(ctx, convID)
	if err != nil {
		r.logger.Error("Failed to resolve active list for mutation",
			zap.Error(err),
			zap.Int64("conv_id", convID))
		activeID = storage.DefaultListID
	}

	// Make sure the list row exists before mutating it.
	if _, err := r.getListLocked(ctx, convID, activeID); err != nil {
		return err
	}

	mutated, err := fn(activeID)
	if mutated {
		r.invalidate(convID, activeID)
	}
	return err
}

// AddItem appends an item to the conversation's active list.
func (r *Registry) AddItem(ctx context.Context, convID int64, name, quantity, addedBy string) error {
	return r.mutateActive(ctx, convID, func(listID string) (bool, error) {
		ok, err := r.store.AddItem(ctx, convID, listID, name, quantity, addedBy)
		return ok, err
	})
}

// RemoveItemAt removes the item at the given position in the active list.
func (r *Registry) RemoveItemAt(ctx context.Context, convID int64, index int) (bool, error) {
	var removed bool
	err := r.mutateActive(ctx, convID, func(listID string) (bool, error) {
		ok, err := r.store.RemoveItemAt(ctx, convID, listID, index)
		removed = ok
		return ok, err
	})
	return removed, err
}

// MarkPurchasedAt marks the item at the given position purchased.
func (r *Registry) MarkPurchasedAt(ctx context.Context, convID int64, index int) (bool, error) {
	var marked bool
	err := r.mutateActive(ctx, convID, func(listID string) (bool, error) {
		ok, err := r.store.SetPurchasedAt(ctx, convID, listID, index, true)
		marked = ok
		return ok, err
	})
	return marked, err
}

// ClearPurchased removes all purchased items from the active list and
// returns the count removed.
func (r *Registry) ClearPurchased(ctx context.Context, convID int64) (int, error) {
	var count int
	err := r.mutateActive(ctx, convID, func(listID string) (bool, error) {
		n, err := r.store.ClearPurchased(ctx, convID, listID)
		count = n
		return n > 0, err
	})
	return count, err
}

// WipeAll removes every item from the active list and returns the count
// removed.
func (r *Registry) WipeAll(ctx context.Context, convID int64) (int, error) {
	var count int
	err := r.mutateActive(ctx, convID, func(listID string) (bool, error) {
		n, err := r.store.ClearAll(ctx, convID, listID)
		count = n
		return n > 0, err
	})
	return count, err
}

// Stats exposes the underlying store counters.
func (r *Registry) Stats(ctx context.Context) (models.Stats, error) {
	return r.store.Stats(ctx)
}

// Backup snapshots the underlying store to path.
func (r *Registry) Backup(ctx context.Context, path string) error {
	return r.store.Backup(ctx, path)
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"groceries-bot/internal/models"
)

// MemoryStore is an in-memory Store used for tests and the
// database.use_in_memory mode. Backup serializes the whole store to a JSON
// file.
type MemoryStore struct {
	mu         sync.RWMutex
	convs      map[int64]*memConversation
	nextListPK int64
	nextItemID int64
	// monotonic tick used for creation ordering, so two inserts within the
	// same wall-clock instant still keep insertion order
	tick int64
}

type memConversation struct {
	Title        string              `json:"title"`
	ActiveListID string              `json:"active_list_id"`
	Lists        map[string]*memList `json:"lists"`
}

type memList struct {
	RowID     int64     `json:"row_id"`
	Name      string    `json:"name"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	Items     []memItem `json:"items"`
}

type memItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Quantity  string    `json:"quantity"`
	AddedBy   string    `json:"added_by"`
	Purchased bool      `json:"purchased"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[int64]*memConversation)}
}

func (s *MemoryStore) conv(convID int64) *memConversation {
	c, ok := s.convs[convID]
	if !ok {
		c = &memConversation{
			ActiveListID: DefaultListID,
			Lists:        make(map[string]*memList),
		}
		s.convs[convID] = c
	}
	return c
}

func (s *MemoryStore) createListLocked(c *memConversation, listID, name string) bool {
	if _, exists := c.Lists[listID]; exists {
		return false
	}
	s.nextListPK++
	s.tick++
	c.Lists[listID] = &memList{
		RowID:     s.nextListPK,
		Name:      name,
		Seq:       s.tick,
		CreatedAt: time.Now(),
	}
	return true
}

func (s *MemoryStore) EnsureConversation(ctx context.Context, convID int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[convID]
	if ok {
		return nil
	}
	c = s.conv(convID)
	c.Title = title
	s.createListLocked(c, DefaultListID, DefaultListName)
	return nil
}

func (s *MemoryStore) CreateList(ctx context.Context, convID int64, listID, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[convID]
	if !ok {
		c = s.conv(convID)
		s.createListLocked(c, DefaultListID, DefaultListName)
	}
	return s.createListLocked(c, listID, name), nil
}

func (s *MemoryStore) ListLists(ctx context.Context, convID int64) ([]models.ListInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.convs[convID]
	if !ok {
		return nil, nil
	}

	type entry struct {
		id   string
		list *memList
	}
	entries := make([]entry, 0, len(c.Lists))
	for id, l := range c.Lists {
		entries = append(entries, entry{id, l})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].list.Seq < entries[j].list.Seq
	})

	lists := make([]models.ListInfo, 0, len(entries))
	for _, e := range entries {
		lists = append(lists, models.ListInfo{
			RowID:     e.list.RowID,
			ListID:    e.id,
			Name:      e.list.Name,
			CreatedAt: e.list.CreatedAt,
		})
	}
	return lists, nil
}

func (s *MemoryStore) DeleteList(ctx context.Context, convID int64, listID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[convID]
	if !ok {
		return false, nil
	}
	if _, exists := c.Lists[listID]; !exists {
		return false, nil
	}
	delete(c.Lists, listID)
	return true, nil
}

func (s *MemoryStore) ActiveListID(ctx context.Context, convID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.convs[convID]; ok {
		return c.ActiveListID, nil
	}
	return DefaultListID, nil
}

func (s *MemoryStore) SetActiveListID(ctx context.Context, convID int64, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conv(convID).ActiveListID = listID
	return nil
}

func (s *MemoryStore) AddItem(ctx context.Context, convID int64, listID, name, quantity, addedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[convID]
	if !ok {
		return false, nil
	}
	l, ok := c.Lists[listID]
	if !ok {
		return false, nil
	}

	s.nextItemID++
	l.Items = append(l.Items, memItem{
		ID:        s.nextItemID,
		Name:      name,
		Quantity:  quantity,
		AddedBy:   addedBy,
		CreatedAt: time.Now(),
	})
	return true, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, convID int64, listID string) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.convs[convID]
	if !ok {
		return nil, nil
	}
	l, ok := c.Lists[listID]
	if !ok {
		return nil, nil
	}

	items := make([]models.Item, len(l.Items))
	for i, it := range l.Items {
		items[i] = models.Item{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			AddedBy:   it.AddedBy,
			Purchased: it.Purchased,
			CreatedAt: it.CreatedAt,
		}
	}
	return items, nil
}

func (s *MemoryStore) RemoveItemAt(ctx context.Context, convID int64, listID string, index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.list(convID, listID)
	if l == nil || index < 0 || index >= len(l.Items) {
		return false, nil
	}
	l.Items = append(l.Items[:index], l.Items[index+1:]...)
	return true, nil
}

func (s *MemoryStore) SetPurchasedAt(ctx context.Context, convID int64, listID string, index int, purchased bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.list(convID, listID)
	if l == nil || index < 0 || index >= len(l.Items) {
		return false, nil
	}
	l.Items[index].Purchased = purchased
	return true, nil
}

func (s *MemoryStore) ClearPurchased(ctx context.Context, convID int64, listID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.list(convID, listID)
	if l == nil {
		return 0, nil
	}
	kept := l.Items[:0]
	removed := 0
	for _, it := range l.Items {
		if it.Purchased {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	l.Items = kept
	return removed, nil
}

func (s *MemoryStore) ClearAll(ctx context.Context, convID int64, listID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.list(convID, listID)
	if l == nil {
		return 0, nil
	}
	removed := len(l.Items)
	l.Items = nil
	return removed, nil
}

func (s *MemoryStore) list(convID int64, listID string) *memList {
	c, ok := s.convs[convID]
	if !ok {
		return nil
	}
	return c.Lists[listID]
}

func (s *MemoryStore) Stats(ctx context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.Stats
	stats.Conversations = len(s.convs)
	for _, c := range s.convs {
		stats.Lists += len(c.Lists)
		for _, l := range c.Lists {
			stats.Items += len(l.Items)
			for _, it := range l.Items {
				if it.Purchased {
					stats.PurchasedItems++
				}
			}
		}
	}
	return stats, nil
}

func (s *MemoryStore) Backup(ctx context.Context, path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.convs, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("error serializing store: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating backup directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("error writing backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error finalizing backup: %w", err)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

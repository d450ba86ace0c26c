package registry

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"groceries-bot/internal/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(storage.NewMemoryStore(), zap.NewNop())
}

func TestNameForID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"groceries", "Groceries"},
		{"hardware_store", "Hardware Store"},
		{"trader_joes", "Trader Joes"},
		{"x", "X"},
		{"über_markt", "Über Markt"},
	}
	for _, tt := range tests {
		if got := NameForID(tt.id); got != tt.want {
			t.Errorf("NameForID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestListID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Hardware Store", "hardware_store"},
		{"  Trader Joes  ", "trader_joes"},
		{"GROCERIES", "groceries"},
	}
	for _, tt := range tests {
		if got := ListID(tt.name); got != tt.want {
			t.Errorf("ListID(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestGetActiveListDefaults(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	list, err := r.GetActiveList(ctx, 1)
	if err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	if list.ListID != storage.DefaultListID || list.Name != storage.DefaultListName {
		t.Fatalf("got %q/%q, want default list", list.ListID, list.Name)
	}
	if len(list.Items) != 0 {
		t.Fatalf("fresh list has %d items", len(list.Items))
	}
}

func TestCacheReflectsMutations(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if err := r.AddItem(ctx, 1, "milk", "2", "alice"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	list, err := r.GetActiveList(ctx, 1)
	if err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Name != "milk" || list.Items[0].Quantity != "2" {
		t.Fatalf("after add got %+v", list.Items)
	}

	// A second read must come from cache yet still match the store.
	again, err := r.GetActiveList(ctx, 1)
	if err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	if len(again.Items) != 1 {
		t.Fatalf("cached read got %d items", len(again.Items))
	}

	if _, err := r.RemoveItemAt(ctx, 1, 0); err != nil {
		t.Fatalf("RemoveItemAt: %v", err)
	}
	list, _ = r.GetActiveList(ctx, 1)
	if len(list.Items) != 0 {
		t.Fatalf("after removal cache still has %d items", len(list.Items))
	}
}

func TestCreateListSuffixProbing(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	first, err := r.CreateList(ctx, 1, "Hardware Store")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if first != "hardware_store" {
		t.Fatalf("first id = %q", first)
	}

	second, err := r.CreateList(ctx, 1, "Hardware Store")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if second != "hardware_store_1" {
		t.Fatalf("second id = %q", second)
	}

	third, err := r.CreateList(ctx, 1, "Hardware Store")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if third != "hardware_store_2" {
		t.Fatalf("third id = %q", third)
	}

	// The probed lists keep the original display name.
	list, err := r.GetList(ctx, 1, second)
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if list.Name != "Hardware Store" {
		t.Fatalf("probed list name = %q", list.Name)
	}
}

func TestDeleteListRefusesLast(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if _, err := r.GetActiveList(ctx, 1); err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	deleted, err := r.DeleteList(ctx, 1, storage.DefaultListID)
	if err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	if deleted {
		t.Fatal("deleted the only list")
	}
}

func TestDeleteActiveListRepoints(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if _, err := r.GetActiveList(ctx, 1); err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	id, err := r.CreateList(ctx, 1, "Hardware")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if err := r.SetActiveList(ctx, 1, id); err != nil {
		t.Fatalf("SetActiveList: %v", err)
	}

	deleted, err := r.DeleteList(ctx, 1, id)
	if err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	if !deleted {
		t.Fatal("delete refused")
	}

	// Active pointer moves to the first remaining list in creation order.
	active, err := r.GetActiveList(ctx, 1)
	if err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	if active.ListID != storage.DefaultListID {
		t.Fatalf("active after delete = %q, want %q", active.ListID, storage.DefaultListID)
	}
}

func TestDeleteInactiveListKeepsPointer(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if _, err := r.GetActiveList(ctx, 1); err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	id, err := r.CreateList(ctx, 1, "Hardware")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}

	if _, err := r.DeleteList(ctx, 1, id); err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	active, _ := r.GetActiveList(ctx, 1)
	if active.ListID != storage.DefaultListID {
		t.Fatalf("active = %q, want %q", active.ListID, storage.DefaultListID)
	}
}

func TestSetActiveListCreatesMissing(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if err := r.SetActiveList(ctx, 1, "camping_trip"); err != nil {
		t.Fatalf("SetActiveList: %v", err)
	}
	active, err := r.GetActiveList(ctx, 1)
	if err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	if active.ListID != "camping_trip" || active.Name != "Camping Trip" {
		t.Fatalf("got %q/%q", active.ListID, active.Name)
	}
}

func TestListsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if _, err := r.GetActiveList(ctx, 1); err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	for _, name := range []string{"Zoo", "Apothecary"} {
		if _, err := r.CreateList(ctx, 1, name); err != nil {
			t.Fatalf("CreateList(%s): %v", name, err)
		}
	}

	lists, err := r.Lists(ctx, 1)
	if err != nil {
		t.Fatalf("Lists: %v", err)
	}
	want := []string{storage.DefaultListID, "zoo", "apothecary"}
	if len(lists) != len(want) {
		t.Fatalf("got %d lists, want %d", len(lists), len(want))
	}
	for i, id := range want {
		if lists[i].ListID != id {
			t.Errorf("lists[%d] = %q, want %q", i, lists[i].ListID, id)
		}
	}
}

func TestClearPurchasedAndWipe(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	for _, name := range []string{"milk", "bread", "apples"} {
		if err := r.AddItem(ctx, 1, name, "1", "bob"); err != nil {
			t.Fatalf("AddItem(%s): %v", name, err)
		}
	}
	if _, err := r.MarkPurchasedAt(ctx, 1, 0); err != nil {
		t.Fatalf("MarkPurchasedAt: %v", err)
	}

	count, err := r.ClearPurchased(ctx, 1)
	if err != nil {
		t.Fatalf("ClearPurchased: %v", err)
	}
	if count != 1 {
		t.Fatalf("ClearPurchased = %d, want 1", count)
	}

	count, err = r.WipeAll(ctx, 1)
	if err != nil {
		t.Fatalf("WipeAll: %v", err)
	}
	if count != 2 {
		t.Fatalf("WipeAll = %d, want 2", count)
	}

	list, _ := r.GetActiveList(ctx, 1)
	if len(list.Items) != 0 {
		t.Fatalf("list not empty after wipe: %+v", list.Items)
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if err := r.AddItem(ctx, 1, "milk", "1", "alice"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	other, err := r.GetActiveList(ctx, 2)
	if err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	if len(other.Items) != 0 {
		t.Fatalf("conversation 2 sees conversation 1 items: %+v", other.Items)
	}
}

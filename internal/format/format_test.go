package format

import (
	"strings"
	"testing"

	"groceries-bot/internal/models"
)

func TestItemLine(t *testing.T) {
	pending := models.Item{Name: "milk", Quantity: "2"}
	if got := ItemLine(pending); got != "📝 2 milk" {
		t.Errorf("pending line = %q", got)
	}
	bought := models.Item{Name: "milk", Quantity: "2", Purchased: true}
	if got := ItemLine(bought); got != "✅ 2 milk" {
		t.Errorf("purchased line = %q", got)
	}
}

func TestDisplayText(t *testing.T) {
	empty := &models.ShoppingList{Name: "Groceries"}
	if got := DisplayText(empty); got != "📝 *Groceries* is empty." {
		t.Errorf("empty display = %q", got)
	}

	list := &models.ShoppingList{
		Name: "Groceries",
		Items: []models.Item{
			{Name: "milk", Quantity: "2"},
			{Name: "bread", Quantity: "1", Purchased: true},
		},
	}
	got := DisplayText(list)
	if !strings.Contains(got, "1. 📝 2 milk") || !strings.Contains(got, "2. ✅ 1 bread") {
		t.Errorf("display = %q", got)
	}
}

func TestDisplayTextEscapesName(t *testing.T) {
	list := &models.ShoppingList{Name: "my*list"}
	if got := DisplayText(list); !strings.Contains(got, `my\*list`) {
		t.Errorf("name not escaped: %q", got)
	}
}

func TestShoppingItemButtonTruncation(t *testing.T) {
	short := models.Item{Name: "milk", Quantity: "1"}
	if got := ShoppingItemButton(short); got != "✅ 1 milk" {
		t.Errorf("short button = %q", got)
	}

	long := models.Item{Name: "London Broil", Quantity: "2"}
	// "✅ 2 London Broil" is 16 runes, no truncation.
	if got := ShoppingItemButton(long); got != "✅ 2 London Broil" {
		t.Errorf("long button = %q", got)
	}

	longer := models.Item{Name: "Extra Virgin Olive Oil", Quantity: "1"}
	got := ShoppingItemButton(longer)
	if got != "✅ 1 Extra Virgin..." {
		t.Errorf("truncated button = %q", got)
	}
}

func TestShoppingKeyboardLayout(t *testing.T) {
	items := make([]models.Item, 7)
	for i := range items {
		items[i] = models.Item{Name: "item", Quantity: "1"}
	}

	rows := ShoppingKeyboard(items, 3)
	// 3 + 3 + 1 item rows plus the control row.
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	if len(rows[0]) != 3 || len(rows[2]) != 1 {
		t.Errorf("row sizes = %d, %d", len(rows[0]), len(rows[2]))
	}
	last := rows[len(rows)-1]
	if len(last) != 2 || last[0] != BtnShowList || last[1] != BtnExitShopping {
		t.Errorf("control row = %v", last)
	}
}

func TestSelectionItemButtonTruncation(t *testing.T) {
	item := models.Item{Name: strings.Repeat("x", 40), Quantity: "1"}
	got := SelectionItemButton(item, GlyphDone)
	if got != "✅ 1 "+strings.Repeat("x", 25)+"..." {
		t.Errorf("selection button = %q", got)
	}
}

func TestListButton(t *testing.T) {
	list := &models.ShoppingList{
		Name:  "Hardware",
		Items: []models.Item{{Name: "nails"}},
	}
	if got := ListButton(list, GlyphSwitch); got != "🔄 Hardware (1)" {
		t.Errorf("list button = %q", got)
	}

	long := &models.ShoppingList{Name: strings.Repeat("y", 40)}
	got := ListButton(long, GlyphSwitch)
	if got != "🔄 "+strings.Repeat("y", 28)+"... (0)" {
		t.Errorf("truncated list button = %q", got)
	}
}

func TestListSelectionKeyboardMarksActive(t *testing.T) {
	lists := []*models.ShoppingList{
		{ListID: "groceries", Name: "Groceries"},
		{ListID: "hardware", Name: "Hardware"},
	}
	rows := ListSelectionKeyboard(lists, "hardware", GlyphSwitch, BtnCancelSwitch)
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if !strings.HasPrefix(rows[0][0], GlyphSwitch) {
		t.Errorf("inactive list button = %q", rows[0][0])
	}
	if !strings.HasPrefix(rows[1][0], GlyphActive) {
		t.Errorf("active list button = %q", rows[1][0])
	}
	if rows[2][0] != BtnCancelSwitch {
		t.Errorf("cancel row = %q", rows[2][0])
	}
}

func TestInteractiveKeyboard(t *testing.T) {
	list := &models.ShoppingList{
		Name: "Groceries",
		Items: []models.Item{
			{Name: "milk", Quantity: "1"},
			{Name: "bread", Quantity: "1", Purchased: true},
		},
	}
	rows := InteractiveKeyboard(list)

	// One action row for the pending item, the bulk row, the nav row.
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0].Data != "done_0" || rows[0][1].Data != "remove_0" {
		t.Errorf("action row = %+v", rows[0])
	}
	if rows[1][0].Data != "clear_bought" {
		t.Errorf("bulk row = %+v", rows[1])
	}

	// Without purchased items there is no clear button.
	list.Items[1].Purchased = false
	rows = InteractiveKeyboard(list)
	for _, row := range rows {
		for _, btn := range row {
			if btn.Data == "clear_bought" {
				t.Error("clear_bought present with nothing purchased")
			}
		}
	}
}

func TestListsSummarySortsByID(t *testing.T) {
	lists := []*models.ShoppingList{
		{ListID: "zoo", Name: "Zoo"},
		{ListID: "apothecary", Name: "Apothecary"},
	}
	got := ListsSummary(lists, "zoo", "Zoo")
	if strings.Index(got, "Apothecary") > strings.Index(got, "Zoo") {
		t.Errorf("summary not sorted by id:\n%s", got)
	}
	if !strings.Contains(got, "🔹 *Zoo*") {
		t.Errorf("active marker missing:\n%s", got)
	}
}

// Package format turns list and item state into display strings and button
// layouts, and parses button presses back into the data they were built
// from. Everything here is pure.
package format

import (
	"fmt"
	"strings"

	"groceries-bot/internal/models"
)

// Reply keyboard button labels. Parsing in this package must stay in sync
// with the builders below, since pressed buttons come back as plain text.
const (
	BtnBackToMain     = "← Back to Main Menu"
	BtnListManagement = "📋 List Management"
	BtnEditPrefix     = "✏️ Edit "
	BtnShoppingMode   = "🛒 Shopping Mode"
	BtnHelp           = "ℹ️ Help"

	BtnShowCurrentList = "📋 Show Current List"
	BtnCreateNewList   = "📝 Create New List"
	BtnSwitchLists     = "🔄 Switch Lists"
	BtnDeleteList      = "🗑️ Delete List"

	BtnAddItem    = "➕ Add Item"
	BtnShowList   = "🔍 Show List"
	BtnMarkDone   = "✅ Mark Done"
	BtnRemoveItem = "🗑️ Remove Item"
	BtnWipeAll    = "🗑️ Wipe All"

	BtnExitShopping   = "❌ Exit Shopping Mode"
	BtnCancelSwitch   = "❌ Cancel Switch"
	BtnCancelDelete   = "❌ Cancel Delete"
	BtnCancelMarkDone = "❌ Cancel Mark Done"
	BtnCancelRemove   = "❌ Cancel Remove"
)

// Status and selection glyphs.
const (
	GlyphPending = "📝"
	GlyphDone    = "✅"
	GlyphRemove  = "🗑️"
	GlyphActive  = "📍"
	GlyphSwitch  = "🔄"
	GlyphList    = "📋"
)

// InlineButton is one callback button of an inline keyboard.
type InlineButton struct {
	Text string
	Data string
}

// EscapeMarkdown escapes the Markdown control characters that may occur in
// user-supplied names.
func EscapeMarkdown(s string) string {
	r := strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`")
	return r.Replace(s)
}

// ItemLine renders one item as "<status> <quantity> <name>".
func ItemLine(item models.Item) string {
	status := GlyphPending
	if item.Purchased {
		status = GlyphDone
	}
	return fmt.Sprintf("%s %s %s", status, item.Quantity, item.Name)
}

// DisplayText renders the numbered list view.
func DisplayText(list *models.ShoppingList) string {
	if len(list.Items) == 0 {
		return fmt.Sprintf("📝 *%s* is empty.", EscapeMarkdown(list.Name))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📝 *%s*\n\n", EscapeMarkdown(list.Name))
	for i, item := range list.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ItemLine(item))
	}
	return b.String()
}

// ListsSummary renders the /lists overview, sorted by list id, with the
// active list marked.
func ListsSummary(lists []*models.ShoppingList, activeID, activeName string) string {
	if len(lists) == 0 {
		return "No lists found."
	}

	sorted := make([]*models.ShoppingList, len(lists))
	copy(sorted, lists)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].ListID > sorted[j].ListID; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	var b strings.Builder
	b.WriteString("📋 *Shopping Lists:*\n\n")
	for _, list := range sorted {
		marker := "▫️"
		if list.ListID == activeID {
			marker = "🔹"
		}
		fmt.Fprintf(&b, "%s *%s* (`%s`)\n", marker, EscapeMarkdown(list.Name), EscapeMarkdown(list.ListID))
		fmt.Fprintf(&b, "   📝 %d items\n\n", len(list.Items))
	}
	fmt.Fprintf(&b, "💡 Active list: *%s*", EscapeMarkdown(activeName))
	return b.String()
}

// ListsOverview renders the list-management entry text in creation order.
func ListsOverview(lists []*models.ShoppingList, activeID string) string {
	var b strings.Builder
	for _, list := range lists {
		marker := GlyphList
		if list.ListID == activeID {
			marker = GlyphActive
		}
		fmt.Fprintf(&b, "%s *%s* (`%s`)\n", marker, EscapeMarkdown(list.Name), EscapeMarkdown(list.ListID))
		fmt.Fprintf(&b, "   • %d items\n\n", len(list.Items))
	}
	return b.String()
}

// MainMenuKeyboard is the top-level mode selector.
func MainMenuKeyboard(activeName string) [][]string {
	return [][]string{
		{BtnListManagement, BtnEditPrefix + activeName},
		{BtnShoppingMode, BtnHelp},
	}
}

func ListManagementKeyboard() [][]string {
	return [][]string{
		{BtnShowCurrentList, BtnCreateNewList},
		{BtnSwitchLists, BtnDeleteList},
		{BtnBackToMain},
	}
}

func ItemManagementKeyboard() [][]string {
	return [][]string{
		{BtnAddItem, BtnShowList},
		{BtnMarkDone, BtnRemoveItem},
		{BtnWipeAll, BtnBackToMain},
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func runeLen(s string) int {
	return len([]rune(s))
}

// ShoppingItemButton renders one tap-to-complete shopping button, with the
// name truncated to fit the narrow three-column layout.
func ShoppingItemButton(item models.Item) string {
	text := fmt.Sprintf("%s %s %s", GlyphDone, item.Quantity, item.Name)
	if runeLen(text) > 20 {
		text = fmt.Sprintf("%s %s %s...", GlyphDone, item.Quantity, truncateRunes(item.Name, 12))
	}
	return text
}

// ShoppingKeyboard lays out one button per item, batched perRow per row,
// followed by the shopping control row.
func ShoppingKeyboard(items []models.Item, perRow int) [][]string {
	if perRow <= 0 {
		perRow = 3
	}

	var rows [][]string
	var row []string
	for _, item := range items {
		row = append(row, ShoppingItemButton(item))
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []string{BtnShowList, BtnExitShopping})
	return rows
}

// SelectionItemButton renders one item button for the wider one-per-row
// mark-done and remove keyboards.
func SelectionItemButton(item models.Item, glyph string) string {
	text := fmt.Sprintf("%s %s %s", glyph, item.Quantity, item.Name)
	if runeLen(text) > 35 {
		text = fmt.Sprintf("%s %s %s...", glyph, item.Quantity, truncateRunes(item.Name, 25))
	}
	return text
}

// ItemSelectionKeyboard lays out one button per item plus a cancel row.
func ItemSelectionKeyboard(items []models.Item, glyph, cancel string) [][]string {
	rows := make([][]string, 0, len(items)+1)
	for _, item := range items {
		rows = append(rows, []string{SelectionItemButton(item, glyph)})
	}
	rows = append(rows, []string{cancel})
	return rows
}

// ListButton renders one list button as "<glyph> <Name> (<count>)".
func ListButton(list *models.ShoppingList, glyph string) string {
	text := fmt.Sprintf("%s %s (%d)", glyph, list.Name, len(list.Items))
	if runeLen(text) > 35 {
		text = fmt.Sprintf("%s %s... (%d)", glyph, truncateRunes(list.Name, 28), len(list.Items))
	}
	return text
}

// ListSelectionKeyboard lays out one button per list, the active list
// marked with the active glyph, plus a cancel row.
func ListSelectionKeyboard(lists []*models.ShoppingList, activeID, glyph, cancel string) [][]string {
	rows := make([][]string, 0, len(lists)+1)
	for _, list := range lists {
		g := glyph
		if list.ListID == activeID {
			g = GlyphActive
		}
		rows = append(rows, []string{ListButton(list, g)})
	}
	rows = append(rows, []string{cancel})
	return rows
}

// ListSelectionText renders the prose accompanying a list-selection
// keyboard.
func ListSelectionText(header string, lists []*models.ShoppingList, activeID string) string {
	var b strings.Builder
	b.WriteString(header)
	for _, list := range lists {
		current := ""
		if list.ListID == activeID {
			current = "📍 (current)"
		}
		fmt.Fprintf(&b, "• *%s* - %d items %s\n", EscapeMarkdown(list.Name), len(list.Items), current)
	}
	return b.String()
}

// InteractiveKeyboard builds the inline keyboard attached to a list view:
// done/remove buttons per pending item, bulk actions, and navigation.
func InteractiveKeyboard(list *models.ShoppingList) [][]InlineButton {
	var rows [][]InlineButton

	for i, item := range list.Items {
		if item.Purchased {
			continue
		}
		rows = append(rows, []InlineButton{
			{Text: fmt.Sprintf("✅ Done: %s", truncateRunes(item.Name, 20)), Data: fmt.Sprintf("done_%d", i)},
			{Text: fmt.Sprintf("🗑️ Remove: %s", truncateRunes(item.Name, 15)), Data: fmt.Sprintf("remove_%d", i)},
		})
	}

	if list.PurchasedCount() > 0 {
		rows = append(rows, []InlineButton{
			{Text: "🧹 Clear Bought Items", Data: "clear_bought"},
			{Text: "🗑️ Wipe All", Data: "wipe_all"},
		})
	} else if len(list.Items) > 0 {
		rows = append(rows, []InlineButton{
			{Text: "🗑️ Wipe All", Data: "wipe_all"},
		})
	}

	rows = append(rows, []InlineButton{
		{Text: "📋 All Lists", Data: "show_lists"},
		{Text: "🔄 Refresh", Data: "refresh"},
	})
	return rows
}

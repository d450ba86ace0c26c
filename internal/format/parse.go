package format

import (
	"strconv"
	"strings"

	"groceries-bot/internal/models"
)

// ItemSelection is the result of inverting an item-selection button back
// into quantity and name. Truncated means the name carried an ellipsis
// marker, so it must be prefix-matched against stored names.
type ItemSelection struct {
	Quantity  string
	Name      string
	Truncated bool
}

var itemGlyphPrefixes = []string{GlyphDone + " ", GlyphRemove + " "}
var statusGlyphPrefixes = []string{GlyphDone + " ", GlyphPending + " "}

// ParseItemButton inverts a button built by ShoppingItemButton or
// SelectionItemButton: strip the leading glyph, split off the quantity,
// and detect truncation. Returns false when the text is not an item
// button.
func ParseItemButton(text string) (ItemSelection, bool) {
	rest := ""
	matched := false
	for _, prefix := range itemGlyphPrefixes {
		if strings.HasPrefix(text, prefix) {
			rest = strings.TrimSpace(strings.TrimPrefix(text, prefix))
			matched = true
			break
		}
	}
	if !matched {
		return ItemSelection{}, false
	}

	// Remove buttons carry the item's own status glyph after the action
	// glyph.
	for _, prefix := range statusGlyphPrefixes {
		if strings.HasPrefix(rest, prefix) {
			rest = strings.TrimSpace(strings.TrimPrefix(rest, prefix))
			break
		}
	}

	sel := ItemSelection{Quantity: "1", Name: rest}
	if before, after, found := strings.Cut(rest, " "); found {
		sel.Quantity = before
		sel.Name = after
	}
	if strings.HasSuffix(sel.Name, "...") {
		sel.Name = strings.TrimSpace(strings.TrimSuffix(sel.Name, "..."))
		sel.Truncated = true
	}
	return sel, true
}

// MatchItem resolves a parsed selection against the current items: an
// exact name+quantity match wins, otherwise the first item whose name
// starts with the candidate and whose quantity matches exactly.
func MatchItem(items []models.Item, sel ItemSelection) (int, bool) {
	for i, item := range items {
		if item.Quantity == sel.Quantity && item.Name == sel.Name {
			return i, true
		}
	}
	for i, item := range items {
		if item.Quantity == sel.Quantity && strings.HasPrefix(item.Name, sel.Name) {
			return i, true
		}
	}
	return 0, false
}

var listGlyphPrefixes = []string{GlyphSwitch + " ", GlyphActive + " ", GlyphRemove + " "}

// ParseListButton inverts a button built by ListButton: strip the glyph,
// drop the trailing "(count)", and strip the ellipsis marker. Text without
// a known glyph is taken as a bare list name.
func ParseListButton(text string) string {
	name := strings.TrimSpace(text)
	for _, prefix := range listGlyphPrefixes {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimSpace(strings.TrimPrefix(name, prefix))
			break
		}
	}

	if strings.HasSuffix(name, ")") {
		if i := strings.LastIndex(name, "("); i >= 0 {
			name = strings.TrimSpace(name[:i])
		}
	}
	name = strings.TrimSpace(strings.TrimSuffix(name, "..."))
	return name
}

// MatchList resolves a list name candidate: case-insensitive exact match
// first, case-insensitive substring match second.
func MatchList(lists []*models.ShoppingList, name string) (*models.ShoppingList, bool) {
	lower := strings.ToLower(name)
	for _, list := range lists {
		if strings.ToLower(list.Name) == lower {
			return list, true
		}
	}
	for _, list := range lists {
		if strings.Contains(strings.ToLower(list.Name), lower) {
			return list, true
		}
	}
	return nil, false
}

// ParseItemText splits free-form "add item" text: when the first token
// parses as an integer it is the quantity and the remainder the name,
// otherwise the whole text is the name with quantity "1".
func ParseItemText(text string) (name, quantity string) {
	text = strings.TrimSpace(text)
	before, after, found := strings.Cut(text, " ")
	if !found {
		return text, "1"
	}
	if _, err := strconv.Atoi(before); err == nil {
		return strings.TrimSpace(after), before
	}
	return text, "1"
}

// ParseItemArgs splits /add command arguments: when the last argument
// parses as an integer it is the quantity, otherwise everything is the
// name with quantity "1".
func ParseItemArgs(args []string) (name, quantity string) {
	if len(args) == 1 {
		return args[0], "1"
	}
	last := args[len(args)-1]
	if n, err := strconv.Atoi(last); err == nil {
		return strings.Join(args[:len(args)-1], " "), strconv.Itoa(n)
	}
	return strings.Join(args, " "), "1"
}

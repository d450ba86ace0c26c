package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"groceries-bot/internal/format"
	"groceries-bot/internal/registry"
	"groceries-bot/internal/session"
	"groceries-bot/internal/storage"
)

const (
	testConv = int64(100)
	testUser = int64(7)
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg := registry.New(storage.NewMemoryStore(), zap.NewNop())
	sessions := session.NewManager(time.Minute)
	return New(reg, sessions, nil, Config{}, zap.NewNop())
}

func msg(text string) Message {
	return Message{
		ConversationID: testConv,
		UserID:         testUser,
		UserName:       "alice",
		Private:        true,
		Text:           text,
	}
}

func send(t *testing.T, e *Engine, text string) []Reply {
	t.Helper()
	replies := e.HandleText(context.Background(), msg(text))
	if len(replies) == 0 {
		t.Fatalf("no reply to %q", text)
	}
	return replies
}

func command(t *testing.T, e *Engine, cmd string, args ...string) []Reply {
	t.Helper()
	replies := e.HandleCommand(context.Background(), msg("/"+cmd), cmd, args)
	if len(replies) == 0 {
		t.Fatalf("no reply to /%s", cmd)
	}
	return replies
}

func callback(t *testing.T, e *Engine, data string) []Reply {
	t.Helper()
	replies := e.HandleCallback(context.Background(), msg(""), data)
	if len(replies) == 0 {
		t.Fatalf("no reply to callback %q", data)
	}
	return replies
}

func hasButton(rows [][]string, label string) bool {
	for _, row := range rows {
		for _, btn := range row {
			if btn == label {
				return true
			}
		}
	}
	return false
}

func TestImplicitAddFromMainMenu(t *testing.T) {
	e := newTestEngine(t)

	replies := send(t, e, "2 milk")
	if !strings.Contains(replies[0].Text, "✅ Added: 2 milk") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	if !strings.Contains(replies[0].Text, "📝 2 milk") {
		t.Fatalf("reply missing list view: %q", replies[0].Text)
	}
	if len(replies[0].Inline) == 0 {
		t.Fatal("reply missing inline keyboard")
	}
}

func TestQuantityParsing(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, "white bread")
	list, err := e.registry.GetActiveList(context.Background(), testConv)
	if err != nil {
		t.Fatalf("GetActiveList: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Name != "white bread" || list.Items[0].Quantity != "1" {
		t.Fatalf("items = %+v", list.Items)
	}
}

func TestModeEntryAndBack(t *testing.T) {
	e := newTestEngine(t)

	replies := send(t, e, format.BtnListManagement)
	if !hasButton(replies[len(replies)-1].Keyboard, format.BtnCreateNewList) {
		t.Fatal("list management keyboard missing")
	}

	replies = send(t, e, format.BtnBackToMain)
	last := replies[len(replies)-1]
	if !hasButton(last.Keyboard, format.BtnListManagement) {
		t.Fatal("main menu keyboard missing after back")
	}
	if !hasButton(last.Keyboard, format.BtnEditPrefix+"Groceries") {
		t.Fatalf("edit button not labeled with active list: %v", last.Keyboard)
	}
}

func TestBackToMainWinsOverAwaiting(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, format.BtnListManagement)
	send(t, e, format.BtnCreateNewList)
	send(t, e, format.BtnBackToMain)

	// The next plain text is an implicit add, not a list name.
	send(t, e, "milk")
	list, _ := e.registry.GetActiveList(context.Background(), testConv)
	if len(list.Items) != 1 || list.Items[0].Name != "milk" {
		t.Fatalf("items = %+v", list.Items)
	}
	lists, _ := e.registry.Lists(context.Background(), testConv)
	if len(lists) != 1 {
		t.Fatalf("a list was created: %d lists", len(lists))
	}
}

func TestCreateListFlow(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, format.BtnListManagement)
	replies := send(t, e, format.BtnCreateNewList)
	if !replies[0].ForceReply {
		t.Fatal("create prompt is not a force reply")
	}

	replies = send(t, e, "Hardware Store")
	if !strings.Contains(replies[0].Text, "Created and switched to list: *Hardware Store*") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	// Control returns to list management.
	if !hasButton(replies[len(replies)-1].Keyboard, format.BtnSwitchLists) {
		t.Fatal("list management keyboard not restored")
	}

	active, _ := e.registry.GetActiveList(context.Background(), testConv)
	if active.ListID != "hardware_store" {
		t.Fatalf("active = %q", active.ListID)
	}
}

func TestCreateDuplicateListRefused(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, format.BtnListManagement)
	send(t, e, format.BtnCreateNewList)
	send(t, e, "Hardware")

	send(t, e, format.BtnCreateNewList)
	replies := send(t, e, "hardware")
	if !strings.Contains(replies[0].Text, "already exists") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	lists, _ := e.registry.Lists(context.Background(), testConv)
	if len(lists) != 2 {
		t.Fatalf("got %d lists, want 2", len(lists))
	}
}

func TestSwitchListFlow(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, format.BtnListManagement)
	send(t, e, format.BtnCreateNewList)
	send(t, e, "Hardware")

	// Back on groceries first.
	send(t, e, format.BtnSwitchLists)
	replies := send(t, e, "🔄 Groceries (0)")
	if !strings.Contains(replies[0].Text, "Switched to: *Groceries*") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	active, _ := e.registry.GetActiveList(context.Background(), testConv)
	if active.ListID != "groceries" {
		t.Fatalf("active = %q", active.ListID)
	}
}

func TestSwitchWithSingleListRefused(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, format.BtnListManagement)
	replies := send(t, e, format.BtnSwitchLists)
	if !strings.Contains(replies[0].Text, "only have one list") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestDeleteListFlow(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, format.BtnListManagement)
	send(t, e, format.BtnCreateNewList)
	send(t, e, "Hardware")

	send(t, e, format.BtnDeleteList)
	replies := send(t, e, "🗑️ Hardware (0)")
	if !strings.Contains(replies[0].Text, "Deleted list: *Hardware*") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	if !strings.Contains(replies[0].Text, "Now using: *Groceries*") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestDeleteOnlyListRefused(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, format.BtnListManagement)
	replies := send(t, e, format.BtnDeleteList)
	if !strings.Contains(replies[0].Text, "Cannot delete your only list") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestItemModeAddAndMarkDone(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, format.BtnEditPrefix+"Groceries")
	send(t, e, format.BtnAddItem)
	replies := send(t, e, "2 milk")
	if !strings.Contains(replies[0].Text, "✅ Added: 2 milk") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	if !hasButton(replies[0].Keyboard, format.BtnMarkDone) {
		t.Fatal("item management keyboard not restored after add")
	}

	send(t, e, format.BtnMarkDone)
	replies = send(t, e, "✅ 2 milk")
	if !strings.Contains(replies[0].Text, "✅ Done: 2 milk") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	list, _ := e.registry.GetActiveList(context.Background(), testConv)
	if len(list.Items) != 0 {
		t.Fatalf("item not removed: %+v", list.Items)
	}
}

func TestItemSelectionCancel(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, format.BtnEditPrefix+"Groceries")
	send(t, e, format.BtnAddItem)
	send(t, e, "milk")

	send(t, e, format.BtnRemoveItem)
	replies := send(t, e, format.BtnCancelRemove)
	if !hasButton(replies[len(replies)-1].Keyboard, format.BtnAddItem) {
		t.Fatal("item keyboard not restored after cancel")
	}

	list, _ := e.registry.GetActiveList(context.Background(), testConv)
	if len(list.Items) != 1 {
		t.Fatalf("cancel mutated the list: %+v", list.Items)
	}
}

func TestShoppingModeRefusesEmptyList(t *testing.T) {
	e := newTestEngine(t)

	replies := send(t, e, format.BtnShoppingMode)
	if !strings.Contains(replies[0].Text, "is empty") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	if !hasButton(replies[0].Keyboard, format.BtnListManagement) {
		t.Fatal("expected main menu keyboard")
	}
}

func TestShoppingModeCheckOffAndComplete(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, "milk")
	send(t, e, "2 bread")

	replies := send(t, e, format.BtnShoppingMode)
	if !strings.Contains(replies[0].Text, "2 items to buy") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	if !hasButton(replies[0].Keyboard, "✅ 1 milk") {
		t.Fatalf("shopping keyboard = %v", replies[0].Keyboard)
	}

	replies = send(t, e, "✅ 1 milk")
	if !strings.Contains(replies[0].Text, "1 items to buy") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = send(t, e, "✅ 2 bread")
	if !strings.Contains(replies[0].Text, "Shopping Complete") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	if !hasButton(replies[0].Keyboard, format.BtnListManagement) {
		t.Fatal("expected main menu keyboard after completion")
	}
}

func TestShoppingModeTruncatedButton(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, "Extra Virgin Olive Oil")
	send(t, e, "milk")
	send(t, e, format.BtnShoppingMode)

	replies := send(t, e, "✅ 1 Extra Virgin...")
	if strings.Contains(replies[0].Text, "Could not find") {
		t.Fatalf("truncated button not matched: %q", replies[0].Text)
	}

	list, _ := e.registry.GetActiveList(context.Background(), testConv)
	if len(list.Items) != 1 || list.Items[0].Name != "milk" {
		t.Fatalf("items = %+v", list.Items)
	}
}

func TestShoppingModeAddWhileShopping(t *testing.T) {
	e := newTestEngine(t)

	send(t, e, "milk")
	send(t, e, format.BtnShoppingMode)

	replies := send(t, e, "eggs")
	if !strings.Contains(replies[0].Text, "✅ Added: 1 eggs") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	if !hasButton(replies[0].Keyboard, "✅ 1 eggs") {
		t.Fatal("shopping keyboard not re-rendered with new item")
	}
	if !hasButton(replies[0].Keyboard, format.BtnExitShopping) {
		t.Fatal("still expected the shopping keyboard")
	}
}

func TestShoppingModeRefusesOversizedList(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.MaxShoppingItems = 2

	for _, name := range []string{"a", "b", "c"} {
		send(t, e, name)
	}
	replies := send(t, e, format.BtnShoppingMode)
	if !strings.Contains(replies[0].Text, "too many items") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestCommandAddRemoveDone(t *testing.T) {
	e := newTestEngine(t)

	replies := command(t, e, "add", "milk", "2")
	if !strings.Contains(replies[0].Text, "Added 2 milk") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	command(t, e, "add", "bread")

	replies = command(t, e, "done", "1")
	if !strings.Contains(replies[0].Text, "marked as purchased") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = command(t, e, "remove", "2")
	if !strings.Contains(replies[0].Text, "Item removed") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = command(t, e, "remove", "5")
	if !strings.Contains(replies[0].Text, "Invalid item number") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = command(t, e, "remove", "abc")
	if !strings.Contains(replies[0].Text, "valid number") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestCommandNewGoDelete(t *testing.T) {
	e := newTestEngine(t)

	command(t, e, "new", "Hardware", "Store")
	active, _ := e.registry.GetActiveList(context.Background(), testConv)
	if active.ListID != "hardware_store" {
		t.Fatalf("active = %q", active.ListID)
	}

	replies := command(t, e, "go", "groceries")
	if !strings.Contains(replies[0].Text, "Now shopping at *Groceries*") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = command(t, e, "go", "pharmacy")
	if !strings.Contains(replies[0].Text, "not found") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = command(t, e, "delete", "hardware", "store")
	if !strings.Contains(replies[0].Text, "Deleted list `hardware_store`") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = command(t, e, "delete", "groceries")
	if !strings.Contains(replies[0].Text, "Cannot delete your only list") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestCommandClearAndWipe(t *testing.T) {
	e := newTestEngine(t)

	command(t, e, "add", "milk")
	command(t, e, "add", "bread")
	command(t, e, "done", "1")

	replies := command(t, e, "clear")
	if !strings.Contains(replies[0].Text, "Cleared 1 bought items") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = command(t, e, "wipe")
	if !strings.Contains(replies[0].Text, "(1 items removed)") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = command(t, e, "wipe")
	if !strings.Contains(replies[0].Text, "already empty") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestCommandBackupPrivateOnly(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.BackupDir = t.TempDir()

	group := msg("/backup")
	group.Private = false
	replies := e.HandleCommand(context.Background(), group, "backup", nil)
	if !strings.Contains(replies[0].Text, "only available in private chat") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = command(t, e, "backup")
	if !strings.Contains(replies[0].Text, "Backup created successfully") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestCommandStats(t *testing.T) {
	e := newTestEngine(t)

	command(t, e, "add", "milk")
	replies := command(t, e, "stats")
	if !strings.Contains(replies[0].Text, "Conversations: 1") || !strings.Contains(replies[0].Text, "Items: 1") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestUnknownCommand(t *testing.T) {
	e := newTestEngine(t)
	replies := command(t, e, "frobnicate")
	if !strings.Contains(replies[0].Text, "Unknown command") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestCallbackDoneAndRemove(t *testing.T) {
	e := newTestEngine(t)

	command(t, e, "add", "milk")
	command(t, e, "add", "bread")

	replies := callback(t, e, "done_0")
	if !replies[0].Edit {
		t.Fatal("callback reply is not an edit")
	}
	if !strings.Contains(replies[0].Text, "✅ 1 milk") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = callback(t, e, "remove_1")
	if strings.Contains(replies[0].Text, "bread") {
		t.Fatalf("bread not removed: %q", replies[0].Text)
	}

	// Stale index after the list shrank.
	replies = callback(t, e, "done_5")
	if !strings.Contains(replies[0].Text, "Item not found") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestCallbackWipeAll(t *testing.T) {
	e := newTestEngine(t)

	command(t, e, "add", "milk")
	replies := callback(t, e, "wipe_all")
	if !strings.Contains(replies[0].Text, "Wiped *Groceries* clean! (1 items removed)") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
	if !strings.Contains(replies[0].Text, "is empty") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestCallbackSwitchAndDelete(t *testing.T) {
	e := newTestEngine(t)

	command(t, e, "new", "Hardware")
	replies := callback(t, e, "switch_groceries")
	if !strings.Contains(replies[0].Text, "Switched to *Groceries*") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = callback(t, e, "confirm_delete_hardware")
	if !strings.Contains(replies[0].Text, "Deleted list `hardware`") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	replies = callback(t, e, "delete_list_prompt")
	if !strings.Contains(replies[0].Text, "Cannot delete your only list") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestCallbackShowLists(t *testing.T) {
	e := newTestEngine(t)

	command(t, e, "new", "Hardware")
	replies := callback(t, e, "show_lists")
	if !strings.Contains(replies[0].Text, "Shopping Lists") {
		t.Fatalf("reply = %q", replies[0].Text)
	}

	found := false
	for _, row := range replies[0].Inline {
		for _, btn := range row {
			if btn.Data == "switch_hardware" {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("switch button missing from lists keyboard")
	}
}

func TestCallbackUnknown(t *testing.T) {
	e := newTestEngine(t)
	replies := callback(t, e, "bogus_action")
	if !strings.Contains(replies[0].Text, "Unknown action") {
		t.Fatalf("reply = %q", replies[0].Text)
	}
}

func TestSessionsArePerUser(t *testing.T) {
	e := newTestEngine(t)

	// User 7 starts the create-list prompt.
	send(t, e, format.BtnListManagement)
	send(t, e, format.BtnCreateNewList)

	// A different user's text in the same chat is a plain add.
	other := msg("cheese")
	other.UserID = 8
	e.HandleText(context.Background(), other)

	list, _ := e.registry.GetActiveList(context.Background(), testConv)
	if len(list.Items) != 1 || list.Items[0].Name != "cheese" {
		t.Fatalf("items = %+v", list.Items)
	}

	// User 7's pending prompt still resolves as a list name.
	send(t, e, "Hardware")
	lists, _ := e.registry.Lists(context.Background(), testConv)
	if len(lists) != 2 {
		t.Fatalf("got %d lists, want 2", len(lists))
	}
}

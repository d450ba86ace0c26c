package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"groceries-bot/internal/format"
	"groceries-bot/internal/registry"
	"groceries-bot/internal/session"
)

// enterListMode renders the list overview with the list-management
// keyboard. The caller has already set the session mode.
func (e *Engine) enterListMode(ctx context.Context, msg Message) []Reply {
	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		e.logger.Error("Failed to load lists", zap.Error(err), zap.Int64("conv_id", msg.ConversationID))
		return errorReply()
	}
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}

	text := "📋 *List Management Mode*\n\n" + format.ListsOverview(lists, active.ListID)
	return []Reply{{
		Text:     text,
		Markdown: true,
		Keyboard: format.ListManagementKeyboard(),
	}}
}

// enterItemMode shows the active list with its inline keyboard, then swaps
// the reply keyboard to the item-management set.
func (e *Engine) enterItemMode(ctx context.Context, msg Message) []Reply {
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	return []Reply{
		{
			Text:     format.DisplayText(active),
			Markdown: true,
			Inline:   format.InteractiveKeyboard(active),
		},
		{
			Text:     fmt.Sprintf("✏️ *Editing: %s*", format.EscapeMarkdown(active.Name)),
			Markdown: true,
			Keyboard: format.ItemManagementKeyboard(),
		},
	}
}

// enterShoppingMode builds the tap-to-complete keyboard. An empty list or
// one over the button ceiling refuses entry and stays in the main menu.
func (e *Engine) enterShoppingMode(ctx context.Context, msg Message) []Reply {
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}

	if len(active.Items) == 0 {
		return []Reply{{
			Text:     fmt.Sprintf("🛒 *%s* is empty!\n\nAdd some items before going shopping.", format.EscapeMarkdown(active.Name)),
			Markdown: true,
			Keyboard: format.MainMenuKeyboard(active.Name),
		}}
	}
	if len(active.Items) > e.cfg.MaxShoppingItems {
		return []Reply{{
			Text:     fmt.Sprintf("🛒 *%s* has too many items for Shopping Mode (%d).\n\nUse ✏️ Edit mode instead.", format.EscapeMarkdown(active.Name), len(active.Items)),
			Markdown: true,
			Keyboard: format.MainMenuKeyboard(active.Name),
		}}
	}

	e.sessions.Set(msg.UserID, session.Session{Mode: session.ModeShopping})
	pending := active.Pending()
	return []Reply{{
		Text:     e.shoppingHeader(active.Name, len(pending)),
		Markdown: true,
		Keyboard: format.ShoppingKeyboard(pending, e.cfg.ButtonsPerRow),
	}}
}

func (e *Engine) shoppingHeader(name string, count int) string {
	return fmt.Sprintf("🛒 *Shopping Mode: %s*\n\n📝 %d items to buy\n\nTap an item to check it off!", format.EscapeMarkdown(name), count)
}

// listModeAction handles the list-management keyboard. Unknown text is
// ignored so stray messages do not mutate anything.
func (e *Engine) listModeAction(ctx context.Context, msg Message, text string) []Reply {
	switch text {
	case format.BtnShowCurrentList:
		active, ok := e.activeList(ctx, msg.ConversationID)
		if !ok {
			return errorReply()
		}
		return []Reply{
			{Text: format.DisplayText(active), Markdown: true, Inline: format.InteractiveKeyboard(active)},
			{Text: ".", Keyboard: format.ListManagementKeyboard()},
		}

	case format.BtnCreateNewList:
		e.sessions.Set(msg.UserID, session.Session{
			Mode:     session.ModeListManage,
			Awaiting: session.AwaitListName,
			ReturnTo: session.ModeListManage,
		})
		return []Reply{{
			Text:        "📝 *Create New List*\n\nWhat should the new list be called?",
			Markdown:    true,
			ForceReply:  true,
			Placeholder: "Type list name...",
		}}

	case format.BtnSwitchLists:
		return e.promptListSwitch(ctx, msg)

	case format.BtnDeleteList:
		return e.promptListDelete(ctx, msg)
	}
	return nil
}

func (e *Engine) promptListSwitch(ctx context.Context, msg Message) []Reply {
	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		return errorReply()
	}
	if len(lists) <= 1 {
		return []Reply{{Text: "You only have one list. Create more lists with the 📝 button!"}}
	}
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}

	e.sessions.Set(msg.UserID, session.Session{
		Mode:     session.ModeListManage,
		Awaiting: session.AwaitListSwitch,
		ReturnTo: session.ModeListManage,
	})
	return []Reply{{
		Text:        format.ListSelectionText("🔄 *Switch Lists*\n\n", lists, active.ListID),
		Markdown:    true,
		Keyboard:    format.ListSelectionKeyboard(lists, active.ListID, format.GlyphSwitch, format.BtnCancelSwitch),
		OneTime:     true,
		Placeholder: "Tap a list to switch to it...",
	}}
}

func (e *Engine) promptListDelete(ctx context.Context, msg Message) []Reply {
	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		return errorReply()
	}
	if len(lists) <= 1 {
		return []Reply{{
			Text:     "❌ Cannot delete your only list! Create another list first.",
			Keyboard: format.ListManagementKeyboard(),
		}}
	}
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}

	e.sessions.Set(msg.UserID, session.Session{
		Mode:     session.ModeListManage,
		Awaiting: session.AwaitListDelete,
		ReturnTo: session.ModeListManage,
	})
	return []Reply{{
		Text:        format.ListSelectionText("🗑️ *Delete List*\n\n⚠️ This action cannot be undone!\n\n", lists, active.ListID),
		Markdown:    true,
		Keyboard:    format.ListSelectionKeyboard(lists, active.ListID, format.GlyphRemove, format.BtnCancelDelete),
		OneTime:     true,
		Placeholder: "Tap a list to delete it...",
	}}
}

// itemModeAction handles the item-management keyboard.
func (e *Engine) itemModeAction(ctx context.Context, msg Message, text string) []Reply {
	switch text {
	case format.BtnAddItem:
		e.sessions.Set(msg.UserID, session.Session{
			Mode:     session.ModeItemManage,
			Awaiting: session.AwaitItemText,
			ReturnTo: session.ModeItemManage,
		})
		return []Reply{{
			Text:        "➕ *Add Item*\n\nType the item name, optionally with a quantity first (e.g. `2 milk`).",
			Markdown:    true,
			ForceReply:  true,
			Placeholder: "Type item name...",
		}}

	case format.BtnShowList:
		active, ok := e.activeList(ctx, msg.ConversationID)
		if !ok {
			return errorReply()
		}
		return []Reply{
			{Text: format.DisplayText(active), Markdown: true, Inline: format.InteractiveKeyboard(active)},
			{Text: ".", Keyboard: format.ItemManagementKeyboard()},
		}

	case format.BtnMarkDone:
		return e.promptItemSelection(ctx, msg, session.AwaitMarkDone, format.GlyphDone,
			"✅ *Mark Items Done*\n\nTap an item to mark it as done:",
			format.BtnCancelMarkDone, "Tap an item to mark as done...")

	case format.BtnRemoveItem:
		return e.promptItemSelection(ctx, msg, session.AwaitRemove, format.GlyphRemove,
			"🗑️ *Remove Items*\n\nTap an item to remove it:",
			format.BtnCancelRemove, "Tap an item to remove...")

	case format.BtnWipeAll:
		count, err := e.registry.WipeAll(ctx, msg.ConversationID)
		if err != nil {
			return errorReply()
		}
		active, ok := e.activeList(ctx, msg.ConversationID)
		if !ok {
			return errorReply()
		}
		if count == 0 {
			return []Reply{{
				Text:     fmt.Sprintf("📝 *%s* is already empty.", format.EscapeMarkdown(active.Name)),
				Markdown: true,
				Keyboard: format.ItemManagementKeyboard(),
			}}
		}
		return []Reply{{
			Text:     fmt.Sprintf("🗑️ Wiped all %d items from *%s*!", count, format.EscapeMarkdown(active.Name)),
			Markdown: true,
			Keyboard: format.ItemManagementKeyboard(),
		}}
	}
	return nil
}

func (e *Engine) promptItemSelection(ctx context.Context, msg Message, await session.Awaiting, glyph, header, cancel, placeholder string) []Reply {
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	if len(active.Items) == 0 {
		return []Reply{{
			Text:     fmt.Sprintf("📝 *%s* is empty!", format.EscapeMarkdown(active.Name)),
			Markdown: true,
			Keyboard: format.ItemManagementKeyboard(),
		}}
	}

	e.sessions.Set(msg.UserID, session.Session{
		Mode:     session.ModeItemManage,
		Awaiting: await,
		ReturnTo: session.ModeItemManage,
	})
	return []Reply{{
		Text:        header,
		Markdown:    true,
		Keyboard:    format.ItemSelectionKeyboard(active.Items, glyph, cancel),
		OneTime:     true,
		Placeholder: placeholder,
	}}
}

// shoppingModeAction handles shopping-mode presses: exit, show, item
// check-off, and anything else falls through to the implicit add so the
// user can extend the list mid-shop.
func (e *Engine) shoppingModeAction(ctx context.Context, msg Message, text string) []Reply {
	switch {
	case text == format.BtnExitShopping:
		e.sessions.Reset(msg.UserID)
		return []Reply{{Text: "👋 Left Shopping Mode.", Keyboard: e.mainMenuKeyboard(ctx, msg.ConversationID)}}

	case text == format.BtnShowList:
		active, ok := e.activeList(ctx, msg.ConversationID)
		if !ok {
			return errorReply()
		}
		return []Reply{{
			Text:     format.DisplayText(active),
			Markdown: true,
			Keyboard: format.ShoppingKeyboard(active.Pending(), e.cfg.ButtonsPerRow),
		}}
	}

	if sel, ok := format.ParseItemButton(text); ok {
		return e.completeShoppingItem(ctx, msg, sel)
	}
	// Keep the shopping session; the fallback re-renders the keyboard.
	return e.addItemFromText(ctx, msg, text, session.ModeMain, true)
}

// completeShoppingItem resolves a tapped shopping button against the
// current items and removes the match.
func (e *Engine) completeShoppingItem(ctx context.Context, msg Message, sel format.ItemSelection) []Reply {
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}

	idx, found := format.MatchItem(active.Items, sel)
	if !found {
		return []Reply{{
			Text: fmt.Sprintf("❌ Could not find item matching '%s' with quantity '%s'.", sel.Name, sel.Quantity),
		}}
	}
	if _, err := e.registry.RemoveItemAt(ctx, msg.ConversationID, idx); err != nil {
		return errorReply()
	}

	updated, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	pending := updated.Pending()
	if len(pending) == 0 {
		e.sessions.Reset(msg.UserID)
		return []Reply{{
			Text:     fmt.Sprintf("🎉 *Shopping Complete!*\n\n*%s* is all done. Great job!", format.EscapeMarkdown(updated.Name)),
			Markdown: true,
			Keyboard: format.MainMenuKeyboard(updated.Name),
		}}
	}
	return []Reply{{
		Text:     e.shoppingHeader(updated.Name, len(pending)),
		Markdown: true,
		Keyboard: format.ShoppingKeyboard(pending, e.cfg.ButtonsPerRow),
	}}
}

// addItemFromText is the implicit add: free text anywhere without a more
// specific meaning becomes an item on the active list. returnTo picks the
// keyboard to restore; inShopping keeps the shopping session alive.
func (e *Engine) addItemFromText(ctx context.Context, msg Message, text string, returnTo session.Mode, inShopping bool) []Reply {
	name, quantity := format.ParseItemText(text)
	if name == "" {
		return nil
	}

	if err := e.registry.AddItem(ctx, msg.ConversationID, name, quantity, msg.UserName); err != nil {
		e.logger.Error("Failed to add item",
			zap.Error(err),
			zap.Int64("conv_id", msg.ConversationID),
			zap.String("item", name))
		return errorReply()
	}

	confirmation := fmt.Sprintf("✅ Added: %s %s", quantity, name)
	if aisle := e.suggestAisle(ctx, name); aisle != "" {
		confirmation += fmt.Sprintf("\n🏷 Aisle: %s", aisle)
	}

	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}

	if inShopping {
		return []Reply{{
			Text:     confirmation,
			Keyboard: format.ShoppingKeyboard(active.Pending(), e.cfg.ButtonsPerRow),
		}}
	}

	switch returnTo {
	case session.ModeItemManage:
		e.sessions.Set(msg.UserID, session.Session{Mode: session.ModeItemManage})
		return []Reply{{Text: confirmation, Keyboard: format.ItemManagementKeyboard()}}
	case session.ModeListManage:
		e.sessions.Set(msg.UserID, session.Session{Mode: session.ModeListManage})
		return []Reply{{Text: confirmation, Keyboard: format.ListManagementKeyboard()}}
	}

	return []Reply{
		{
			Text:     confirmation + "\n\n" + format.DisplayText(active),
			Markdown: true,
			Inline:   format.InteractiveKeyboard(active),
		},
	}
}

// suggestAisle asks the optional categorizer for a store aisle. Failures
// are logged and swallowed; suggestions never block an add.
func (e *Engine) suggestAisle(ctx context.Context, name string) string {
	if e.categorizer == nil {
		return ""
	}
	aisle, err := e.categorizer.Suggest(ctx, name)
	if err != nil {
		e.logger.Warn("Aisle suggestion failed", zap.Error(err), zap.String("item", name))
		return ""
	}
	return aisle
}

// createListFromText resolves the "create list" prompt.
func (e *Engine) createListFromText(ctx context.Context, msg Message, text string, returnTo session.Mode) []Reply {
	name := text
	if name == "" {
		return []Reply{{Text: "❌ List name cannot be empty."}}
	}

	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		return errorReply()
	}
	candidate := registry.ListID(name)
	for _, list := range lists {
		if list.ListID == candidate {
			return e.withReturnKeyboard(ctx, msg, returnTo, []Reply{{
				Text:     fmt.Sprintf("❌ A list with a similar name already exists (`%s`). Pick a different name.", candidate),
				Markdown: true,
			}})
		}
	}

	listID, err := e.registry.CreateList(ctx, msg.ConversationID, name)
	if err != nil {
		return errorReply()
	}
	if err := e.registry.SetActiveList(ctx, msg.ConversationID, listID); err != nil {
		return errorReply()
	}
	created, err := e.registry.GetList(ctx, msg.ConversationID, listID)
	if err != nil {
		return errorReply()
	}

	replies := []Reply{{
		Text: fmt.Sprintf("✅ Created and switched to list: *%s* (`%s`)\n\n%s",
			format.EscapeMarkdown(created.Name), listID, format.DisplayText(created)),
		Markdown: true,
		Inline:   format.InteractiveKeyboard(created),
	}}
	return e.withReturnKeyboard(ctx, msg, returnTo, replies)
}

// switchToList resolves the "switch lists" selection.
func (e *Engine) switchToList(ctx context.Context, msg Message, text string, returnTo session.Mode) []Reply {
	if text == format.BtnCancelSwitch {
		return e.withReturnKeyboard(ctx, msg, returnTo, nil)
	}

	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		return errorReply()
	}
	name := format.ParseListButton(text)
	target, found := format.MatchList(lists, name)
	if !found {
		return e.withReturnKeyboard(ctx, msg, returnTo, []Reply{{
			Text: fmt.Sprintf("❌ Could not find list matching '%s'.", name),
		}})
	}

	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	if target.ListID == active.ListID {
		return e.withReturnKeyboard(ctx, msg, returnTo, []Reply{{
			Text:     fmt.Sprintf("📍 You're already using *%s*!", format.EscapeMarkdown(target.Name)),
			Markdown: true,
		}})
	}

	if err := e.registry.SetActiveList(ctx, msg.ConversationID, target.ListID); err != nil {
		return errorReply()
	}
	switched, err := e.registry.GetList(ctx, msg.ConversationID, target.ListID)
	if err != nil {
		return errorReply()
	}

	replies := []Reply{{
		Text:     fmt.Sprintf("✅ Switched to: *%s*\n\n%s", format.EscapeMarkdown(switched.Name), format.DisplayText(switched)),
		Markdown: true,
		Inline:   format.InteractiveKeyboard(switched),
	}}
	return e.withReturnKeyboard(ctx, msg, returnTo, replies)
}

// deleteListFromText resolves the "delete list" selection.
func (e *Engine) deleteListFromText(ctx context.Context, msg Message, text string, returnTo session.Mode) []Reply {
	if text == format.BtnCancelDelete {
		return e.withReturnKeyboard(ctx, msg, returnTo, nil)
	}

	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		return errorReply()
	}
	name := format.ParseListButton(text)
	target, found := format.MatchList(lists, name)
	if !found {
		return e.withReturnKeyboard(ctx, msg, returnTo, []Reply{{
			Text: fmt.Sprintf("❌ Could not find list matching '%s'.", name),
		}})
	}

	deleted, err := e.registry.DeleteList(ctx, msg.ConversationID, target.ListID)
	if err != nil {
		return errorReply()
	}
	if !deleted {
		return e.withReturnKeyboard(ctx, msg, returnTo, []Reply{{
			Text: "❌ Cannot delete your only list! Create another list first.",
		}})
	}

	current, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	replies := []Reply{{
		Text: fmt.Sprintf("✅ Deleted list: *%s*\nNow using: *%s*",
			format.EscapeMarkdown(target.Name), format.EscapeMarkdown(current.Name)),
		Markdown: true,
	}}
	return e.withReturnKeyboard(ctx, msg, returnTo, replies)
}

// resolveItemSelection handles the mark-done and remove prompts. Mark-done
// removes the item outright, matching the shopping flow.
func (e *Engine) resolveItemSelection(ctx context.Context, msg Message, text, cancel, verb string) []Reply {
	restore := func(extra []Reply) []Reply {
		e.sessions.Set(msg.UserID, session.Session{Mode: session.ModeItemManage})
		return append(extra, Reply{Text: ".", Keyboard: format.ItemManagementKeyboard()})
	}

	if text == cancel {
		return restore(nil)
	}

	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	sel, ok := format.ParseItemButton(text)
	if !ok {
		return restore([]Reply{{Text: fmt.Sprintf("❌ Could not find item matching '%s'.", text)}})
	}
	idx, found := format.MatchItem(active.Items, sel)
	if !found {
		return restore([]Reply{{
			Text: fmt.Sprintf("❌ Could not find item matching '%s' with quantity '%s'.", sel.Name, sel.Quantity),
		}})
	}

	item := active.Items[idx]
	if _, err := e.registry.RemoveItemAt(ctx, msg.ConversationID, idx); err != nil {
		return errorReply()
	}
	return restore([]Reply{{Text: fmt.Sprintf("%s: %s %s", verb, item.Quantity, item.Name)}})
}

// withReturnKeyboard appends the keyboard-restoring reply for the mode a
// resolved prompt hands back to, updating the session to match.
func (e *Engine) withReturnKeyboard(ctx context.Context, msg Message, returnTo session.Mode, replies []Reply) []Reply {
	switch returnTo {
	case session.ModeListManage:
		e.sessions.Set(msg.UserID, session.Session{Mode: session.ModeListManage})
		return append(replies, Reply{Text: ".", Keyboard: format.ListManagementKeyboard()})
	case session.ModeItemManage:
		e.sessions.Set(msg.UserID, session.Session{Mode: session.ModeItemManage})
		return append(replies, Reply{Text: ".", Keyboard: format.ItemManagementKeyboard()})
	}
	return append(replies, Reply{Text: ".", Keyboard: e.mainMenuKeyboard(ctx, msg.ConversationID)})
}

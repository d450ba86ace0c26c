package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"groceries-bot/internal/format"
	"groceries-bot/internal/models"
)

// HandleCallback dispatches an inline keyboard press. Replies carry
// Edit=true so the adapter rewrites the originating message in place.
func (e *Engine) HandleCallback(ctx context.Context, msg Message, data string) (replies []Reply) {
	defer e.recoverReplies(&replies)

	if err := e.registry.Ensure(ctx, msg.ConversationID, msg.ConversationTitle); err != nil {
		e.logger.Error("Failed to ensure conversation",
			zap.Error(err),
			zap.Int64("conv_id", msg.ConversationID))
	}

	e.logger.Debug("Handling callback",
		zap.String("data", data),
		zap.Int64("conv_id", msg.ConversationID))

	switch {
	case strings.HasPrefix(data, "done_"):
		return e.cbItemAction(ctx, msg, data, "done_", func(idx int) (bool, error) {
			return e.registry.MarkPurchasedAt(ctx, msg.ConversationID, idx)
		})
	case strings.HasPrefix(data, "remove_"):
		return e.cbItemAction(ctx, msg, data, "remove_", func(idx int) (bool, error) {
			return e.registry.RemoveItemAt(ctx, msg.ConversationID, idx)
		})
	case data == "clear_bought":
		return e.cbClearBought(ctx, msg)
	case data == "wipe_all":
		return e.cbWipeAll(ctx, msg)
	case data == "refresh":
		return e.cbRefresh(ctx, msg)
	case data == "show_lists":
		return e.cbShowLists(ctx, msg)
	case strings.HasPrefix(data, "switch_"):
		return e.cbSwitch(ctx, msg, strings.TrimPrefix(data, "switch_"))
	case data == "back_to_list":
		return e.cbBackToList(ctx, msg)
	case data == "new_list_prompt":
		return e.cbNewListPrompt()
	case data == "delete_list_prompt":
		return e.cbDeleteListPrompt(ctx, msg)
	case strings.HasPrefix(data, "confirm_delete_"):
		return e.cbConfirmDelete(ctx, msg, strings.TrimPrefix(data, "confirm_delete_"))
	}
	return []Reply{{Text: "❌ Unknown action.", Edit: true}}
}

// editedListView renders the active list with its inline keyboard as an
// in-place edit, with an optional prefix line.
func (e *Engine) editedListView(ctx context.Context, msg Message, prefix string) []Reply {
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	text := format.DisplayText(active)
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	return []Reply{{
		Text:     text,
		Markdown: true,
		Inline:   format.InteractiveKeyboard(active),
		Edit:     true,
	}}
}

// cbItemAction resolves a positional done_N / remove_N press. The index
// was valid when the keyboard was rendered; a concurrent change can leave
// it stale, in which case the store refuses and the view is rebuilt.
func (e *Engine) cbItemAction(ctx context.Context, msg Message, data, prefix string, apply func(int) (bool, error)) []Reply {
	idx, err := strconv.Atoi(strings.TrimPrefix(data, prefix))
	if err != nil {
		return []Reply{{Text: "❌ Unknown action.", Edit: true}}
	}

	ok, err := apply(idx)
	if err != nil {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	if !ok {
		return e.editedListView(ctx, msg, "❌ Item not found. The list may have changed.")
	}
	return e.editedListView(ctx, msg, "")
}

func (e *Engine) cbClearBought(ctx context.Context, msg Message) []Reply {
	count, err := e.registry.ClearPurchased(ctx, msg.ConversationID)
	if err != nil {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	if count == 0 {
		return e.editedListView(ctx, msg, "No bought items to clear.")
	}
	return e.editedListView(ctx, msg, fmt.Sprintf("🧹 Cleared %d bought items!", count))
}

func (e *Engine) cbWipeAll(ctx context.Context, msg Message) []Reply {
	count, err := e.registry.WipeAll(ctx, msg.ConversationID)
	if err != nil {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	return e.editedListView(ctx, msg,
		fmt.Sprintf("🧹 Wiped *%s* clean! (%d items removed)", format.EscapeMarkdown(active.Name), count))
}

// cbRefresh re-renders the view with a timestamp so the edit always
// differs from the previous message text.
func (e *Engine) cbRefresh(ctx context.Context, msg Message) []Reply {
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	text := format.DisplayText(active) + fmt.Sprintf("\n🔄 *Refreshed at %s*", time.Now().Format("15:04:05"))
	return []Reply{{
		Text:     text,
		Markdown: true,
		Inline:   format.InteractiveKeyboard(active),
		Edit:     true,
	}}
}

// listsInlineKeyboard builds the list navigation keyboard: one switch
// button per list sorted by id, management actions, and a back row.
func listsInlineKeyboard(lists []*models.ShoppingList, activeID string) [][]format.InlineButton {
	sorted := make([]*models.ShoppingList, len(lists))
	copy(sorted, lists)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ListID < sorted[j].ListID })

	var rows [][]format.InlineButton
	for _, list := range sorted {
		glyph := format.GlyphList
		if list.ListID == activeID {
			glyph = format.GlyphActive
		}
		rows = append(rows, []format.InlineButton{{
			Text: fmt.Sprintf("%s %s (%d)", glyph, list.Name, len(list.Items)),
			Data: "switch_" + list.ListID,
		}})
	}
	rows = append(rows, []format.InlineButton{
		{Text: "➕ New List", Data: "new_list_prompt"},
		{Text: "🗑️ Delete List", Data: "delete_list_prompt"},
	})
	rows = append(rows, []format.InlineButton{
		{Text: "🔙 Back to Current List", Data: "back_to_list"},
	})
	return rows
}

func (e *Engine) cbShowLists(ctx context.Context, msg Message) []Reply {
	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	return []Reply{{
		Text:     format.ListsSummary(lists, active.ListID, active.Name),
		Markdown: true,
		Inline:   listsInlineKeyboard(lists, active.ListID),
		Edit:     true,
	}}
}

func (e *Engine) cbSwitch(ctx context.Context, msg Message, listID string) []Reply {
	if err := e.registry.SetActiveList(ctx, msg.ConversationID, listID); err != nil {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	switched, err := e.registry.GetList(ctx, msg.ConversationID, listID)
	if err != nil {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	return []Reply{{
		Text:     fmt.Sprintf("🛒 Switched to *%s*!\n\n%s", format.EscapeMarkdown(switched.Name), format.DisplayText(switched)),
		Markdown: true,
		Inline:   format.InteractiveKeyboard(switched),
		Edit:     true,
	}}
}

func (e *Engine) cbBackToList(ctx context.Context, msg Message) []Reply {
	return e.editedListView(ctx, msg, "")
}

func (e *Engine) cbNewListPrompt() []Reply {
	text := `➕ *Create New List*

Use the command:
` + "`/new <list name>`" + `

Example: ` + "`/new Hardware Store`"
	return []Reply{{
		Text:     text,
		Markdown: true,
		Inline: [][]format.InlineButton{
			{{Text: "🔙 Back to Lists", Data: "show_lists"}},
		},
		Edit: true,
	}}
}

func (e *Engine) cbDeleteListPrompt(ctx context.Context, msg Message) []Reply {
	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	if len(lists) <= 1 {
		return []Reply{{
			Text: "❌ Cannot delete your only list! Create another list first.",
			Inline: [][]format.InlineButton{
				{{Text: "🔙 Back to Lists", Data: "show_lists"}},
			},
			Edit: true,
		}}
	}

	sorted := make([]*models.ShoppingList, len(lists))
	copy(sorted, lists)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ListID < sorted[j].ListID })

	var rows [][]format.InlineButton
	for _, list := range sorted {
		rows = append(rows, []format.InlineButton{{
			Text: fmt.Sprintf("🗑️ Delete %s", list.Name),
			Data: "confirm_delete_" + list.ListID,
		}})
	}
	rows = append(rows, []format.InlineButton{
		{Text: "🔙 Back to Lists", Data: "show_lists"},
	})
	return []Reply{{
		Text:     "⚠️ *Select a list to delete:*\n\nThis action cannot be undone!",
		Markdown: true,
		Inline:   rows,
		Edit:     true,
	}}
}

func (e *Engine) cbConfirmDelete(ctx context.Context, msg Message, listID string) []Reply {
	deleted, err := e.registry.DeleteList(ctx, msg.ConversationID, listID)
	if err != nil {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	if !deleted {
		return []Reply{{
			Text: "❌ Could not delete list.",
			Inline: [][]format.InlineButton{
				{{Text: "🔙 Back to Lists", Data: "show_lists"}},
			},
			Edit: true,
		}}
	}

	current, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return []Reply{{Text: "⚠️ An error occurred. Please try again.", Edit: true}}
	}
	return []Reply{{
		Text:     fmt.Sprintf("✅ Deleted list `%s`!\nNow using *%s*", listID, format.EscapeMarkdown(current.Name)),
		Markdown: true,
		Inline: [][]format.InlineButton{
			{{Text: "📋 Show Lists", Data: "show_lists"}},
			{{Text: "🔙 Back to Current List", Data: "back_to_list"}},
		},
		Edit: true,
	}}
}

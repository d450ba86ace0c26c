package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"groceries-bot/internal/format"
	"groceries-bot/internal/registry"
)

// HandleCommand dispatches a slash command. cmd is the bare command name
// and args its whitespace-split arguments.
func (e *Engine) HandleCommand(ctx context.Context, msg Message, cmd string, args []string) (replies []Reply) {
	defer e.recoverReplies(&replies)

	if err := e.registry.Ensure(ctx, msg.ConversationID, msg.ConversationTitle); err != nil {
		e.logger.Error("Failed to ensure conversation",
			zap.Error(err),
			zap.Int64("conv_id", msg.ConversationID))
	}

	e.logger.Info("Handling command",
		zap.String("command", cmd),
		zap.Int64("conv_id", msg.ConversationID),
		zap.Int64("user_id", msg.UserID))

	switch cmd {
	case "start":
		return e.cmdStart(ctx, msg)
	case "help":
		return e.help(ctx, msg)
	case "add":
		return e.cmdAdd(ctx, msg, args)
	case "remove":
		return e.cmdRemove(ctx, msg, args)
	case "done":
		return e.cmdDone(ctx, msg, args)
	case "list":
		return e.cmdList(ctx, msg)
	case "lists":
		return e.cmdLists(ctx, msg)
	case "new":
		return e.cmdNew(ctx, msg, args)
	case "go":
		return e.cmdGo(ctx, msg, args)
	case "delete":
		return e.cmdDelete(ctx, msg, args)
	case "clear":
		return e.cmdClear(ctx, msg)
	case "wipe":
		return e.cmdWipe(ctx, msg)
	case "backup":
		return e.cmdBackup(ctx, msg)
	case "stats":
		return e.cmdStats(ctx, msg)
	}
	return []Reply{{Text: "Unknown command. Use /help to see available commands."}}
}

func (e *Engine) cmdStart(ctx context.Context, msg Message) []Reply {
	text := `🛒 Hi! I'm your grocery list bot.

Use the menu buttons below, or just type an item name to add it to your list.

Type /help for the full command list.`
	return []Reply{{Text: text, Keyboard: e.mainMenuKeyboard(ctx, msg.ConversationID)}}
}

func (e *Engine) cmdAdd(ctx context.Context, msg Message, args []string) []Reply {
	if len(args) == 0 {
		return []Reply{{Text: "Usage: /add <item> [quantity]\nExample: /add milk 2"}}
	}

	name, quantity := format.ParseItemArgs(args)
	if err := e.registry.AddItem(ctx, msg.ConversationID, name, quantity, msg.UserName); err != nil {
		return errorReply()
	}

	text := fmt.Sprintf("✅ Added %s %s to the shopping list!", quantity, name)
	if aisle := e.suggestAisle(ctx, name); aisle != "" {
		text += fmt.Sprintf("\n🏷 Aisle: %s", aisle)
	}
	return []Reply{{Text: text}}
}

func (e *Engine) cmdRemove(ctx context.Context, msg Message, args []string) []Reply {
	if len(args) == 0 {
		return []Reply{{Text: "Usage: /remove <item number>\nUse /list to see item numbers."}}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return []Reply{{Text: "❌ Please provide a valid number."}}
	}

	removed, err := e.registry.RemoveItemAt(ctx, msg.ConversationID, n-1)
	if err != nil {
		return errorReply()
	}
	if !removed {
		return []Reply{{Text: "❌ Invalid item number."}}
	}
	return []Reply{{Text: "✅ Item removed from the shopping list!"}}
}

func (e *Engine) cmdDone(ctx context.Context, msg Message, args []string) []Reply {
	if len(args) == 0 {
		return []Reply{{Text: "Usage: /done <item number>\nUse /list to see item numbers."}}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return []Reply{{Text: "❌ Please provide a valid number."}}
	}

	marked, err := e.registry.MarkPurchasedAt(ctx, msg.ConversationID, n-1)
	if err != nil {
		return errorReply()
	}
	if !marked {
		return []Reply{{Text: "❌ Invalid item number."}}
	}
	return []Reply{{Text: "✅ Item marked as purchased!"}}
}

func (e *Engine) cmdList(ctx context.Context, msg Message) []Reply {
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	return []Reply{{
		Text:     format.DisplayText(active),
		Markdown: true,
		Inline:   format.InteractiveKeyboard(active),
	}}
}

func (e *Engine) cmdLists(ctx context.Context, msg Message) []Reply {
	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		return errorReply()
	}
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	return []Reply{{
		Text:     format.ListsSummary(lists, active.ListID, active.Name),
		Markdown: true,
	}}
}

func (e *Engine) cmdNew(ctx context.Context, msg Message, args []string) []Reply {
	if len(args) == 0 {
		return []Reply{{Text: "Usage: /new <list name>\nExample: /new Hardware Store"}}
	}
	name := strings.Join(args, " ")

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
	return []Reply{{
		Text:     fmt.Sprintf("✅ Created and switched to *%s*!\nStart adding items with /add", format.EscapeMarkdown(created.Name)),
		Markdown: true,
	}}
}

func (e *Engine) cmdGo(ctx context.Context, msg Message, args []string) []Reply {
	if len(args) == 0 {
		lists, err := e.registry.Lists(ctx, msg.ConversationID)
		if err != nil {
			return errorReply()
		}
		active, ok := e.activeList(ctx, msg.ConversationID)
		if !ok {
			return errorReply()
		}
		text := format.ListsSummary(lists, active.ListID, active.Name) + "\n\nUsage: /go <list name>"
		return []Reply{{Text: text, Markdown: true}}
	}

	listID := registry.ListID(strings.Join(args, " "))
	lists, err := e.registry.Lists(ctx, msg.ConversationID)
	if err != nil {
		return errorReply()
	}
	for _, list := range lists {
		if list.ListID == listID {
			if err := e.registry.SetActiveList(ctx, msg.ConversationID, listID); err != nil {
				return errorReply()
			}
			return []Reply{{
				Text:     fmt.Sprintf("🛒 Now shopping at *%s*!", format.EscapeMarkdown(list.Name)),
				Markdown: true,
			}}
		}
	}
	return []Reply{{
		Text:     fmt.Sprintf("❌ List `%s` not found.\nUse /lists to see your lists or /new to create one.", listID),
		Markdown: true,
	}}
}

func (e *Engine) cmdDelete(ctx context.Context, msg Message, args []string) []Reply {
	if len(args) == 0 {
		return []Reply{{Text: "Usage: /delete <list name>\nUse /lists to see your lists."}}
	}

	listID := registry.ListID(strings.Join(args, " "))
	deleted, err := e.registry.DeleteList(ctx, msg.ConversationID, listID)
	if err != nil {
		return errorReply()
	}
	if !deleted {
		lists, lerr := e.registry.Lists(ctx, msg.ConversationID)
		if lerr == nil && len(lists) <= 1 {
			return []Reply{{Text: "❌ Cannot delete your only list! Create another list first."}}
		}
		return []Reply{{
			Text:     fmt.Sprintf("❌ List `%s` not found. Use /lists to see your lists.", listID),
			Markdown: true,
		}}
	}

	current, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	return []Reply{{
		Text:     fmt.Sprintf("✅ Deleted list `%s`!\nNow using *%s*", listID, format.EscapeMarkdown(current.Name)),
		Markdown: true,
	}}
}

func (e *Engine) cmdClear(ctx context.Context, msg Message) []Reply {
	count, err := e.registry.ClearPurchased(ctx, msg.ConversationID)
	if err != nil {
		return errorReply()
	}
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}
	if count == 0 {
		return []Reply{{
			Text:     fmt.Sprintf("No bought items to clear in *%s*.", format.EscapeMarkdown(active.Name)),
			Markdown: true,
		}}
	}
	return []Reply{{
		Text:     fmt.Sprintf("🧹 Cleared %d bought items from *%s*!", count, format.EscapeMarkdown(active.Name)),
		Markdown: true,
	}}
}

func (e *Engine) cmdWipe(ctx context.Context, msg Message) []Reply {
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
			Text:     fmt.Sprintf("*%s* is already empty.", format.EscapeMarkdown(active.Name)),
			Markdown: true,
		}}
	}
	return []Reply{{
		Text:     fmt.Sprintf("🧹 Wiped *%s* clean! (%d items removed)", format.EscapeMarkdown(active.Name), count),
		Markdown: true,
	}}
}

func (e *Engine) cmdBackup(ctx context.Context, msg Message) []Reply {
	if !msg.Private {
		return []Reply{{Text: "❌ Backup command only available in private chat."}}
	}

	if err := os.MkdirAll(e.cfg.BackupDir, 0o755); err != nil {
		e.logger.Error("Failed to create backup dir", zap.Error(err), zap.String("dir", e.cfg.BackupDir))
		return []Reply{{Text: "❌ Failed to create backup."}}
	}
	name := fmt.Sprintf("groceries_backup_%s_%s.db",
		time.Now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(e.cfg.BackupDir, name)

	if err := e.registry.Backup(ctx, path); err != nil {
		e.logger.Error("Backup failed", zap.Error(err), zap.String("path", path))
		return []Reply{{Text: "❌ Failed to create backup."}}
	}
	return []Reply{{
		Text:     fmt.Sprintf("✅ Backup created successfully!\nFile: `%s`", path),
		Markdown: true,
	}}
}

func (e *Engine) cmdStats(ctx context.Context, msg Message) []Reply {
	if !msg.Private {
		return []Reply{{Text: "❌ Stats command only available in private chat."}}
	}

	stats, err := e.registry.Stats(ctx)
	if err != nil {
		return errorReply()
	}
	text := fmt.Sprintf(`📊 *Bot Statistics*

👥 Conversations: %d
📋 Lists: %d
📝 Items: %d
✅ Purchased: %d`,
		stats.Conversations, stats.Lists, stats.Items, stats.PurchasedItems)
	return []Reply{{Text: text, Markdown: true}}
}

// Package engine is the conversation state machine: it interprets inbound
// text, button presses and commands against the user's current mode and
// dispatches to the list registry. It is transport-agnostic; every handler
// returns the replies to emit and the surrounding adapter decides how to
// deliver them.
package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"groceries-bot/internal/format"
	"groceries-bot/internal/models"
	"groceries-bot/internal/registry"
	"groceries-bot/internal/session"
)

// Reply is one outbound message. At most one of Keyboard, Inline and
// ForceReply is set. Edit marks a callback response that should replace
// the originating message instead of sending a new one.
type Reply struct {
	Text        string
	Markdown    bool
	Keyboard    [][]string
	OneTime     bool
	Placeholder string
	Inline      [][]format.InlineButton
	ForceReply  bool
	Edit        bool
}

// Message is an inbound event addressed to (conversation, user).
type Message struct {
	ConversationID    int64
	ConversationTitle string
	UserID            int64
	UserName          string
	Private           bool
	Text              string
}

// Categorizer suggests a store aisle for an item name. Optional; a nil
// Categorizer disables suggestions.
type Categorizer interface {
	Suggest(ctx context.Context, itemName string) (string, error)
}

type Config struct {
	// MaxShoppingItems is the item-count ceiling above which Shopping
	// Mode refuses to render a keyboard.
	MaxShoppingItems int
	// ButtonsPerRow batches shopping-mode item buttons.
	ButtonsPerRow int
	// BackupDir receives /backup snapshots.
	BackupDir string
}

type Engine struct {
	registry    *registry.Registry
	sessions    *session.Manager
	categorizer Categorizer
	logger      *zap.Logger
	cfg         Config
}

func New(reg *registry.Registry, sessions *session.Manager, categorizer Categorizer, cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxShoppingItems <= 0 {
		cfg.MaxShoppingItems = 100
	}
	if cfg.ButtonsPerRow <= 0 {
		cfg.ButtonsPerRow = 3
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = "backups"
	}
	return &Engine{
		registry:    reg,
		sessions:    sessions,
		categorizer: categorizer,
		logger:      logger,
		cfg:         cfg,
	}
}

func errorReply() []Reply {
	return []Reply{{Text: "⚠️ An error occurred. Please try again."}}
}

// recoverReplies converts a panic during dispatch into the generic error
// response, leaving state as of the last successful mutation.
func (e *Engine) recoverReplies(replies *[]Reply) {
	if r := recover(); r != nil {
		e.logger.Error("Recovered from panic in dispatch", zap.Any("panic", r))
		*replies = errorReply()
	}
}

// HandleText dispatches a plain text message or reply-keyboard button
// press. Rules apply in priority order: the main-menu reset always wins,
// then mode-entry buttons, then any pending single-shot prompt, then the
// current mode's button set, and finally the implicit "add item" fallback.
func (e *Engine) HandleText(ctx context.Context, msg Message) (replies []Reply) {
	defer e.recoverReplies(&replies)

	if err := e.registry.Ensure(ctx, msg.ConversationID, msg.ConversationTitle); err != nil {
		e.logger.Error("Failed to ensure conversation",
			zap.Error(err),
			zap.Int64("conv_id", msg.ConversationID))
	}

	text := strings.TrimSpace(msg.Text)
	sess := e.sessions.Get(msg.UserID)

	e.logger.Debug("Dispatching text",
		zap.Int64("conv_id", msg.ConversationID),
		zap.Int64("user_id", msg.UserID),
		zap.Int("mode", int(sess.Mode)),
		zap.Int("awaiting", int(sess.Awaiting)))

	switch {
	case text == format.BtnBackToMain:
		e.sessions.Reset(msg.UserID)
		return []Reply{{Text: ".", Keyboard: e.mainMenuKeyboard(ctx, msg.ConversationID)}}

	case text == format.BtnListManagement:
		e.sessions.Set(msg.UserID, session.Session{Mode: session.ModeListManage})
		return e.enterListMode(ctx, msg)

	case strings.HasPrefix(text, format.BtnEditPrefix):
		e.sessions.Set(msg.UserID, session.Session{Mode: session.ModeItemManage})
		return e.enterItemMode(ctx, msg)

	case text == format.BtnShoppingMode:
		e.sessions.Reset(msg.UserID)
		return e.enterShoppingMode(ctx, msg)

	case text == format.BtnHelp:
		e.sessions.Reset(msg.UserID)
		return e.help(ctx, msg)
	}

	if sess.Awaiting != session.AwaitNone {
		// Consume the single-shot expectation before resolving, so a
		// resolver that itself prompts cannot re-trigger this branch.
		e.sessions.Reset(msg.UserID)
		return e.resolveAwaiting(ctx, msg, sess, text)
	}

	switch sess.Mode {
	case session.ModeListManage:
		return e.listModeAction(ctx, msg, text)
	case session.ModeItemManage:
		return e.itemModeAction(ctx, msg, text)
	case session.ModeShopping:
		return e.shoppingModeAction(ctx, msg, text)
	}

	return e.addItemFromText(ctx, msg, text, session.ModeMain, false)
}

func (e *Engine) resolveAwaiting(ctx context.Context, msg Message, sess session.Session, text string) []Reply {
	switch sess.Awaiting {
	case session.AwaitItemText:
		return e.addItemFromText(ctx, msg, text, sess.ReturnTo, false)
	case session.AwaitListName:
		return e.createListFromText(ctx, msg, text, sess.ReturnTo)
	case session.AwaitListSwitch:
		return e.switchToList(ctx, msg, text, sess.ReturnTo)
	case session.AwaitListDelete:
		return e.deleteListFromText(ctx, msg, text, sess.ReturnTo)
	case session.AwaitMarkDone:
		return e.resolveItemSelection(ctx, msg, text, format.BtnCancelMarkDone, "✅ Done")
	case session.AwaitRemove:
		return e.resolveItemSelection(ctx, msg, text, format.BtnCancelRemove, "🗑️ Removed")
	}
	return nil
}

// mainMenuKeyboard builds the top-level keyboard labeled with the current
// active list.
func (e *Engine) mainMenuKeyboard(ctx context.Context, convID int64) [][]string {
	name := "Groceries"
	if active, err := e.registry.GetActiveList(ctx, convID); err == nil {
		name = active.Name
	}
	return format.MainMenuKeyboard(name)
}

func (e *Engine) activeList(ctx context.Context, convID int64) (*models.ShoppingList, bool) {
	active, err := e.registry.GetActiveList(ctx, convID)
	if err != nil {
		e.logger.Error("Failed to load active list",
			zap.Error(err),
			zap.Int64("conv_id", convID))
		return nil, false
	}
	return active, true
}

func (e *Engine) help(ctx context.Context, msg Message) []Reply {
	active, ok := e.activeList(ctx, msg.ConversationID)
	if !ok {
		return errorReply()
	}

	help := `🛒 *Grocery Bot Help*

*Current List:* ` + format.EscapeMarkdown(active.Name) + " (`" + active.ListID + "`)" + `

*Main Menu Modes:*
📋 List Management - Create, switch, and delete lists
✏️ Edit Current List - Add, remove, and mark items as done
🛒 Shopping Mode - Easy tap-to-complete interface for shopping

*📋 List Management Mode:*
• Show Current List - Display your active list
• Create New List - Make a new shopping list
• Switch Lists - Change between your lists
• Delete List - Remove lists permanently

*✏️ Edit Current List Mode:*
• Add Item - Add new items to your list
• Show List - Display current list items
• Mark Done - Complete items with buttons
• Remove Item - Remove items with buttons
• Wipe All - Remove all items from the list

*🛒 Shopping Mode:*
• Tap any item to remove it from the list
• Add items while shopping
• Auto-exits when all items are done

*Commands:*
/add - Add item to current list
/list - Show current list
/done - Mark item as bought
/remove - Remove item
/new - Create new list
/go - Switch to different list

*Adding Items:*
Just type the item name! Examples:
• ` + "`milk`" + ` (adds 1 milk)
• ` + "`2 bread`" + ` (adds 2 bread)`

	return []Reply{{
		Text:     help,
		Markdown: true,
		Keyboard: format.MainMenuKeyboard(active.Name),
	}}
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tasklist/internal/config"
	"tasklist/internal/model"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageAddTitle
	stageEditTitle
)

const (
	cbTogglePrefix  = "toggle:"
	cbEditPrefix    = "edit:"
	cbDeletePrefix  = "delete:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
	cbFilterPrefix  = "filter:"
)

type conversationState struct {
	stage  conversationStage
	taskID string
}

// TaskStore is the part of the task store the chat UI drives.
type TaskStore interface {
	Tasks() []model.Task
	Task(id string) (model.Task, bool)
	AddTask(title string) (model.Task, bool)
	ToggleTask(id string) (model.Task, bool)
	EditTask(id, title string) (model.Task, bool)
	DeleteTask(id string) bool
}

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot connects the Telegram API with the task store.
type Bot struct {
	api           botAPI
	store         TaskStore
	config        *config.Config
	now           func() time.Time
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, store TaskStore, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return newBot(api, store, cfg), nil
}

func newBot(api botAPI, store TaskStore, cfg *config.Config) *Bot {
	return &Bot{
		api:           api,
		store:         store,
		config:        cfg,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !b.config.IsAllowed(msg.From.ID) {
		log.Printf("[info] rejected message from %d", msg.From.ID)
		return b.sendPlain(msg.Chat.ID, "This bot is private.")
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	state := b.getConversation(msg.From.ID)
	// An open edit prompt takes any reply as the new title, menu labels included.
	if state == nil || state.stage != stageEditTitle {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if state != nil {
		log.Printf("[info] conversation step %d from %d", state.stage, msg.From.ID)
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "I did not understand that. Send /add to create a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	// Any command ends a pending prompt.
	b.clearConversation(msg.From.ID)

	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "tasks":
		return b.sendTaskList(msg.Chat.ID)
	case "view":
		return b.handleView(msg)
	case "done":
		return b.handleDone(msg)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "delete":
		return b.handleDelete(msg)
	case "cancel":
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your personal task list.</b>\n\n%s", escape(name), commandList)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Commands</b>\n"+commandList)
}

const commandList = "• /add &lt;title&gt; — add a task\n" +
	"• /tasks — numbered list with buttons\n" +
	"• /view [all|active|completed] — tasks grouped by date\n" +
	"• /done &lt;n&gt; — toggle task number n\n" +
	"• /edit &lt;n&gt; [title] — rename task number n\n" +
	"• /delete &lt;n&gt; — delete task number n\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	title := strings.TrimSpace(msg.CommandArguments())
	if title == "" {
		return b.startAddConversation(msg)
	}
	return b.addTask(ctx, msg.Chat.ID, title)
}

func (b *Bot) startAddConversation(msg *tgbotapi.Message) error {
	log.Printf("[info] start add conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageAddTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 What needs to be done?", cancelKeyboard())
}

func (b *Bot) addTask(_ context.Context, chatID int64, title string) error {
	task, ok := b.store.AddTask(title)
	if !ok {
		return b.sendWithReplyMarkup(chatID, "The title is empty. What needs to be done?", cancelKeyboard())
	}
	log.Printf("[info] task added id=%s", task.ID)
	if err := b.sendText(chatID, fmt.Sprintf("✅ Added «%s».", escape(displayTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	switch state.stage {
	case stageAddTitle:
		title := strings.TrimSpace(msg.Text)
		if title == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title is empty. What needs to be done?", cancelKeyboard())
		}
		b.clearConversation(msg.From.ID)
		return b.addTask(ctx, msg.Chat.ID, title)
	case stageEditTitle:
		title, ok := messageText(msg)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Send the new title as text.", cancelKeyboard())
		}
		b.clearConversation(msg.From.ID)
		return b.editTask(msg.Chat.ID, state.taskID, title)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Try again with /add.")
	}
}

// messageText returns the text or caption of msg. Stickers, voice notes and
// other media without a caption carry none.
func messageText(msg *tgbotapi.Message) (string, bool) {
	switch {
	case msg.Text != "":
		return msg.Text, true
	case msg.Caption != "":
		return msg.Caption, true
	default:
		return "", false
	}
}

func (b *Bot) handleView(msg *tgbotapi.Message) error {
	filter, err := model.ParseFilter(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Use /view all, /view active or /view completed.")
	}
	return b.sendView(msg.Chat.ID, filter)
}

func (b *Bot) handleDone(msg *tgbotapi.Message) error {
	task, problem := b.taskAt(msg.CommandArguments())
	if problem != "" {
		return b.sendText(msg.Chat.ID, problem)
	}
	return b.toggleTask(msg.Chat.ID, task.ID)
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	position, title, hasTitle := strings.Cut(args, " ")

	task, problem := b.taskAt(position)
	if problem != "" {
		return b.sendText(msg.Chat.ID, problem)
	}
	if hasTitle {
		return b.editTask(msg.Chat.ID, task.ID, title)
	}
	return b.startEditConversation(msg.Chat.ID, msg.From.ID, task)
}

func (b *Bot) startEditConversation(chatID, userID int64, task model.Task) error {
	log.Printf("[info] start edit conversation user=%d task=%s", userID, task.ID)
	b.setConversation(userID, &conversationState{stage: stageEditTitle, taskID: task.ID})
	text := fmt.Sprintf("✏️ Current title: «%s»\nSend the new title.", escape(displayTitle(task.Title)))
	return b.sendWithReplyMarkup(chatID, text, cancelKeyboard())
}

// editTask trims the new title but stores it even when empty.
func (b *Bot) editTask(chatID int64, id, title string) error {
	task, ok := b.store.EditTask(id, strings.TrimSpace(title))
	if !ok {
		return b.sendText(chatID, "Task not found or already deleted.")
	}
	log.Printf("[info] task edited id=%s", task.ID)
	if err := b.sendText(chatID, fmt.Sprintf("✏️ Renamed to «%s».", escape(displayTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

func (b *Bot) toggleTask(chatID int64, id string) error {
	task, ok := b.store.ToggleTask(id)
	if !ok {
		return b.sendText(chatID, "Task not found or already deleted.")
	}
	log.Printf("[info] task toggled id=%s done=%t", task.ID, task.Done)
	if task.Done {
		return b.sendText(chatID, fmt.Sprintf("✅ «%s» is done.", escape(displayTitle(task.Title))))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ «%s» is active again.", escape(displayTitle(task.Title))))
}

func (b *Bot) handleDelete(msg *tgbotapi.Message) error {
	task, problem := b.taskAt(msg.CommandArguments())
	if problem != "" {
		return b.sendText(msg.Chat.ID, problem)
	}
	return b.askDeleteConfirmation(msg.Chat.ID, task.ID)
}

func (b *Bot) askDeleteConfirmation(chatID int64, id string) error {
	task, ok := b.store.Task(id)
	if !ok {
		return b.sendText(chatID, "Task not found.")
	}
	text := fmt.Sprintf("Delete «%s»?", escape(displayTitle(task.Title)))
	return b.sendWithReplyMarkup(chatID, text, confirmDeleteKeyboard(task.ID))
}

func (b *Bot) handleCallback(_ context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	if !b.config.IsAllowed(cb.From.ID) {
		b.ackCallback(cb.ID, "This bot is private.")
		return nil
	}

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	data := cb.Data
	log.Printf("[info] callback user=%d data=%s", cb.From.ID, data)

	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		task, ok := b.store.ToggleTask(strings.TrimPrefix(data, cbTogglePrefix))
		if !ok {
			b.ackCallback(cb.ID, "Task not found.")
			return nil
		}
		if task.Done {
			b.ackCallback(cb.ID, "Done")
		} else {
			b.ackCallback(cb.ID, "Active")
		}
		return b.editTaskList(chatID, messageID)
	case strings.HasPrefix(data, cbEditPrefix):
		b.ackCallback(cb.ID, "")
		task, ok := b.store.Task(strings.TrimPrefix(data, cbEditPrefix))
		if !ok {
			return b.sendText(chatID, "Task not found.")
		}
		return b.startEditConversation(chatID, cb.From.ID, task)
	case strings.HasPrefix(data, cbDeletePrefix):
		b.ackCallback(cb.ID, "")
		return b.askDeleteConfirmation(chatID, strings.TrimPrefix(data, cbDeletePrefix))
	case strings.HasPrefix(data, cbConfirmPrefix):
		id := strings.TrimPrefix(data, cbConfirmPrefix)
		task, found := b.store.Task(id)
		b.store.DeleteTask(id)
		b.ackCallback(cb.ID, "")
		if !found {
			return b.editText(chatID, messageID, "Task not found or already deleted.")
		}
		log.Printf("[info] task deleted id=%s", id)
		if err := b.editText(chatID, messageID, fmt.Sprintf("🗑 Deleted «%s».", escape(displayTitle(task.Title)))); err != nil {
			return err
		}
		return b.sendTaskList(chatID)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.ackCallback(cb.ID, "")
		return b.editText(chatID, messageID, "Deletion cancelled.")
	case strings.HasPrefix(data, cbFilterPrefix):
		filter, err := model.ParseFilter(strings.TrimPrefix(data, cbFilterPrefix))
		if err != nil {
			b.ackCallback(cb.ID, "")
			return nil
		}
		b.ackCallback(cb.ID, filter.Label())
		return b.editView(chatID, messageID, filter)
	default:
		b.ackCallback(cb.ID, "")
		return nil
	}
}

// taskAt resolves a 1-based position in the flat list. On failure it
// returns the reply for the user.
func (b *Bot) taskAt(arg string) (model.Task, string) {
	raw := strings.TrimSpace(arg)
	if raw == "" {
		return model.Task{}, "Give the task number from /tasks, for example 2."
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return model.Task{}, "The task number must be a positive number."
	}
	tasks := b.store.Tasks()
	if n > len(tasks) {
		return model.Task{}, "Task not found."
	}
	return tasks[n-1], ""
}

func (b *Bot) handleMenuAlias(_ context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startAddConversation(msg)
	case strings.ToLower(menuLabelTasks):
		b.clearConversation(msg.From.ID)
		return true, b.sendTaskList(msg.Chat.ID)
	case strings.ToLower(menuLabelView):
		b.clearConversation(msg.From.ID)
		return true, b.sendView(msg.Chat.ID, model.FilterAll)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) sendTaskList(chatID int64) error {
	text, markup := renderTaskList(b.store.Tasks())
	if markup == nil {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, *markup)
}

func (b *Bot) editTaskList(chatID int64, messageID int) error {
	text, markup := renderTaskList(b.store.Tasks())
	if markup == nil {
		return b.editText(chatID, messageID, text)
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) sendView(chatID int64, filter model.Filter) error {
	text := renderView(b.store.Tasks(), filter, b.localNow())
	return b.sendWithReplyMarkup(chatID, text, filterKeyboard(filter))
}

func (b *Bot) editView(chatID int64, messageID int, filter model.Filter) error {
	text := renderView(b.store.Tasks(), filter, b.localNow())
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, filterKeyboard(filter))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil && !isNotModified(err) {
		return err
	}
	return nil
}

// isNotModified matches Telegram's rejection of an edit that changes nothing,
// which happens when the selected filter is tapped again.
func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}

func (b *Bot) localNow() time.Time {
	if b.config.Location == nil {
		return b.now()
	}
	return b.now().In(b.config.Location)
}

func (b *Bot) ackCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		log.Printf("callback ack: %v", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendPlain(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) editText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

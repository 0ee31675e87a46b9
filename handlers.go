package main

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sshbot/internal/auth"
)

// callbackQuery is the part of a button press the routes need.
type callbackQuery struct {
	id     string
	data   string
	userID int64
	chatID int64
	msgID  int
}

func callbackCaller(cb callbackQuery) auth.Caller {
	return auth.Caller{UserID: cb.userID, ChatID: cb.chatID, CallbackID: cb.id}
}

func messageCaller(msg *tgbotapi.Message) auth.Caller {
	return auth.Caller{UserID: msg.From.ID, ChatID: msg.Chat.ID}
}

// Router dispatches updates. Every entry point is wrapped by the gate when it
// is registered.
type Router struct {
	app      *AppContext
	bot      BotAPI
	commands *CommandRegistry

	callbacks       map[string]func(context.Context, callbackQuery)
	unknownCallback func(context.Context, callbackQuery)
	onMessage       func(context.Context, *tgbotapi.Message)
}

func NewRouter(app *AppContext, bot BotAPI) *Router {
	r := &Router{
		app:       app,
		bot:       bot,
		commands:  SetupCommandRegistry(),
		callbacks: make(map[string]func(context.Context, callbackQuery)),
	}
	r.onMessage = auth.Wrap(app.Gate, messageCaller, r.dispatchMessage)
	r.unknownCallback = auth.Wrap(app.Gate, callbackCaller, r.ack)
	r.registerCallbackRoutes()
	return r
}

// route registers a gated button handler. The press is acknowledged before h
// runs so the client stops its spinner.
func (r *Router) route(data string, h func(context.Context, callbackQuery)) {
	r.callbacks[data] = auth.Wrap(r.app.Gate, callbackCaller, func(rc context.Context, cb callbackQuery) {
		r.ack(rc, cb)
		h(rc, cb)
	})
}

func (r *Router) ack(_ context.Context, cb callbackQuery) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(cb.id, "")); err != nil {
		slog.Warn("Callback ack failed", "data", cb.data, "err", err)
	}
}

// HandleUpdate processes one update; it runs on its own goroutine.
func (r *Router) HandleUpdate(rc context.Context, update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Panic recovered in update handler", "update_id", update.UpdateID, "err", rec, "stack", string(debug.Stack()))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		r.handleCallback(rc, update.CallbackQuery)
	case update.Message != nil:
		r.handleMessage(rc, update.Message)
	}
}

func (r *Router) handleCallback(rc context.Context, query *tgbotapi.CallbackQuery) {
	if query == nil || query.Message == nil || query.Message.Chat == nil || query.From == nil {
		return
	}
	cb := callbackQuery{
		id:     query.ID,
		data:   query.Data,
		userID: query.From.ID,
		chatID: query.Message.Chat.ID,
		msgID:  query.Message.MessageID,
	}
	h, ok := r.callbacks[cb.data]
	if !ok {
		slog.Warn("Unknown callback", "data", cb.data)
		h = r.unknownCallback
	}
	h(rc, cb)
}

func (r *Router) handleMessage(rc context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	r.onMessage(rc, msg)
}

func (r *Router) dispatchMessage(rc context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		if r.commands.Execute(rc, r.app, r.bot, msg) {
			return
		}
		sendMarkdown(r.bot, msg.Chat.ID, "Unknown command. Send /help for the list.", nil)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	handleFlowInput(rc, r.app, r.bot, msg)
}

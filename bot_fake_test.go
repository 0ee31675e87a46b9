package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sshbot/internal/remote/remotetest"
)

const (
	testAdminID = int64(1)
	testHost    = "srv.example"
)

var errTestUnreachable = errors.New("dial tcp: connection refused")

type sentDocument struct {
	chatID  int64
	caption string
	content string
}

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	docs     []sentDocument
	nextID   int
	sendErr  func(tgbotapi.Chattable) error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	if doc, ok := c.(tgbotapi.DocumentConfig); ok {
		if path, ok := doc.File.(tgbotapi.FilePath); ok {
			data, _ := os.ReadFile(string(path))
			b.docs = append(b.docs, sentDocument{chatID: doc.ChatID, caption: doc.Caption, content: string(data)})
		}
	}
	if b.sendErr != nil {
		if err := b.sendErr(c); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	b.nextID++
	return tgbotapi.Message{MessageID: b.nextID, Chat: &tgbotapi.Chat{ID: testAdminID}}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts returns the text of every sent message and edit, in order.
func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (b *fakeBot) lastText() string {
	texts := b.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (b *fakeBot) lastSent() tgbotapi.Chattable {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return nil
	}
	return b.sent[len(b.sent)-1]
}

func (b *fakeBot) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
	b.requests = nil
	b.docs = nil
}

func hasButton(markup interface{}, data string) bool {
	var kb tgbotapi.InlineKeyboardMarkup
	switch m := markup.(type) {
	case tgbotapi.InlineKeyboardMarkup:
		kb = m
	case *tgbotapi.InlineKeyboardMarkup:
		if m == nil {
			return false
		}
		kb = *m
	default:
		return false
	}
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil && *btn.CallbackData == data {
				return true
			}
		}
	}
	return false
}

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		BotToken:    "test-token",
		AdminUserID: testAdminID,
		SSH: SSHConfig{
			Host:           testHost,
			Port:           22,
			User:           "root",
			KeyPath:        "/nonexistent",
			ConnectTimeout: time.Second,
			CommandTimeout: time.Second,
		},
		CPUThreshold:         90,
		RAMThreshold:         90,
		DiskThreshold:        95,
		AlertRecoveryNotify:  true,
		DashboardInterval:    10 * time.Second,
		AlertInterval:        10 * time.Minute,
		AvailabilityInterval: 2 * time.Minute,
		LogFile:              "bot.log",
		LogMaxSizeMB:         5,
		LogBackups:           5,
		LogTempDir:           t.TempDir(),
	}
}

func newTestAppContext(t *testing.T, bot BotAPI, exec *remotetest.Executor) *AppContext {
	t.Helper()
	return InitApp(context.Background(), newTestConfig(t), bot, exec, nil)
}

type harness struct {
	t      *testing.T
	bot    *fakeBot
	exec   *remotetest.Executor
	app    *AppContext
	router *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bot := &fakeBot{}
	exec := remotetest.New()
	app := newTestAppContext(t, bot, exec)
	return &harness{t: t, bot: bot, exec: exec, app: app, router: NewRouter(app, bot)}
}

func (h *harness) command(userID int64, text string) {
	cmd := strings.Fields(text)[0]
	h.router.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 50,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}})
}

func (h *harness) text(userID int64, text string) {
	h.router.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 51,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}})
}

func (h *harness) press(userID int64, data string) {
	h.router.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		Data:    data,
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 100, Chat: &tgbotapi.Chat{ID: userID}},
	}})
}

// testContext stands in for t.Context (Go 1.24+): a context cancelled when
// the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

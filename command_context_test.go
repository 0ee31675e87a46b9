package main

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type testCmd struct {
	called bool
	args   string
}

func (t *testCmd) Execute(_ context.Context, _ *AppContext, _ BotAPI, _ *tgbotapi.Message, args string) {
	t.called = true
	t.args = args
}

func (t *testCmd) Description() string { return "test" }

func TestCommandRegistryExecute(t *testing.T) {
	r := NewCommandRegistry()
	cmd := &testCmd{}
	r.Register("ping", cmd)

	msg := &tgbotapi.Message{
		Text: "/ping hello",
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: 5},
		},
	}

	if ok := r.Execute(context.Background(), nil, nil, msg); !ok {
		t.Fatalf("Execute returned false for registered command")
	}
	if !cmd.called {
		t.Fatalf("Execute did not call command")
	}
	if cmd.args != "hello" {
		t.Fatalf("Command args = %q, want %q", cmd.args, "hello")
	}
}

func TestCommandRegistryExecuteUnknown(t *testing.T) {
	r := NewCommandRegistry()
	msg := &tgbotapi.Message{
		Text: "/unknown",
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: 8},
		},
	}

	if ok := r.Execute(context.Background(), nil, nil, msg); ok {
		t.Fatalf("Execute returned true for unknown command")
	}
}

func TestCommandRegistryExecuteNil(t *testing.T) {
	r := NewCommandRegistry()
	if ok := r.Execute(context.Background(), nil, nil, nil); ok {
		t.Fatalf("Execute returned true for nil message")
	}
}

func TestCommandRegistryNamesSorted(t *testing.T) {
	r := NewCommandRegistry()
	r.Register("restart", &testCmd{})
	r.Register("cancel", &testCmd{})
	r.Register("log", &testCmd{})

	got := r.Names()
	want := []string{"cancel", "log", "restart"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
	if d := r.Description("log"); d != "test" {
		t.Fatalf("Description(log) = %q", d)
	}
	if d := r.Description("missing"); d != "" {
		t.Fatalf("Description(missing) = %q, want empty", d)
	}
}

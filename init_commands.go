package main

func SetupCommandRegistry() *CommandRegistry {
	r := NewCommandRegistry()

	// System
	r.Register("start", &StartCmd{})
	r.Register("ping", &PingCmd{})

	// Tools
	r.Register("logs", &LogsCmd{})
	r.Register("log", &LogCmd{})
	r.Register("restart", &RestartCmd{})
	r.Register("cancel", &CancelCmd{})

	// Help
	r.Register("help", &HelpCmd{registry: r})

	return r
}

package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the default slog logger: JSON at info level when
// ENVIRONMENT=production, text at debug level otherwise. LOG_LEVEL
// (debug, info, warn, error) overrides the level in either mode.
func Init() {
	production := strings.EqualFold(os.Getenv("ENVIRONMENT"), "production")

	level := slog.LevelDebug
	if production {
		level = slog.LevelInfo
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(raw)); err == nil {
			level = parsed
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if production {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler).With("service", "knowledgebot"))
}

// WithMessage returns a logger tagged with one inbound message's identity.
func WithMessage(updateID int64, userID string, chatID int64) *slog.Logger {
	return slog.With("update_id", updateID, "user_id", userID, "chat_id", chatID)
}

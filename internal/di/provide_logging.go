package di

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ProvideLogger creates a new zerolog.Logger configured for the runtime environment.
// On a terminal it uses console format with pretty printing; otherwise (CI,
// redirected output) it emits JSON. An unknown level falls back to info.
func ProvideLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return zerolog.New(os.Stderr).
			Level(lvl).
			With().
			Timestamp().
			Logger()
	}

	// Running in terminal - use console format with colors
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Package logx is the owner-facing logging layer for laneproto. It keeps
// the shape of the teacher's pkg/logger (level-named package functions, a
// Section banner helper for CLI framing) but backs it with a
// zerolog.Logger instead of a hand-rolled ANSI formatter. The session core
// itself never logs; logging lives here, in the layers that own a Session.
package logx

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var std = newLogger(os.Stderr)

// New returns a fresh zerolog.Logger writing to stderr, using a colored
// console writer when stderr is a terminal (detected via go-isatty,
// matching the teacher's ColorReset/ColorRed-style ANSI palette) and plain
// JSON otherwise. Callers typically narrow it with .With().Str(...) to tag
// the owning component, the way Session does for its own log field.
func New() zerolog.Logger {
	return newLogger(os.Stderr)
}

func newLogger(w io.Writer) zerolog.Logger {
	var out io.Writer = w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = zerolog.ConsoleWriter{Out: f, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// SetLevel sets the minimum level the package-level helpers emit at.
func SetLevel(level zerolog.Level) {
	std = std.Level(level)
}

// Named returns a child logger tagged with a "component" field, the
// zerolog equivalent of giving a Session its own logging identity.
func Named(component string) zerolog.Logger {
	return std.With().Str("component", component).Logger()
}

func Debug(msg string) { std.Debug().Msg(msg) }
func Info(msg string)  { std.Info().Msg(msg) }
func Warn(msg string)  { std.Warn().Msg(msg) }
func Error(msg string) { std.Error().Msg(msg) }

// Success logs at info level with a "success" field, since zerolog has no
// built-in success level, matching the teacher's green-highlighted
// Success() calls at a glance in the console writer.
func Success(msg string) { std.Info().Bool("success", true).Msg(msg) }

// Fatal logs at fatal level and exits the process, matching the teacher's
// Fatal().
func Fatal(msg string) { std.Fatal().Msg(msg) }

// Section prints a banner-style divider, used by cmd/laneproto-echo to
// frame startup/shutdown the way the teacher's Section() frames server
// lifecycle events.
func Section(title string) {
	border := "───────────────────────────────────────────"
	os.Stderr.WriteString("\n" + border + "\n  " + title + "\n" + border + "\n\n")
}

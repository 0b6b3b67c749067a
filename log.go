package modrun

import (
	"io"
	"log/slog"
)

// Verbosity levels. Each -v on the command line lowers the threshold by one,
// so level 0 only shows slog.LevelError records.
const (
	LevelV1 = slog.LevelError - 1
	LevelV2 = slog.LevelError - 2
	LevelV3 = slog.LevelError - 3
)

var levelNames = map[slog.Level]string{
	LevelV1: "V1",
	LevelV2: "V2",
	LevelV3: "V3",
}

// VerbosityLevel maps a -v count to the handler threshold.
func VerbosityLevel(verbosity int) slog.Level {
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity > 3 {
		verbosity = 3
	}
	return slog.LevelError - slog.Level(verbosity)
}

// NewLogger returns a text logger writing to w that honours the verbosity count.
func NewLogger(w io.Writer, verbosity int) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: VerbosityLevel(verbosity),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			if level, ok := a.Value.Any().(slog.Level); ok {
				if name, ok := levelNames[level]; ok {
					a.Value = slog.StringValue(name)
				}
			}
			return a
		},
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

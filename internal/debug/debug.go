package debug

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (startup, configuration, errors)
	LevelLive    = 2 // Live info (readings applied, commands sent)
	LevelVerbose = 3 // Verbose (poll cycles, request details)
	LevelTrace   = 4 // Trace (raw HTTP calls, very low level)
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	mu     sync.RWMutex
	level  int
	format = FormatConsole
	out    io.Writer = os.Stdout
	logger = zerolog.Nop()
)

// Init initializes the debug system with a level (0-4) and an output format.
// 0 = no output
// 1 = important info (startup, errors)
// 2 = live info (readings, commands)
// 3 = verbose (poll cycles)
// 4 = trace (HTTP, very low level)
func Init(debugLevel int, logFormat string) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	if logFormat != "" {
		format = logFormat
	}
	rebuild()
}

// SetOutput redirects log output, e.g. to an io.MultiWriter that also feeds
// the web status stream.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

func rebuild() {
	if level <= LevelOff {
		logger = zerolog.Nop()
		return
	}
	w := out
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05.000",
			NoColor:    out != os.Stdout,
		}
	}
	// Gating is done on the debug level; the logger itself lets everything through.
	logger = zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Str("app", "turntable").Logger()
}

func get() *zerolog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return &l
}

// Logger returns the underlying zerolog logger for structured events.
// It discards everything when debugging is off.
func Logger() *zerolog.Logger {
	return get()
}

// Level returns the current debug level.
func Level() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if IsEnabled(LevelInfo) {
		get().Info().Msgf(format, args...)
	}
}

// Warn prints a level 1 warning.
func Warn(format string, args ...interface{}) {
	if IsEnabled(LevelInfo) {
		get().Warn().Msgf(format, args...)
	}
}

// Value prints a named value (level 1).
func Value(name string, value interface{}) {
	if IsEnabled(LevelInfo) {
		get().Info().Interface("value", value).Msg(name)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if IsEnabled(LevelLive) {
		get().Debug().Msgf(format, args...)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if IsEnabled(LevelVerbose) {
		get().Debug().Bool("verbose", true).Msgf(format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if IsEnabled(LevelVerbose) {
		get().Debug().Msgf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if IsEnabled(LevelVerbose) {
		get().Debug().Msgf("━━━━━━━━━━ %s ━━━━━━━━━━", name)
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if IsEnabled(LevelVerbose) {
		get().Debug().Int("step", num).Msg(description)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, HTTP).
func Trace(format string, args ...interface{}) {
	if IsEnabled(LevelTrace) {
		get().Debug().Bool("trace", true).Msgf(format, args...)
	}
}

// --- General functions ---

// Error prints an error (level 1+).
func Error(err error) {
	if err != nil && IsEnabled(LevelInfo) {
		get().Error().Err(err).Send()
	}
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package logger provides the shared logrus logger used by every tool in
// this repository along with helpers to wire it to command line flags.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Log is the shared logger instance. Writes go to stderr and, when
// configured, to a log file.
var Log *logrus.Logger

const (
	LevelsFlag         = "log-level"
	LevelsHelp         = "Minimum log level shown on the console."
	LevelsPlaceholder  = "(panic|fatal|error|warn|info|debug|trace)"
	FileFlag           = "log-file"
	FileFlagHelp       = "Also log to the given file, at trace level."
	ColorFlag          = "log-color"
	ColorFlagHelp      = "Whether to colorize console output."
	ColorsPlaceholder  = "(always|auto|never)"
	defaultLogLevel    = logrus.InfoLevel
	fileLogLevel       = logrus.TraceLevel
	defaultColorOption = "auto"
)

// LogFlags holds the values of the standard logging flags.
type LogFlags struct {
	LogColor *string
	LogFile  *string
	LogLevel *string
}

type stderrHook struct {
	writer    io.Writer
	level     logrus.Level
	colorize  bool
	formatter logrus.Formatter
}

func (h *stderrHook) Levels() []logrus.Level {
	return logrus.AllLevels[:h.level+1]
}

func (h *stderrHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	if h.colorize {
		switch entry.Level {
		case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
			line = []byte(color.RedString("%s", line))
		case logrus.WarnLevel:
			line = []byte(color.YellowString("%s", line))
		case logrus.DebugLevel, logrus.TraceLevel:
			line = []byte(color.HiBlackString("%s", line))
		}
	}

	_, err = h.writer.Write(line)
	return err
}

// Levels returns the accepted values for the log level flag.
func Levels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}
	return levels
}

// Colors returns the accepted values for the color flag.
func Colors() []string {
	return []string{"always", "auto", "never"}
}

// InitStderrLog initializes the logger with console output only, using the
// default log level. Used by tests and tools without log flags.
func InitStderrLog() {
	initLog(defaultLogLevel, defaultColorOption, "")
}

// InitBestEffort initializes the logger from flag values, substituting
// defaults for anything left unset.
func InitBestEffort(flags *LogFlags) {
	level := defaultLogLevel
	colorOption := defaultColorOption
	logFile := ""

	if flags != nil {
		if flags.LogLevel != nil && *flags.LogLevel != "" {
			parsedLevel, err := logrus.ParseLevel(*flags.LogLevel)
			if err == nil {
				level = parsedLevel
			}
		}
		if flags.LogColor != nil && *flags.LogColor != "" {
			colorOption = *flags.LogColor
		}
		if flags.LogFile != nil {
			logFile = *flags.LogFile
		}
	}

	initLog(level, colorOption, logFile)
}

// SetStderrLogLevel changes the console log level of an initialized logger.
func SetStderrLogLevel(level logrus.Level) {
	for _, hooks := range Log.Hooks {
		for _, hook := range hooks {
			if stderr, ok := hook.(*stderrHook); ok {
				stderr.level = level
			}
		}
	}
}

func initLog(level logrus.Level, colorOption string, logFilePath string) {
	Log = logrus.New()

	// Hooks do all the writing; the logger itself is muted.
	Log.SetOutput(io.Discard)
	Log.SetLevel(fileLogLevel)

	colorize := false
	switch colorOption {
	case "always":
		colorize = true
	case "never":
		colorize = false
	default:
		colorize = isTerminal(os.Stderr)
	}

	Log.AddHook(&stderrHook{
		writer:   os.Stderr,
		level:    level,
		colorize: colorize,
		formatter: &logrus.TextFormatter{
			DisableColors:    true,
			DisableTimestamp: true,
		},
	})

	if logFilePath != "" {
		logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Log.Warnf("Failed to open log file (%s): %v", logFilePath, err)
			return
		}

		Log.AddHook(&stderrHook{
			writer: logFile,
			level:  fileLogLevel,
			formatter: &logrus.TextFormatter{
				DisableColors: true,
				FullTimestamp: true,
			},
		})
	}
}

func isTerminal(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// PanicOnError logs and panics if err is non-nil. Only used during startup
// where continuing makes no sense.
func PanicOnError(err error, args ...interface{}) {
	if err != nil {
		if len(args) > 0 {
			Log.Errorf(fmt.Sprintf("%v", args[0]), args[1:]...)
		}
		Log.Panicln(err)
	}
}

func init() {
	// Make sure Log is never nil, even before explicit initialization.
	InitStderrLog()
}

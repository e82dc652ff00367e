// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package exekong wires the shared logger flags into kong command lines.
package exekong

import (
	"strings"

	"github.com/alecthomas/kong"

	"github.com/papampi/braiins-os/internal/logger"
)

// KongVars supplies the help texts and enum values interpolated into the
// LogFlags struct tags.
var KongVars = kong.Vars{
	"log_level_help":   logger.LevelsHelp,
	"log_level_values": enumValues(logger.Levels()),
	"log_file_help":    logger.FileFlagHelp,
	"log_color_help":   logger.ColorFlagHelp,
	"log_color_values": enumValues(logger.Colors()),
}

// LogFlags is embedded into a CLI struct to expose the standard logging
// flags. The empty defaults let the logger substitute its own.
type LogFlags struct {
	LogColor string `name:"log-color" placeholder:"(always|auto|never)" help:"${log_color_help}" enum:"${log_color_values}" default:""`
	LogFile  string `name:"log-file" help:"${log_file_help}"`
	LogLevel string `name:"log-level" placeholder:"(panic|fatal|error|warn|info|debug|trace)" help:"${log_level_help}" enum:"${log_level_values}" default:""`
}

// AsLoggerFlags converts the parsed flag values into the logger's form.
func (f LogFlags) AsLoggerFlags() logger.LogFlags {
	return logger.LogFlags{
		LogColor: &f.LogColor,
		LogFile:  &f.LogFile,
		LogLevel: &f.LogLevel,
	}
}

// enumValues renders a kong enum list that also accepts the empty default.
func enumValues(values []string) string {
	return strings.Join(values, ", ") + ","
}

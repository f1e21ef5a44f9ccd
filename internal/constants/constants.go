// Package constants is responsible for defining the constants used in the application.
package constants

import "log/slog"

const (
	// CmdName is the name of the command line tool.
	CmdName = "quote-splitter"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// QuoteExt is the extension quote documents and extract files are written with.
	QuoteExt = ".json"

	// OriginalFolder is the subfolder archived originals are moved to.
	// It doubles as the marker for "already handled".
	OriginalFolder = "Original"

	// TrackingField is the quote field copied verbatim into every extract file.
	TrackingField = "Tracking"

	// DefaultKeyField identifies a quote when the split rules do not name one.
	DefaultKeyField = "QuoteId"

	// DefaultWorkerCount is the number of concurrent workers processing quotes.
	DefaultWorkerCount = 4

	// DefaultSourceDir is the default directory quotes are read from.
	DefaultSourceDir = "/var/lib/quote-splitter/quotes"

	// DefaultSplitConfigPath is the default path to the split rules file.
	DefaultSplitConfigPath = "/etc/quote-splitter/split.json"
)

// Version is the version of the application.
var Version = "Dev"

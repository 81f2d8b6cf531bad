package logger

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Init initializes the default logger for the CLI. Verbose enables debug
// output; color is disabled when asked for or when stderr is not a terminal.
func Init(verbose, noColor bool) {
	log.SetDefault(log.NewWithOptions(os.Stderr,
		log.Options{
			ReportCaller:    false,
			ReportTimestamp: false,
			TimeFormat:      time.RFC3339,
			Prefix:          "zero",
		}))

	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	if !noColor && isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetColorProfile(termenv.ANSI256)
	} else {
		log.SetColorProfile(termenv.Ascii)
	}
}

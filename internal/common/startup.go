package common

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// ConfigureCommandLineLogging sets up logrus for interactive command line use.
// Log lines go to stderr so that stdout stays free for command output.
func ConfigureCommandLineLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)
}

// SetVerbose raises the log level to debug when verbose is set.
func SetVerbose(verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

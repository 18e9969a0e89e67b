package udpbench

import (
	"os"

	"github.com/op/go-logging"
)

const LOG_MODULE = "udpbench"

var Log = logging.MustGetLogger(LOG_MODULE)

// stdout carries the sockname and report lines, everything else goes to stderr
var logFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{module} %{level:.4s} %{message}`,
)

func init() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	logging.SetBackend(logging.NewBackendFormatter(backend, logFormat))
	logging.SetLevel(logging.ERROR, LOG_MODULE)
}

func SetLogLevel(debug, info bool) {
	if debug {
		logging.SetLevel(logging.DEBUG, LOG_MODULE)
	} else if info {
		logging.SetLevel(logging.INFO, LOG_MODULE)
	} else {
		logging.SetLevel(logging.ERROR, LOG_MODULE)
	}
}

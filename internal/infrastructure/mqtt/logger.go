package mqtt

import (
	"fmt"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// transportLogger adapts one structured log level to paho's Println/Printf logger.
type transportLogger struct {
	log func(msg string, args ...any)
}

func (l transportLogger) Println(v ...interface{}) {
	l.log("mqtt transport", "detail", strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l transportLogger) Printf(format string, v ...interface{}) {
	l.log("mqtt transport", "detail", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

var transportLogMu sync.Mutex

// RouteTransportLogs sends paho's internal log output to logger.
//
// paho keeps its loggers in package variables, so this affects every
// session in the process. Debug output is only routed when debug is true.
func RouteTransportLogs(logger Logger, debug bool) {
	if logger == nil {
		logger = noopLogger{}
	}

	transportLogMu.Lock()
	defer transportLogMu.Unlock()

	pahomqtt.CRITICAL = transportLogger{log: logger.Error}
	pahomqtt.ERROR = transportLogger{log: logger.Error}
	pahomqtt.WARN = transportLogger{log: logger.Warn}
	if debug {
		pahomqtt.DEBUG = transportLogger{log: logger.Debug}
	} else {
		pahomqtt.DEBUG = pahomqtt.NOOPLogger{}
	}
}

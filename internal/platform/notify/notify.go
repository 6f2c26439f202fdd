// Package notify is the alert text sink. The core produces human-readable
// alert text; delivery (voice, pager, dashboard) lives outside this process.
package notify

import "github.com/rs/zerolog"

// Notifier receives alert text for delivery.
type Notifier interface {
	Alert(severity, target, message string)
}

// LogNotifier writes alerts to the structured log. It is the default sink
// when no delivery layer is attached.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Alert(severity, target, message string) {
	n.logger.Warn().
		Str("severity", severity).
		Str("target", target).
		Msg(message)
}

// Func adapts a plain function to the Notifier interface.
type Func func(severity, target, message string)

func (f Func) Alert(severity, target, message string) { f(severity, target, message) }

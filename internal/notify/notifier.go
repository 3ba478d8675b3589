// Package notify delivers best-effort alerts to task owners. Delivery is
// fire-and-forget: a failed notification is logged and never rolls back the
// state transition that triggered it.
package notify

import (
	"context"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// Payload is the content of one alert.
type Payload struct {
	Title    string
	Body     string
	Severity models.Severity
	TaskID   string
}

// Notifier delivers an alert to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, payload Payload) error
}

// logSink is the minimal logging surface the LogNotifier needs.
type logSink interface {
	Infof(format string, args ...interface{})
}

// LogNotifier writes alerts to the execution log. It is the default sink and
// the fallback when no delivery channel is configured.
type LogNotifier struct {
	logger logSink
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(logger logSink) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify records the alert in the log. Never fails.
func (n *LogNotifier) Notify(_ context.Context, userID string, payload Payload) error {
	if n.logger != nil {
		n.logger.Infof("notify %s: [%s] %s (task %s)", userID, payload.Severity, payload.Title, payload.TaskID)
	}
	return nil
}

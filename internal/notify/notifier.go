// Package notify sends fire-and-forget HTTP notifications for run events.
// The primary use case is ntfy.sh, but any HTTP webhook works.
package notify

import (
	"net/http"
	"strings"
	"time"

	"github.com/amazon-science/SDFeedback/internal/loop"
)

// Notifier posts plain-text HTTP notifications for selected run events.
type Notifier struct {
	url        string
	title      string
	onAccept   bool
	onError    bool
	onComplete bool
	client     *http.Client
}

// New creates a Notifier. projectName is used as the X-Title header; if empty,
// "sdfix" is used instead.
func New(notifURL, projectName string, onAccept, onError, onComplete bool) *Notifier {
	title := "sdfix"
	if projectName != "" {
		title = projectName
	}
	return &Notifier{
		url:        notifURL,
		title:      title,
		onAccept:   onAccept,
		onError:    onError,
		onComplete: onComplete,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Hook fires asynchronous POSTs for events that match the configured
// notification flags. Safe to call with a nil receiver or empty URL.
func (n *Notifier) Hook(entry loop.LogEntry) {
	if n == nil || n.url == "" {
		return
	}
	switch entry.Kind {
	case loop.LogAccepted:
		if n.onAccept {
			go n.post(entry.Message)
		}
	case loop.LogError:
		if n.onError {
			go n.post(entry.Message)
		}
	case loop.LogDone, loop.LogFailed, loop.LogStopped:
		if n.onComplete {
			go n.post(entry.Message)
		}
	}
}

// post sends a plain-text POST to the configured URL. Errors are silently
// discarded so notification failures never interrupt the run.
func (n *Notifier) post(message string) {
	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

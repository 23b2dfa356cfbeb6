package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/signvault/internal/middleware"
	"github.com/iliyamo/signvault/internal/queue"
)

// Notifier publishes notification events. Implemented by *queue.Publisher.
type Notifier interface {
	PublishSigningRequested(ctx context.Context, ev queue.SigningRequestedEvent) error
	PublishDocumentCompleted(ctx context.Context, ev queue.DocumentCompletedEvent) error
}

// notifyTimeout bounds a single publish made after a request has been answered.
const notifyTimeout = 10 * time.Second

// dispatcher runs notification work off the request path. Publishing failures
// are logged by the Notifier and never reach the client.
type dispatcher struct {
	notifier Notifier
	// run executes fn; tests replace it to run synchronously.
	run func(fn func())
}

func newDispatcher(n Notifier) dispatcher {
	return dispatcher{notifier: n, run: func(fn func()) { go fn() }}
}

// notify calls fn with a detached, bounded context when a notifier is set.
func (d dispatcher) notify(ctx context.Context, fn func(ctx context.Context, n Notifier)) {
	if d.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.run(func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		fn(ctx, d.notifier)
	})
}

// ownerID returns the authenticated owner's id.
func ownerID(c echo.Context) string { return middleware.UserID(c) }

// queryInt parses a non-negative integer query parameter, falling back to def.
func queryInt(c echo.Context, name string, def int) int {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Package channel implements the platform-independent chat channel core:
// composing inbound messages into dispatchable contexts, the four-stage
// reply pipeline, and the contracts platform adapters implement.
package channel

import (
	"context"
	"errors"
	"strings"

	"github.com/dayuer/chatgate/internal/bridge"
)

// ErrNotSupported is returned by a Sender for reply kinds the platform
// cannot transmit at all. Unlike transient send failures it is never
// retried.
var ErrNotSupported = errors.New("reply kind not supported by this channel")

// Sender delivers decorated replies through a concrete platform.
type Sender interface {
	Send(reply bridge.Reply, c *bridge.Context) error
}

// Channel is the interface platform adapters expose to the gateway.
type Channel interface {
	// Name returns the channel identifier (e.g., "terminal", "web").
	Name() string

	// Start connects to the platform and begins listening. Blocks until
	// ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop() error
}

// checkPrefix returns the first prefix in list that content starts with.
// An empty-string prefix matches everything.
func checkPrefix(content string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(content, p) {
			return p, true
		}
	}
	return "", false
}

// checkContain reports whether content contains any of the keywords.
func checkContain(content string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(content, k) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

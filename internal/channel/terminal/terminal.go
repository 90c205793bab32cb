// Package terminal implements a stdin/stdout chat channel for local use.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dayuer/chatgate/internal/bridge"
	"github.com/dayuer/chatgate/internal/channel"
	"github.com/dayuer/chatgate/internal/config"
	"github.com/dayuer/chatgate/internal/session"
)

const terminalUser = "terminal"

// Channel reads queries from stdin and prints replies to stdout.
type Channel struct {
	core *channel.ChatChannel

	in  io.Reader
	out io.Writer
}

// New creates a terminal channel.
func New(cfg *config.Config, br *bridge.Bridge, store session.Store) *Channel {
	ch := &Channel{
		in:  os.Stdin,
		out: os.Stdout,
	}
	ch.core = channel.NewChatChannel("terminal", cfg, br, store, ch)
	return ch
}

func (ch *Channel) Name() string { return "terminal" }

// Start reads lines from stdin until EOF or ctx cancellation.
func (ch *Channel) Start(ctx context.Context) error {
	fmt.Fprintln(ch.out, "chatgate terminal — type a message, Ctrl-D to quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(ch.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			ch.core.HandleInbound(bridge.ContextKindText, line, &bridge.ChatMessage{
				FromUserID:       terminalUser,
				FromUserNickname: terminalUser,
				OtherUserID:      terminalUser,
				ActualUserID:     terminalUser,
			})
		}
	}
}

// Stop shuts down the channel core.
func (ch *Channel) Stop() error {
	ch.core.Stop()
	return nil
}

// Send prints the reply. Only text-like kinds are printable.
func (ch *Channel) Send(reply bridge.Reply, _ *bridge.Context) error {
	switch reply.Kind {
	case bridge.ReplyKindText, bridge.ReplyKindInfo, bridge.ReplyKindError:
		fmt.Fprintln(ch.out, reply.Content)
		return nil
	case bridge.ReplyKindImageURL, bridge.ReplyKindVideoURL:
		fmt.Fprintf(ch.out, "[%s] %s\n", reply.Kind, reply.Content)
		return nil
	default:
		return channel.ErrNotSupported
	}
}

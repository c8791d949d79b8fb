package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// streamClient reads a session's live stream.
type streamClient struct {
	conn *websocket.Conn
}

// dialStream connects to the stream endpoint of sessionID on addr.
func dialStream(ctx context.Context, addr, sessionID string) (*streamClient, error) {
	u, err := streamURL(addr, sessionID)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", u, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return &streamClient{conn: conn}, nil
}

func streamURL(addr, sessionID string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/sessions/" + url.PathEscape(sessionID) + "/stream"
	return u.String(), nil
}

// next blocks until the next stream message arrives.
func (c *streamClient) next() (domain.StreamMessage, error) {
	var msg domain.StreamMessage
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("unmarshal stream message: %w", err)
	}
	return msg, nil
}

func (c *streamClient) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		addr  string
		count int
	)

	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a session's records and events live",
		Long: `Connect to a running server and print every record and event of a
session as it happens.

Example:
  context-tracker watch sess_1a2b3c4d --addr localhost:8080
  context-tracker watch sess_1a2b3c4d --count 5 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			client, err := dialStream(ctx, addr, args[0])
			if err != nil {
				return err
			}
			defer client.Close()
			go func() {
				<-ctx.Done()
				client.conn.Close()
			}()

			out := cmd.OutOrStdout()
			for n := 0; count <= 0 || n < count; n++ {
				msg, err := client.next()
				if err != nil {
					if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						return nil
					}
					return err
				}
				if err := printStreamMessage(out, rootOpts.Format, msg); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "server address")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many messages (0 = follow until interrupted)")
	return cmd
}

func printStreamMessage(out io.Writer, format string, msg domain.StreamMessage) error {
	if format == "json" {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	switch {
	case msg.Record != nil:
		r := msg.Record
		line := fmt.Sprintf("record #%d %s retries=%d", r.Sequence, r.Status, r.RetryCount)
		if r.Error != "" {
			line += " error=" + r.Error
		}
		var activity domain.ScreenActivity
		if json.Unmarshal(r.Payload, &activity) == nil && activity.Summary != "" {
			line += " | " + activity.Summary
		}
		_, err := fmt.Fprintln(out, line)
		return err
	case msg.Event != nil:
		e := msg.Event
		_, err := fmt.Fprintf(out, "event %s %s %s\n", time.UnixMilli(e.Ts).Format(time.TimeOnly), e.Type, e.Payload)
		return err
	}
	return nil
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gregLibert/smart-card-hce/internal/syncutil"
	"github.com/gregLibert/smart-card-hce/pkg/hce"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

// DefaultTimeout bounds a single APDU round trip.
const DefaultTimeout = 2 * time.Second

// ErrRemote wraps error frames returned by the relay server.
var ErrRemote = errors.New("relay error")

// Client is the reader side of a relay session. It implements
// iso7816.Transmitter; calls are serialized.
type Client struct {
	SessionID string
	Timeout   time.Duration

	mu   syncutil.Mutex
	conn *websocket.Conn
}

// Dial connects to a relay endpoint (ws://host:port/ws) and waits for the
// session frame.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	var hello Message
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read session frame: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch hello.Type {
	case TypeSession:
	case TypeError:
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrRemote, hello.Error)
	default:
		conn.Close()
		return nil, fmt.Errorf("unexpected frame %q before session", hello.Type)
	}

	return &Client{
		SessionID: hello.ID,
		Timeout:   DefaultTimeout,
		conn:      conn,
	}, nil
}

// Transmit sends one command APDU and returns the response APDU.
func (c *Client) Transmit(cmd []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	deadline := time.Now().Add(c.Timeout)
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	if err := c.conn.WriteJSON(Message{Type: TypeAPDU, ID: id, APDU: tlv.UpperHex(cmd)}); err != nil {
		return nil, fmt.Errorf("send apdu: %w", err)
	}

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if msg.ID != id {
			continue
		}

		switch msg.Type {
		case TypeRAPDU:
			return tlv.ParseHex(msg.APDU)
		case TypeError:
			return nil, fmt.Errorf("%w: %s", ErrRemote, msg.Error)
		default:
			return nil, fmt.Errorf("unexpected frame %q", msg.Type)
		}
	}
}

// Deactivate ends the session with the given reason and closes the link.
func (c *Client) Deactivate(reason hce.DeactivationReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	code := int(reason)
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.Timeout))
	if err := c.conn.WriteJSON(Message{Type: TypeDeactivate, Reason: &code}); err != nil {
		c.conn.Close()
		return fmt.Errorf("send deactivate: %w", err)
	}

	// Drain until the server's close frame arrives.
	_ = c.conn.SetReadDeadline(time.Now().Add(c.Timeout))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	return c.conn.Close()
}

// Close drops the link without a deactivate frame; the server records a link loss.
func (c *Client) Close() error {
	return c.conn.Close()
}

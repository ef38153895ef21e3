package iso7816

import (
	"fmt"
	"log/slog"
)

// The Client drives a Transmitter (a PC/SC reader or a relay link to an
// emulated card) and absorbs the T=0 transport behaviors:
//
//   - '61XX': XX bytes are waiting, fetched with GET RESPONSE.
//   - '6CXX': wrong Le, the command is re-sent with Le = XX.
//
// Send returns the whole Trace of atomic exchanges behind one logical command.

// Transmitter abstracts the card link.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// DefaultMaxExchanges bounds the number of exchanges behind a single Send.
const DefaultMaxExchanges = 8

// Client manages the high-level communication with the card.
type Client struct {
	Card         Transmitter
	Logger       *slog.Logger
	MaxExchanges int
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{
		Card:         card,
		Logger:       slog.Default(),
		MaxExchanges: DefaultMaxExchanges,
	}
}

// Send transmits a command and follows 61XX/6CXX until a final status arrives.
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	var trace Trace
	limit := c.MaxExchanges
	if limit <= 0 {
		limit = DefaultMaxExchanges
	}

	next := cmd
	for next != nil {
		if len(trace) == limit {
			return trace, fmt.Errorf("exchange limit reached after %d transactions", limit)
		}

		tx, err := c.exchange(next)
		if err != nil {
			return trace, err
		}
		trace = append(trace, tx)
		next = c.followUp(next, tx.Response.Status)
	}

	return trace, nil
}

func (c *Client) exchange(cmd *CommandAPDU) (Transaction, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return Transaction{}, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return Transaction{}, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return Transaction{}, err
	}

	if c.Logger != nil {
		c.Logger.Debug("APDU exchange",
			"command", fmt.Sprintf("%X", rawCmd),
			"response", fmt.Sprintf("%X", rawResp),
			"status", resp.Status.String())
	}

	return Transaction{Command: cmd, Response: resp}, nil
}

// followUp returns the command implied by a transport status, or nil.
func (c *Client) followUp(cmd *CommandAPDU, sw StatusWord) *CommandAPDU {
	switch sw.SW1() {
	case 0x61:
		// GET RESPONSE stays on the logical channel of the original command.
		cls := cmd.Class
		cls.IsChained = false
		return NewCommandAPDU(cls, MustInstruction(INS_GET_RESPONSE), 0x00, 0x00, nil, shortLe(sw.SW2()))
	case 0x6C:
		retry := *cmd
		retry.Ne = shortLe(sw.SW2())
		return &retry
	default:
		return nil
	}
}

package iso7816

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

// scriptedCard replays canned responses and records every command it sees.
type scriptedCard struct {
	responses [][]byte
	seen      []string
	err       error
}

func (s *scriptedCard) Transmit(cmd []byte) ([]byte, error) {
	s.seen = append(s.seen, tlv.UpperHex(cmd))
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return []byte{0x6F, 0x00}, nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

func TestClient_Send(t *testing.T) {
	cls := MustClass(0x00)

	tests := []struct {
		name      string
		cmd       *CommandAPDU
		responses [][]byte
		wantSeen  []string
		wantSW    StatusWord
	}{
		{
			name:      "Direct 9000",
			cmd:       ReadRecord(cls, 1, 1),
			responses: [][]byte{tlv.Hex("5A 01 41 90 00")},
			wantSeen:  []string{"00B2010C00"},
			wantSW:    SW_NO_ERROR,
		},
		{
			name: "61XX triggers GET RESPONSE",
			cmd:  SelectByAID(cls, tlv.Hex("F0 01 02 03 04 05 06")),
			responses: [][]byte{
				tlv.Hex("61 03"),
				tlv.Hex("01 02 03 90 00"),
			},
			wantSeen: []string{"00A4040007F0010203040506", "00C0000003"},
			wantSW:   SW_NO_ERROR,
		},
		{
			name: "6CXX re-sends with corrected Le",
			cmd:  GetData(MustClass(0x80), 0x9F17),
			responses: [][]byte{
				tlv.Hex("6C 04"),
				tlv.Hex("9F 17 01 03 90 00"),
			},
			wantSeen: []string{"80CA9F1700", "80CA9F1704"},
			wantSW:   SW_NO_ERROR,
		},
		{
			name:      "Error status ends the exchange",
			cmd:       ReadRecord(cls, 1, 1),
			responses: [][]byte{tlv.Hex("6A 81")},
			wantSeen:  []string{"00B2010C00"},
			wantSW:    SW_ERR_FUNC_NOT_SUPPORTED,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &scriptedCard{responses: tt.responses}
			trace, err := NewClient(card).Send(tt.cmd)
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantSeen, card.seen); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
			if trace.Status() != tt.wantSW {
				t.Errorf("final status = %v, want %v", trace.Status(), tt.wantSW)
			}
			if len(trace) != len(tt.wantSeen) {
				t.Errorf("trace length = %d, want %d", len(trace), len(tt.wantSeen))
			}
		})
	}
}

func TestClient_Send_ExchangeLimit(t *testing.T) {
	responses := make([][]byte, 10)
	for i := range responses {
		responses[i] = tlv.Hex("61 01")
	}
	client := NewClient(&scriptedCard{responses: responses})
	client.MaxExchanges = 3

	trace, err := client.Send(ReadRecord(MustClass(0x00), 1, 1))
	if err == nil {
		t.Fatal("expected exchange limit error")
	}
	if len(trace) != 3 {
		t.Errorf("trace length = %d, want 3", len(trace))
	}
}

func TestClient_Send_TransmitError(t *testing.T) {
	boom := errors.New("link down")
	_, err := NewClient(&scriptedCard{err: boom}).Send(ReadRecord(MustClass(0x00), 1, 1))
	if !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want wrapped %v", err, boom)
	}
}

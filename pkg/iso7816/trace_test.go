package iso7816

import (
	"bytes"
	"testing"

	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

func tx(body []byte, sw StatusWord) Transaction {
	return Transaction{
		Command:  &CommandAPDU{},
		Response: NewResponseAPDU(body, sw),
	}
}

func TestTransaction_IsSuccess(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{"9000", tx(nil, SW_NO_ERROR), true},
		{"61XX counts as success", tx(nil, NewStatusWord(0x61, 0x10)), true},
		{"6A81 from a refusing card", tx(nil, SW_ERR_FUNC_NOT_SUPPORTED), false},
		{"No response yet", Transaction{Command: &CommandAPDU{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.IsSuccess(); got != tt.want {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrace(t *testing.T) {
	cardData := tlv.Hex("5A 08 41 11 11 11 11 11 11 11")

	tests := []struct {
		name       string
		trace      Trace
		wantFirst  StatusWord
		wantStatus StatusWord
		wantData   []byte
		wantOK     bool
	}{
		{
			name: "Empty",
		},
		{
			name:       "SELECT answered directly",
			trace:      Trace{tx(nil, SW_NO_ERROR)},
			wantFirst:  SW_NO_ERROR,
			wantStatus: SW_NO_ERROR,
			wantOK:     true,
		},
		{
			name:       "GET RESPONSE after 61XX",
			trace:      Trace{tx(nil, NewStatusWord(0x61, 0x0A)), tx(cardData, SW_NO_ERROR)},
			wantFirst:  NewStatusWord(0x61, 0x0A),
			wantStatus: SW_NO_ERROR,
			wantData:   cardData,
			wantOK:     true,
		},
		{
			name:       "Final step refused",
			trace:      Trace{tx(nil, SW_NO_ERROR), tx(nil, SW_ERR_FUNC_NOT_SUPPORTED)},
			wantFirst:  SW_NO_ERROR,
			wantStatus: SW_ERR_FUNC_NOT_SUPPORTED,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tt.trace
			if len(tr) == 0 {
				if tr.First() != nil || tr.Last() != nil {
					t.Error("empty trace should have no first or last transaction")
				}
			} else if got := tr.First().Response.Status; got != tt.wantFirst {
				t.Errorf("First() status = %v, want %v", got, tt.wantFirst)
			}
			if got := tr.Status(); got != tt.wantStatus {
				t.Errorf("Status() = %v, want %v", got, tt.wantStatus)
			}
			if got := tr.Data(); !bytes.Equal(got, tt.wantData) {
				t.Errorf("Data() = %X, want %X", got, tt.wantData)
			}
			if got := tr.IsSuccess(); got != tt.wantOK {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.wantOK)
			}
		})
	}
}

package relay

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name  string
		entry *zeroconf.ServiceEntry
		want  string
		ok    bool
	}{
		{
			name:  "IPv4 with path",
			entry: &zeroconf.ServiceEntry{Port: 8080, AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")}, Text: []string{"version=1.0", "path=/relay"}},
			want:  "ws://192.168.1.20:8080/relay",
			ok:    true,
		},
		{
			name:  "IPv6 default path",
			entry: &zeroconf.ServiceEntry{Port: 9000, AddrIPv6: []net.IP{net.ParseIP("fe80::1")}},
			want:  "ws://[fe80::1]:9000/ws",
			ok:    true,
		},
		{
			name:  "No address",
			entry: &zeroconf.ServiceEntry{Port: 9000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := endpointURL(tt.entry)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

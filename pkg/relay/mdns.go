package relay

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

// mDNS service identity of a relay agent.
const (
	ServiceType = "_hce-relay._tcp"
	Domain      = "local."
)

// Advertise registers the relay on the local network. Call Shutdown on the
// returned server to withdraw it.
func Advertise(instance string, port int) (*zeroconf.Server, error) {
	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		port,
		[]string{
			"version=1.0",
			"protocol=websocket",
			"path=" + Path,
		},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return server, nil
}

// Discover browses for relay agents until ctx is done and returns the
// endpoint URL of the first one found.
func Discover(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return "", fmt.Errorf("browse %s: %w", ServiceType, err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("no relay found: %w", ctx.Err())
		case entry, ok := <-entries:
			if !ok {
				return "", fmt.Errorf("no relay found")
			}
			if url, ok := endpointURL(entry); ok {
				return url, nil
			}
		}
	}
}

func endpointURL(entry *zeroconf.ServiceEntry) (string, bool) {
	var host net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0]
	default:
		return "", false
	}

	path := Path
	for _, txt := range entry.Text {
		if v, ok := strings.CutPrefix(txt, "path="); ok {
			path = v
		}
	}
	return "ws://" + net.JoinHostPort(host.String(), strconv.Itoa(entry.Port)) + path, true
}

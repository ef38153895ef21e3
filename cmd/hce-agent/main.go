// Command hce-agent serves an emulated payment card. Readers reach it over
// the WebSocket relay (optionally advertised over mDNS) or, with -tags libnfc
// and --nfc, by tapping a PN53x device in target mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/gregLibert/smart-card-hce/internal/nfctarget"
	"github.com/gregLibert/smart-card-hce/pkg/hce"
	"github.com/gregLibert/smart-card-hce/pkg/profile"
	"github.com/gregLibert/smart-card-hce/pkg/relay"
)

// nfcUID is the fixed UID presented in target mode; 08 marks it as random.
var nfcUID = [4]byte{0x08, 0x48, 0x43, 0x45}

const shutdownTimeout = 5 * time.Second

var openNFCLink = nfctarget.Open

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := newLogger(os.Stderr, cfg.logLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, nil); err != nil {
		logger.Error("Agent stopped", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is done. ready, when non-nil, receives the bound
// relay address once the listener is up.
func run(ctx context.Context, cfg config, logger *slog.Logger, ready chan<- string) (rerr error) {
	opts, err := cfg.responderOptions()
	if err != nil {
		return err
	}

	// The profile file is re-read at every session start.
	source := func() (profile.Profile, error) {
		return profile.Load(cfg.profilePath)
	}

	// Fail fast on an unreadable or oversize profile.
	p, err := source()
	if err != nil {
		return err
	}
	if _, err := hce.NewResponder(p, append(opts, hce.WithLogger(logger))...); err != nil {
		return err
	}

	srv := relay.NewServer(source, logger, opts...)

	ln, err := net.Listen("tcp", cfg.listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 2)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("relay server: %w", err)
		}
	}()
	logger.Info("Relay listening", "addr", ln.Addr().String(), "path", relay.Path)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	var mdnsServer *zeroconf.Server
	if cfg.mdns {
		port := ln.Addr().(*net.TCPAddr).Port
		mdnsServer, err = relay.Advertise(cfg.mdnsName, port)
		if err != nil {
			logger.Warn("mDNS advertisement failed", "error", err)
		} else {
			logger.Info("mDNS service registered", "type", relay.ServiceType, "port", port)
		}
	}

	var link nfctarget.Link
	nfcCtx, stopNFC := context.WithCancel(ctx)
	defer stopNFC()
	nfcDone := make(chan struct{})
	if cfg.nfc {
		link, err = openNFCLink(cfg.nfcDevice, nfcUID)
		if err != nil {
			rerr = multierr.Append(rerr, fmt.Errorf("nfc target: %w", err))
		} else {
			go func() {
				defer close(nfcDone)
				newCard := func() (nfctarget.Card, error) {
					p, err := source()
					if err != nil {
						return nil, err
					}
					r, err := hce.NewResponder(p, append([]hce.Option{hce.WithLogger(logger.With("link", "nfc"))}, opts...)...)
					if err != nil {
						return nil, err
					}
					return r, nil
				}
				if err := nfctarget.Serve(nfcCtx, link, newCard, logger); err != nil {
					serveErr <- err
				}
			}()
			logger.Info("NFC target mode enabled", "device", cfg.nfcDevice)
		}
	}

	if rerr == nil {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			rerr = err
		}
	}

	logger.Info("Shutting down")
	if mdnsServer != nil {
		mdnsServer.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	rerr = multierr.Append(rerr, srv.CloseAll())
	rerr = multierr.Append(rerr, httpServer.Shutdown(shutdownCtx))
	if link != nil {
		// The device may only be closed once Serve has left libnfc.
		stopNFC()
		<-nfcDone
		rerr = multierr.Append(rerr, link.Close())
	}
	return rerr
}

package relay

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/smart-card-hce/pkg/emv"
	"github.com/gregLibert/smart-card-hce/pkg/hce"
	"github.com/gregLibert/smart-card-hce/pkg/iso7816"
	"github.com/gregLibert/smart-card-hce/pkg/profile"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

var johnDoe = profile.Profile{
	CardNumber:     "4111 1111 1111 1111",
	CardholderName: "JOHN DOE",
	ExpiryDate:     "09/27",
	CardType:       "VISA",
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a log handler.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startRelay(t *testing.T, source ProfileSource, opts ...hce.Option) (*Server, string, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv := NewServer(source, logger, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + Path, logs
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, url)
	require.NoError(t, err)
	return c
}

func TestRelay_Exchange(t *testing.T) {
	srv, url, _ := startRelay(t, StaticProfile(johnDoe))
	c := dial(t, url)
	defer c.Close()

	assert.NotEmpty(t, c.SessionID)
	assert.Eventually(t, func() bool { return len(srv.Sessions()) == 1 }, time.Second, 10*time.Millisecond)

	resp, err := c.Transmit(tlv.Hex("00 A4 04 00 07 F0 01 02 03 04 05 06"))
	require.NoError(t, err)
	assert.Equal(t, tlv.Hex("90 00"), resp)

	resp, err = c.Transmit(tlv.Hex("00 B2 01 0C 00"))
	require.NoError(t, err)
	assert.Equal(t, hce.Respond(hce.ReadRecord, johnDoe), resp)

	resp, err = c.Transmit(tlv.Hex("00 84 00 00 08"))
	require.NoError(t, err)
	assert.Equal(t, tlv.Hex("6A 81"), resp)
}

func TestRelay_ClientDrivesISO7816(t *testing.T) {
	_, url, _ := startRelay(t, StaticProfile(johnDoe))
	c := dial(t, url)
	defer c.Close()

	trace, err := iso7816.NewClient(c).Send(iso7816.GetData(iso7816.MustClass(0x80), 0x9F17))
	require.NoError(t, err)
	require.True(t, trace.IsSuccess())
	assert.Equal(t, emv.EncodeProfile(johnDoe), trace.Data())
}

func TestRelay_Deactivate(t *testing.T) {
	srv, url, logs := startRelay(t, StaticProfile(johnDoe), hce.WithSelectGating())
	c := dial(t, url)

	_, err := c.Transmit(tlv.Hex("00 A4 04 00 07 F0 01 02 03 04 05 06"))
	require.NoError(t, err)

	require.NoError(t, c.Deactivate(hce.Deselected))

	assert.Eventually(t, func() bool { return len(srv.Sessions()) == 0 }, time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), `msg="Deactivated: Deselected"`)
}

func TestRelay_LinkLoss(t *testing.T) {
	srv, url, logs := startRelay(t, StaticProfile(johnDoe))
	c := dial(t, url)
	require.NoError(t, c.Close())

	assert.Eventually(t, func() bool {
		return len(srv.Sessions()) == 0 && strings.Contains(logs.String(), `msg="Deactivated: Link Loss"`)
	}, time.Second, 10*time.Millisecond)
}

func TestRelay_ProfileSnapshotPerSession(t *testing.T) {
	var mu sync.Mutex
	current := johnDoe
	source := func() (profile.Profile, error) {
		mu.Lock()
		defer mu.Unlock()
		return current, nil
	}

	_, url, _ := startRelay(t, source)
	first := dial(t, url)
	defer first.Close()

	mu.Lock()
	current = profile.Profile{CardholderName: "JANE ROE"}
	mu.Unlock()

	second := dial(t, url)
	defer second.Close()

	readCmd := tlv.Hex("00 B2 01 0C 00")
	r1, err := first.Transmit(readCmd)
	require.NoError(t, err)
	r2, err := second.Transmit(readCmd)
	require.NoError(t, err)

	assert.Equal(t, hce.Respond(hce.ReadRecord, johnDoe), r1)
	assert.Equal(t, hce.Respond(hce.ReadRecord, profile.Profile{CardholderName: "JANE ROE"}), r2)
}

func TestRelay_RejectedProfile(t *testing.T) {
	_, url, _ := startRelay(t, StaticProfile(profile.Profile{CardholderName: strings.Repeat("A", 300)}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, url)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemote))

	_, url, _ = startRelay(t, func() (profile.Profile, error) { return profile.Profile{}, errors.New("store offline") })
	_, err = Dial(ctx, url)
	require.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "store offline")
}

func TestRelay_MalformedFrames(t *testing.T) {
	_, url, _ := startRelay(t, StaticProfile(johnDoe))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, TypeSession, hello.Type)

	tests := []struct {
		name  string
		frame string
		id    string
	}{
		{"Not JSON", "{", ""},
		{"Bad hex", `{"type":"apdu","id":"r1","apdu":"ZZ"}`, "r1"},
		{"Unknown type", `{"type":"ping","id":"r2"}`, "r2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))

			var msg Message
			require.NoError(t, conn.ReadJSON(&msg))
			assert.Equal(t, TypeError, msg.Type)
			assert.Equal(t, tt.id, msg.ID)
			assert.NotEmpty(t, msg.Error)
		})
	}

	// The session survives malformed frames.
	require.NoError(t, conn.WriteJSON(Message{Type: TypeAPDU, ID: "ok", APDU: "00B2010C00"}))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypeRAPDU, msg.Type)
	assert.Equal(t, "ok", msg.ID)
}

func TestServer_Health(t *testing.T) {
	srv := NewServer(StaticProfile(johnDoe), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":[]}`, rec.Body.String())
}

func TestServer_CloseAll(t *testing.T) {
	srv, url, _ := startRelay(t, StaticProfile(johnDoe))
	c := dial(t, url)
	defer c.Close()

	require.Eventually(t, func() bool { return len(srv.Sessions()) == 1 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, srv.CloseAll())

	_, err := c.Transmit(tlv.Hex("00 B2 01 0C 00"))
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return len(srv.Sessions()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_SessionsConcurrentReaders(t *testing.T) {
	srv, url, _ := startRelay(t, StaticProfile(johnDoe))

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = srv.Sessions()
				}
			}
		}()
	}

	clients := make([]*Client, 0, 3)
	for i := 0; i < 3; i++ {
		clients = append(clients, dial(t, url))
	}
	require.Eventually(t, func() bool { return len(srv.Sessions()) == 3 }, time.Second, 10*time.Millisecond)

	for _, c := range clients {
		require.NoError(t, c.Deactivate(hce.Deselected))
	}
	require.Eventually(t, func() bool { return len(srv.Sessions()) == 0 }, time.Second, 10*time.Millisecond)

	close(stop)
	readers.Wait()
}

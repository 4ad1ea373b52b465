package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"valuation-pipeline/internal/domain"
)

var testUpgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// performHandshake runs the server side of the auth/subscribe exchange.
func performHandshake(t *testing.T, conn *websocket.Conn, wantKey, wantTopic string) bool {
	t.Helper()

	var auth feedRequest
	if err := conn.ReadJSON(&auth); err != nil {
		t.Errorf("read auth: %v", err)
		return false
	}
	if auth.Action != "auth" || auth.Params != wantKey {
		t.Errorf("auth request = %+v", auth)
		return false
	}

	frames := `[{"ev":"status","status":"connected"},{"ev":"status","status":"auth_success"}]`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frames)); err != nil {
		t.Errorf("write status frames: %v", err)
		return false
	}

	var sub feedRequest
	if err := conn.ReadJSON(&sub); err != nil {
		t.Errorf("read subscribe: %v", err)
		return false
	}
	if sub.Action != "subscribe" || sub.Params != wantTopic {
		t.Errorf("subscribe request = %+v", sub)
		return false
	}
	return true
}

// holdOpen blocks until the client closes the socket.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestConnector_AuthenticatesSubscribesAndStreamsBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !performHandshake(t, conn, "test-key", "AM.*") {
			return
		}

		bars := `[{"ev":"AM","sym":"AAPL","h":0.8,"l":0.7},{"ev":"AM","sym":"MSFT","h":2,"l":1}]`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(bars)); err != nil {
			return
		}
		holdOpen(conn)
	}))
	defer srv.Close()

	received := make(chan domain.BarUpdate, 8)
	c := NewConnector(EquityProfile(wsURL(srv)), "test-key", func(b domain.BarUpdate) {
		received <- b
	}, zap.NewNop(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	var got []domain.BarUpdate
	for len(got) < 2 {
		select {
		case bar := <-received:
			got = append(got, bar)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out with %d bars", len(got))
		}
	}
	if got[0].Ticker != "AAPL" || got[1].Ticker != "MSFT" {
		t.Errorf("bars = %q, %q", got[0].Ticker, got[1].Ticker)
	}
	if got[0].High != 0.8 || got[0].Low != 0.7 {
		t.Errorf("first bar high/low = %v/%v", got[0].High, got[0].Low)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestConnector_FatalOnAuthRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var auth feedRequest
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		frames := `[{"ev":"status","status":"connected"},{"ev":"status","status":"auth_failed","message":"invalid key"}]`
		conn.WriteMessage(websocket.TextMessage, []byte(frames))
		holdOpen(conn)
	}))
	defer srv.Close()

	c := NewConnector(EquityProfile(wsURL(srv)), "bad-key", func(domain.BarUpdate) {
		t.Error("no bars expected")
	}, zap.NewNop(), nil, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrHandshake) {
			t.Errorf("Run returned %v, want ErrHandshake", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return on auth rejection")
	}
}

func TestConnector_ReconnectsAfterDisconnect(t *testing.T) {
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !performHandshake(t, conn, "test-key", "XA.*") {
			return
		}

		// First connection drops straight after the handshake; the
		// connector must redial and redo the handshake from scratch.
		if atomic.AddInt32(&conns, 1) == 1 {
			return
		}
		bar := `[{"ev":"XA","pair":"X:BTC-USD","h":50100,"l":49900}]`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(bar)); err != nil {
			return
		}
		holdOpen(conn)
	}))
	defer srv.Close()

	received := make(chan domain.BarUpdate, 1)
	config := DefaultConnectorConfig()
	config.ReconnectDelay = 10 * time.Millisecond
	c := NewConnector(CryptoProfile(wsURL(srv)), "test-key", func(b domain.BarUpdate) {
		received <- b
	}, zap.NewNop(), &config, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	select {
	case bar := <-received:
		if bar.Ticker != "X:BTC-USD" {
			t.Errorf("ticker = %q", bar.Ticker)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no bar after reconnect")
	}
	if n := atomic.LoadInt32(&conns); n < 2 {
		t.Errorf("connections = %d, want >= 2", n)
	}

	cancel()
	<-errCh
}

func TestConnector_IgnoresNonBarFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !performHandshake(t, conn, "test-key", "AM.*") {
			return
		}

		frames := `[{"ev":"status","status":"success","message":"subscribed to: AM.*"},{"ev":"T","sym":"AAPL","p":0.75},{"ev":"AM","sym":"AAPL","h":0.8,"l":0.7}]`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frames)); err != nil {
			return
		}
		holdOpen(conn)
	}))
	defer srv.Close()

	received := make(chan domain.BarUpdate, 8)
	c := NewConnector(EquityProfile(wsURL(srv)), "test-key", func(b domain.BarUpdate) {
		received <- b
	}, zap.NewNop(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case bar := <-received:
		if bar.Ticker != "AAPL" || bar.High != 0.8 {
			t.Errorf("bar = %+v", bar)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bar frame was not delivered")
	}

	select {
	case extra := <-received:
		t.Errorf("unexpected extra bar %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

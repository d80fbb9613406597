package bundled

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marketscope/voiceagent/pkg/audio"
	"github.com/marketscope/voiceagent/pkg/voice"
)

// newFakeBackend spins up a local WebSocket server playing the provider's
// role. The handler is invoked once per accepted connection.
func newFakeBackend(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// drainClient keeps reading client messages until the connection drops, so
// uplink audio does not block the fake backend.
func drainClient(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// testVoiceConfig returns a config wired to mock audio devices, suitable for
// exercising adapters against a fake backend.
func testVoiceConfig(t *testing.T) (voice.Config, *audio.MockSink) {
	t.Helper()

	src := audio.NewMockSource(audio.DefaultCaptureConfig(), nil)
	sink := audio.NewMockSink(audio.DefaultPlaybackConfig(), nil)

	cfg := voice.DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.SystemPrompt = "You are a test assistant."
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.Source = src
	cfg.Sink = sink
	return cfg, sink
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

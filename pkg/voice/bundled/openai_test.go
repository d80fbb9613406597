package bundled

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marketscope/voiceagent/pkg/audio"
	"github.com/marketscope/voiceagent/pkg/voice"
)

// openaiHandshake plays the server side of session setup: announce the
// session, then consume the client's session.update.
func openaiHandshake(conn *websocket.Conn) (map[string]any, bool) {
	if err := conn.WriteJSON(map[string]any{"type": "session.created"}); err != nil {
		return nil, false
	}
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, false
		}
		if msg["type"] == "session.update" {
			return msg, true
		}
	}
}

func TestOpenAIMissingAPIKey(t *testing.T) {
	cfg := voice.DefaultOpenAIConfig()
	if _, err := NewOpenAI(cfg); err != voice.ErrMissingAPIKey {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestOpenAISessionConfiguration(t *testing.T) {
	sessions := make(chan map[string]any, 1)

	url := newFakeBackend(t, func(conn *websocket.Conn) {
		msg, ok := openaiHandshake(conn)
		if !ok {
			return
		}
		sessions <- msg
		drainClient(conn)
	})

	old := openaiRealtimeURL
	openaiRealtimeURL = url
	t.Cleanup(func() { openaiRealtimeURL = old })

	cfg, _ := testVoiceConfig(t)
	cfg.Tools = sampleTools()

	o, err := NewOpenAI(cfg)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	if err := o.Connect(context.Background(), voice.Callbacks{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer o.Disconnect()

	if got := o.ActiveModel(); got != openaiDefaultModel {
		t.Errorf("ActiveModel = %q, want %q", got, openaiDefaultModel)
	}

	select {
	case msg := <-sessions:
		session, ok := msg["session"].(map[string]any)
		if !ok {
			t.Fatalf("session.update missing session object: %v", msg)
		}
		if session["voice"] != openaiDefaultVoice {
			t.Errorf("voice = %v, want %v", session["voice"], openaiDefaultVoice)
		}
		td, _ := session["turn_detection"].(map[string]any)
		if td["type"] != "server_vad" {
			t.Errorf("turn_detection.type = %v", td["type"])
		}
		tools, _ := session["tools"].([]any)
		if len(tools) != len(sampleTools()) {
			t.Errorf("session carries %d tools, want %d", len(tools), len(sampleTools()))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("session.update never arrived")
	}
}

func TestOpenAIAudioAndTranscript(t *testing.T) {
	type pair struct{ user, agent string }
	pairs := make(chan pair, 4)
	pcm := audio.SamplesToBytes(make([]int16, 2400)) // 100ms at 24 kHz

	url := newFakeBackend(t, func(conn *websocket.Conn) {
		if _, ok := openaiHandshake(conn); !ok {
			return
		}
		conn.WriteJSON(map[string]any{
			"type":       "conversation.item.input_audio_transcription.completed",
			"transcript": "how are margins trending",
		})
		conn.WriteJSON(map[string]any{
			"type":  "response.audio_transcript.delta",
			"delta": "Margins are up ",
		})
		conn.WriteJSON(map[string]any{
			"type":  "response.audio_transcript.delta",
			"delta": "2.3 points.",
		})
		conn.WriteJSON(map[string]any{
			"type":  "response.audio.delta",
			"delta": audio.EncodeBase64(pcm),
		})
		conn.WriteJSON(map[string]any{"type": "response.done"})
		drainClient(conn)
	})

	old := openaiRealtimeURL
	openaiRealtimeURL = url
	t.Cleanup(func() { openaiRealtimeURL = old })

	cfg, sink := testVoiceConfig(t)
	o, err := NewOpenAI(cfg)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	audioChunks := make(chan audio.Chunk, 8)
	cb := voice.Callbacks{
		OnTranscription: func(user, agent string) { pairs <- pair{user, agent} },
		OnAudioData:     func(c audio.Chunk) { audioChunks <- c },
	}
	if err := o.Connect(context.Background(), cb); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer o.Disconnect()

	select {
	case p := <-pairs:
		if p.user != "how are margins trending" {
			t.Errorf("user transcript = %q", p.user)
		}
		if p.agent != "Margins are up 2.3 points." {
			t.Errorf("agent transcript = %q", p.agent)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for transcription")
	}

	select {
	case c := <-audioChunks:
		if c.SampleRate != cfg.OutputSampleRate {
			t.Errorf("chunk sample rate = %d, want %d", c.SampleRate, cfg.OutputSampleRate)
		}
		if len(c.Samples) != 2400 {
			t.Errorf("chunk has %d samples, want 2400", len(c.Samples))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for audio")
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(sink.Written()) > 0 }) {
		t.Error("no audio reached the sink")
	}
}

func TestOpenAISpeechStartedCancelsResponse(t *testing.T) {
	cancels := make(chan struct{}, 1)
	pcm := audio.SamplesToBytes(make([]int16, 24000)) // 1s at 24 kHz

	url := newFakeBackend(t, func(conn *websocket.Conn) {
		if _, ok := openaiHandshake(conn); !ok {
			return
		}
		for i := 0; i < 3; i++ {
			conn.WriteJSON(map[string]any{
				"type":  "response.audio.delta",
				"delta": audio.EncodeBase64(pcm),
			})
		}
		conn.WriteJSON(map[string]any{"type": "input_audio_buffer.speech_started"})

		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg["type"] == "response.cancel" {
				select {
				case cancels <- struct{}{}:
				default:
				}
			}
		}
	})

	old := openaiRealtimeURL
	openaiRealtimeURL = url
	t.Cleanup(func() { openaiRealtimeURL = old })

	cfg, sink := testVoiceConfig(t)
	o, err := NewOpenAI(cfg)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	if err := o.Connect(context.Background(), voice.Callbacks{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer o.Disconnect()

	select {
	case <-cancels:
	case <-time.After(3 * time.Second):
		t.Fatal("response.cancel never sent on speech_started")
	}

	if !waitFor(t, time.Second, func() bool {
		return o.Scheduler().ActiveCount() == 0
	}) {
		t.Errorf("scheduler still has %d live chunks after barge-in", o.Scheduler().ActiveCount())
	}
	if sink.ClearCount() == 0 {
		t.Error("sink buffer was never cleared on barge-in")
	}
	if o.Metrics().Interruptions == 0 {
		t.Error("interruption not counted")
	}
}

func TestOpenAIFunctionCallBridge(t *testing.T) {
	outputs := make(chan map[string]any, 1)

	url := newFakeBackend(t, func(conn *websocket.Conn) {
		if _, ok := openaiHandshake(conn); !ok {
			return
		}
		args, _ := json.Marshal(map[string]any{"tier": "E1"})
		conn.WriteJSON(map[string]any{
			"type":      "response.function_call_arguments.done",
			"name":      "get_segment_details",
			"call_id":   "call-42",
			"arguments": string(args),
		})

		sawOutput := false
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg["type"] {
			case "conversation.item.create":
				sawOutput = true
				if item, ok := msg["item"].(map[string]any); ok {
					select {
					case outputs <- item:
					default:
					}
				}
			case "response.create":
				if !sawOutput {
					// response.create must follow the tool output
					return
				}
			}
		}
	})

	old := openaiRealtimeURL
	openaiRealtimeURL = url
	t.Cleanup(func() { openaiRealtimeURL = old })

	cfg, _ := testVoiceConfig(t)
	o, err := NewOpenAI(cfg)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	cb := voice.Callbacks{
		OnToolCall: func(call voice.FunctionCall) (any, error) {
			if call.Arguments["tier"] != "E1" {
				t.Errorf("arguments = %v", call.Arguments)
			}
			return map[string]any{"tier": "e1", "arpu": "$120"}, nil
		},
	}
	if err := o.Connect(context.Background(), cb); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer o.Disconnect()

	select {
	case item := <-outputs:
		if item["type"] != "function_call_output" {
			t.Errorf("item type = %v", item["type"])
		}
		if item["call_id"] != "call-42" {
			t.Errorf("call_id = %v", item["call_id"])
		}
		var payload map[string]any
		output, _ := item["output"].(string)
		if err := json.Unmarshal([]byte(output), &payload); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if payload["arpu"] != "$120" {
			t.Errorf("payload = %v", payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for function_call_output")
	}
}

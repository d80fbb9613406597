package bundled

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marketscope/voiceagent/internal/log"
	"github.com/marketscope/voiceagent/pkg/audio"
	"github.com/marketscope/voiceagent/pkg/voice"
)

// openaiRealtimeURL is overridable so tests can dial a local server.
var openaiRealtimeURL = "wss://api.openai.com/v1/realtime"

const (
	openaiDefaultModel  = "gpt-4o-realtime-preview"
	openaiDefaultVoice  = "alloy"
	openaiTranscription = "whisper-1"
)

// OpenAI implements voice.Adapter using the OpenAI Realtime API over
// WebSocket. Server-side VAD drives turn taking; the adapter configures the
// session after the server announces it.
type OpenAI struct {
	cfg voice.Config
	cb  voice.Callbacks

	ws   *websocket.Conn
	wsMu sync.Mutex

	mu          sync.RWMutex
	connected   bool
	closed      bool
	activeModel string
	ctx         context.Context
	cancel      context.CancelFunc

	source      audio.Source
	sink        audio.Sink
	sched       *audio.Scheduler
	ownsDevices bool

	// Per-turn transcript state, touched only by the read loop.
	userText  string
	agentText strings.Builder

	metrics *voice.MetricsCollector
}

// NewOpenAI creates a new OpenAI Realtime adapter.
func NewOpenAI(cfg voice.Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, voice.ErrMissingAPIKey
	}

	return &OpenAI{
		cfg:     cfg,
		metrics: voice.NewMetricsCollector(),
	}, nil
}

// Provider returns "openai".
func (o *OpenAI) Provider() voice.Provider { return voice.ProviderOpenAI }

// ActiveModel returns the model the session was opened with.
func (o *OpenAI) ActiveModel() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activeModel
}

// Connect dials the Realtime API, waits for session.created, and pushes the
// session configuration before audio starts flowing.
func (o *OpenAI) Connect(ctx context.Context, cb voice.Callbacks) error {
	o.mu.Lock()
	if o.connected {
		o.mu.Unlock()
		return voice.ErrAlreadyConnected
	}
	o.cb = cb
	o.mu.Unlock()

	model := o.cfg.Model
	if model == "" {
		model = openaiDefaultModel
	}

	timeout := o.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	url := fmt.Sprintf("%s?model=%s", openaiRealtimeURL, model)
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("voice/openai: dial: %w", err)
	}

	// The server speaks first: wait for session.created before configuring.
	conn.SetReadDeadline(time.Now().Add(timeout))
	if err := awaitEvent(conn, "session.created"); err != nil {
		conn.Close()
		return fmt.Errorf("voice/openai: handshake: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	if err := conn.WriteJSON(o.sessionUpdate()); err != nil {
		conn.Close()
		return fmt.Errorf("voice/openai: configure session: %w", err)
	}

	o.ctx, o.cancel = context.WithCancel(context.Background())

	if err := o.startAudio(); err != nil {
		conn.Close()
		o.cancel()
		return fmt.Errorf("voice/openai: audio devices: %w", err)
	}

	o.mu.Lock()
	o.ws = conn
	o.connected = true
	o.closed = false
	o.activeModel = model
	o.mu.Unlock()

	go o.readLoop()
	go o.captureLoop()

	if o.cb.OnOpen != nil {
		o.cb.OnOpen()
	}

	log.Info("openai realtime connected", "model", model)
	return nil
}

// awaitEvent reads until an event with the given type arrives. An error
// event aborts the wait.
func awaitEvent(conn *websocket.Conn, eventType string) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg["type"] {
		case eventType:
			return nil
		case "error":
			if errData, ok := msg["error"].(map[string]any); ok {
				return fmt.Errorf("server error: %v", errData["message"])
			}
			return fmt.Errorf("server error: %v", msg)
		}
	}
}

func (o *OpenAI) sessionUpdate() map[string]any {
	voiceName := o.cfg.Voice
	if voiceName == "" {
		voiceName = openaiDefaultVoice
	}

	session := map[string]any{
		"modalities":          []string{"text", "audio"},
		"instructions":        o.cfg.SystemPrompt,
		"voice":               voiceName,
		"input_audio_format":  "pcm16",
		"output_audio_format": "pcm16",
		"input_audio_transcription": map[string]any{
			"model": openaiTranscription,
		},
		"turn_detection": map[string]any{
			"type":                "server_vad",
			"threshold":           o.cfg.VADThreshold,
			"prefix_padding_ms":   o.cfg.VADPrefixPadding.Milliseconds(),
			"silence_duration_ms": o.cfg.VADSilenceDuration.Milliseconds(),
		},
	}

	if tools := openaiTools(o.cfg.Tools); len(tools) > 0 {
		session["tools"] = tools
		session["tool_choice"] = "auto"
	}

	return map[string]any{
		"type":    "session.update",
		"session": session,
	}
}

func (o *OpenAI) startAudio() error {
	if o.cfg.Source != nil {
		o.source = o.cfg.Source
	} else {
		cfg := audio.DefaultCaptureConfig()
		cfg.SampleRate = o.cfg.InputSampleRate
		src, err := audio.NewSource(cfg, log.L())
		if err != nil {
			return err
		}
		o.source = src
		o.ownsDevices = true
	}

	if o.cfg.Sink != nil {
		o.sink = o.cfg.Sink
	} else {
		cfg := audio.DefaultPlaybackConfig()
		cfg.SampleRate = o.cfg.OutputSampleRate
		sink, err := audio.NewSink(cfg, log.L())
		if err != nil {
			return err
		}
		o.sink = sink
		o.ownsDevices = true
	}

	if err := o.source.Start(o.ctx); err != nil {
		return err
	}
	if err := o.sink.Start(o.ctx); err != nil {
		o.source.Stop()
		return err
	}

	o.sched = audio.NewScheduler(o.sink, log.L())
	return nil
}

func (o *OpenAI) captureLoop() {
	for chunk := range o.source.Stream() {
		samples := chunk.Samples
		if chunk.SampleRate != o.cfg.InputSampleRate {
			samples = audio.Resample(samples, chunk.SampleRate, o.cfg.InputSampleRate)
		}

		o.metrics.IncrementAudioIn()

		msg := map[string]any{
			"type":  "input_audio_buffer.append",
			"audio": audio.EncodeBase64(audio.SamplesToBytes(samples)),
		}

		if err := o.sendJSON(msg); err != nil {
			if !o.isClosed() {
				log.Debug("openai uplink send failed", "err", err)
			}
			return
		}
	}
}

func (o *OpenAI) readLoop() {
	o.mu.RLock()
	ws := o.ws
	o.mu.RUnlock()
	if ws == nil {
		return
	}

	for {
		if o.isClosed() {
			return
		}

		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !o.isClosed() && o.cb.OnError != nil {
				o.cb.OnError(fmt.Errorf("voice/openai: transport: %w", err))
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug("openai: unparseable event", "err", err)
			continue
		}

		o.handleEvent(msg)
	}
}

func (o *OpenAI) handleEvent(msg map[string]any) {
	eventType, _ := msg["type"].(string)

	switch eventType {
	case "input_audio_buffer.speech_started":
		// User started talking over the agent: cancel the in-flight
		// response and everything still queued for playback.
		o.metrics.MarkSpeechEnd()
		o.bargeIn()

	case "conversation.item.input_audio_transcription.completed":
		if text, ok := msg["transcript"].(string); ok {
			o.userText = strings.TrimSpace(text)
			o.metrics.MarkTranscript()
		}

	case "response.audio_transcript.delta":
		if delta, ok := msg["delta"].(string); ok {
			o.metrics.MarkFirstText()
			o.agentText.WriteString(delta)
		}

	case "response.audio.delta":
		if delta, ok := msg["delta"].(string); ok {
			o.handleAudioDelta(delta)
		}

	case "response.function_call_arguments.done":
		o.handleFunctionCall(msg)

	case "response.done":
		o.finishTurn()

	case "error":
		if errData, ok := msg["error"].(map[string]any); ok {
			log.Warn("openai: server error", "err", errData["message"])
			if o.cb.OnError != nil {
				o.cb.OnError(fmt.Errorf("voice/openai: %v", errData["message"]))
			}
		}

	default:
		if o.cfg.Debug {
			log.Debug("openai: unhandled event", "type", eventType)
		}
	}
}

func (o *OpenAI) handleAudioDelta(delta string) {
	pcm := audio.DecodeBase64(delta)
	if len(pcm) == 0 {
		return
	}

	chunk := audio.DecodePCM16(pcm, o.cfg.OutputSampleRate, 1)
	o.metrics.MarkFirstAudio()
	o.metrics.IncrementAudioOut()

	if o.cb.OnAudioData != nil {
		o.cb.OnAudioData(chunk)
	}
	o.sched.Schedule(chunk)
}

func (o *OpenAI) bargeIn() {
	if err := o.sendJSON(map[string]any{"type": "response.cancel"}); err != nil {
		log.Debug("openai: response.cancel failed", "err", err)
	}
	o.sched.CancelAll()
	o.agentText.Reset()
	o.metrics.IncrementInterruptions()
}

func (o *OpenAI) finishTurn() {
	user := o.userText
	agent := strings.TrimSpace(o.agentText.String())
	o.userText = ""
	o.agentText.Reset()

	o.metrics.MarkResponseDone()

	if (user != "" || agent != "") && o.cb.OnTranscription != nil {
		o.cb.OnTranscription(user, agent)
	}
}

// handleFunctionCall bridges a completed function call to the handler and
// sends exactly one function_call_output, then asks for a new response so
// the model can speak the result.
func (o *OpenAI) handleFunctionCall(msg map[string]any) {
	name, _ := msg["name"].(string)
	callID, _ := msg["call_id"].(string)
	argsRaw, _ := msg["arguments"].(string)

	var args map[string]any
	if argsRaw != "" {
		if err := json.Unmarshal([]byte(argsRaw), &args); err != nil {
			args = nil
		}
	}

	result := o.cb.CallTool(voice.FunctionCall{
		ID:        callID,
		Name:      name,
		Arguments: args,
	})

	output, err := json.Marshal(result)
	if err != nil {
		output = []byte(`{"error": "unserializable tool result"}`)
	}

	item := map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  string(output),
		},
	}
	if err := o.sendJSON(item); err != nil {
		if o.cb.OnError != nil {
			o.cb.OnError(fmt.Errorf("voice/openai: send tool output: %w", err))
		}
		return
	}
	if err := o.sendJSON(map[string]any{"type": "response.create"}); err != nil {
		log.Debug("openai: response.create after tool failed", "err", err)
	}
}

// Disconnect tears the session down. Idempotent.
func (o *OpenAI) Disconnect() error {
	o.mu.Lock()
	if o.closed && !o.connected {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.connected = false
	ws := o.ws
	o.ws = nil
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	if o.source != nil {
		o.source.Stop()
	}
	if o.sched != nil {
		o.sched.CancelAll()
	}
	if o.sink != nil {
		o.sink.Stop()
	}
	if o.ownsDevices {
		if o.source != nil {
			o.source.Close()
		}
		if o.sink != nil {
			o.sink.Close()
		}
	}
	o.source = nil
	o.sink = nil

	var err error
	if ws != nil {
		err = ws.Close()
	}

	if o.cb.OnClose != nil {
		o.cb.OnClose()
	}
	return err
}

// Metrics returns the per-turn latency metrics snapshot.
func (o *OpenAI) Metrics() voice.Metrics {
	return o.metrics.Current()
}

// Scheduler exposes the playback scheduler for observability.
func (o *OpenAI) Scheduler() *audio.Scheduler { return o.sched }

func (o *OpenAI) isClosed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.closed
}

func (o *OpenAI) sendJSON(v any) error {
	o.wsMu.Lock()
	defer o.wsMu.Unlock()

	o.mu.RLock()
	ws := o.ws
	o.mu.RUnlock()

	if ws == nil {
		return voice.ErrNotConnected
	}
	return ws.WriteJSON(v)
}

var _ voice.Adapter = (*OpenAI)(nil)

func init() {
	voice.Register(voice.ProviderOpenAI, func(cfg voice.Config) (voice.Adapter, error) {
		return NewOpenAI(cfg)
	})
}

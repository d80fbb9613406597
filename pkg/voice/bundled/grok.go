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

// grokRealtimeURL is overridable so tests can dial a local server.
var grokRealtimeURL = "wss://api.x.ai/v1/realtime"

const (
	grokDefaultModel = "grok-4-realtime"
	grokDefaultVoice = "ara"
)

// Grok implements voice.Adapter against xAI's realtime API. The wire
// vocabulary follows the OpenAI realtime event family, but the session is
// acknowledged with session.updated and the adapter opens the conversation
// with a one-shot greeting prompt once configuration is acked.
type Grok struct {
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

	userText  string
	agentText strings.Builder

	greeted bool

	metrics *voice.MetricsCollector
}

// NewGrok creates a new Grok realtime adapter.
func NewGrok(cfg voice.Config) (*Grok, error) {
	if cfg.APIKey == "" {
		return nil, voice.ErrMissingAPIKey
	}

	return &Grok{
		cfg:     cfg,
		metrics: voice.NewMetricsCollector(),
	}, nil
}

// Provider returns "grok".
func (k *Grok) Provider() voice.Provider { return voice.ProviderGrok }

// ActiveModel returns the model the session was opened with.
func (k *Grok) ActiveModel() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.activeModel
}

// Connect dials the realtime endpoint, configures the session, and waits for
// the session.updated ack before audio starts flowing. The greeting prompt is
// sent from the read loop once the ack arrives.
func (k *Grok) Connect(ctx context.Context, cb voice.Callbacks) error {
	k.mu.Lock()
	if k.connected {
		k.mu.Unlock()
		return voice.ErrAlreadyConnected
	}
	k.cb = cb
	k.mu.Unlock()

	model := k.cfg.Model
	if model == "" {
		model = grokDefaultModel
	}

	timeout := k.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+k.cfg.APIKey)

	url := fmt.Sprintf("%s?model=%s", grokRealtimeURL, model)
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("voice/grok: dial: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	if err := awaitEvent(conn, "session.created"); err != nil {
		conn.Close()
		return fmt.Errorf("voice/grok: handshake: %w", err)
	}

	if err := conn.WriteJSON(k.sessionUpdate()); err != nil {
		conn.Close()
		return fmt.Errorf("voice/grok: configure session: %w", err)
	}

	if err := awaitEvent(conn, "session.updated"); err != nil {
		conn.Close()
		return fmt.Errorf("voice/grok: session ack: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	k.ctx, k.cancel = context.WithCancel(context.Background())

	if err := k.startAudio(); err != nil {
		conn.Close()
		k.cancel()
		return fmt.Errorf("voice/grok: audio devices: %w", err)
	}

	k.mu.Lock()
	k.ws = conn
	k.connected = true
	k.closed = false
	k.activeModel = model
	k.greeted = false
	k.mu.Unlock()

	go k.readLoop()
	go k.captureLoop()

	k.sendGreeting()

	if k.cb.OnOpen != nil {
		k.cb.OnOpen()
	}

	log.Info("grok realtime connected", "model", model)
	return nil
}

// sendGreeting asks the model to open the conversation. Sent at most once
// per session.
func (k *Grok) sendGreeting() {
	k.mu.Lock()
	if k.greeted {
		k.mu.Unlock()
		return
	}
	k.greeted = true
	greeting := k.cfg.Greeting
	k.mu.Unlock()

	if greeting == "" {
		greeting = "Greet the user briefly and ask how you can help."
	}

	msg := map[string]any{
		"type": "response.create",
		"response": map[string]any{
			"instructions": greeting,
		},
	}
	if err := k.sendJSON(msg); err != nil {
		log.Debug("grok: greeting send failed", "err", err)
	}
}

func (k *Grok) sessionUpdate() map[string]any {
	voiceName := k.cfg.Voice
	if voiceName == "" {
		voiceName = grokDefaultVoice
	}

	session := map[string]any{
		"modalities":          []string{"text", "audio"},
		"instructions":        k.cfg.SystemPrompt,
		"voice":               voiceName,
		"input_audio_format":  "pcm16",
		"output_audio_format": "pcm16",
		"input_audio_transcription": map[string]any{
			"enabled": true,
		},
		"turn_detection": map[string]any{
			"type":                "server_vad",
			"threshold":           k.cfg.VADThreshold,
			"prefix_padding_ms":   k.cfg.VADPrefixPadding.Milliseconds(),
			"silence_duration_ms": k.cfg.VADSilenceDuration.Milliseconds(),
		},
	}

	if tools := grokTools(k.cfg.Tools); len(tools) > 0 {
		session["tools"] = tools
		session["tool_choice"] = "auto"
	}

	return map[string]any{
		"type":    "session.update",
		"session": session,
	}
}

func (k *Grok) startAudio() error {
	if k.cfg.Source != nil {
		k.source = k.cfg.Source
	} else {
		cfg := audio.DefaultCaptureConfig()
		cfg.SampleRate = k.cfg.InputSampleRate
		src, err := audio.NewSource(cfg, log.L())
		if err != nil {
			return err
		}
		k.source = src
		k.ownsDevices = true
	}

	if k.cfg.Sink != nil {
		k.sink = k.cfg.Sink
	} else {
		cfg := audio.DefaultPlaybackConfig()
		cfg.SampleRate = k.cfg.OutputSampleRate
		sink, err := audio.NewSink(cfg, log.L())
		if err != nil {
			return err
		}
		k.sink = sink
		k.ownsDevices = true
	}

	if err := k.source.Start(k.ctx); err != nil {
		return err
	}
	if err := k.sink.Start(k.ctx); err != nil {
		k.source.Stop()
		return err
	}

	k.sched = audio.NewScheduler(k.sink, log.L())
	return nil
}

func (k *Grok) captureLoop() {
	for chunk := range k.source.Stream() {
		samples := chunk.Samples
		if chunk.SampleRate != k.cfg.InputSampleRate {
			samples = audio.Resample(samples, chunk.SampleRate, k.cfg.InputSampleRate)
		}

		k.metrics.IncrementAudioIn()

		msg := map[string]any{
			"type":  "input_audio_buffer.append",
			"audio": audio.EncodeBase64(audio.SamplesToBytes(samples)),
		}

		if err := k.sendJSON(msg); err != nil {
			if !k.isClosed() {
				log.Debug("grok uplink send failed", "err", err)
			}
			return
		}
	}
}

func (k *Grok) readLoop() {
	k.mu.RLock()
	ws := k.ws
	k.mu.RUnlock()
	if ws == nil {
		return
	}

	for {
		if k.isClosed() {
			return
		}

		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !k.isClosed() && k.cb.OnError != nil {
				k.cb.OnError(fmt.Errorf("voice/grok: transport: %w", err))
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug("grok: unparseable event", "err", err)
			continue
		}

		k.handleEvent(msg)
	}
}

func (k *Grok) handleEvent(msg map[string]any) {
	eventType, _ := msg["type"].(string)

	switch eventType {
	case "input_audio_buffer.speech_started":
		k.metrics.MarkSpeechEnd()
		k.bargeIn()

	case "conversation.item.input_audio_transcription.completed":
		if text, ok := msg["transcript"].(string); ok {
			k.userText = strings.TrimSpace(text)
			k.metrics.MarkTranscript()
		}

	case "response.audio_transcript.delta":
		if delta, ok := msg["delta"].(string); ok {
			k.metrics.MarkFirstText()
			k.agentText.WriteString(delta)
		}

	case "response.audio.delta":
		if delta, ok := msg["delta"].(string); ok {
			k.handleAudioDelta(delta)
		}

	case "response.function_call_arguments.done":
		k.handleFunctionCall(msg)

	case "response.done":
		k.finishTurn()

	case "error":
		if errData, ok := msg["error"].(map[string]any); ok {
			log.Warn("grok: server error", "err", errData["message"])
			if k.cb.OnError != nil {
				k.cb.OnError(fmt.Errorf("voice/grok: %v", errData["message"]))
			}
		}

	default:
		if k.cfg.Debug {
			log.Debug("grok: unhandled event", "type", eventType)
		}
	}
}

func (k *Grok) handleAudioDelta(delta string) {
	pcm := audio.DecodeBase64(delta)
	if len(pcm) == 0 {
		return
	}

	chunk := audio.DecodePCM16(pcm, k.cfg.OutputSampleRate, 1)
	k.metrics.MarkFirstAudio()
	k.metrics.IncrementAudioOut()

	if k.cb.OnAudioData != nil {
		k.cb.OnAudioData(chunk)
	}
	k.sched.Schedule(chunk)
}

func (k *Grok) bargeIn() {
	if err := k.sendJSON(map[string]any{"type": "response.cancel"}); err != nil {
		log.Debug("grok: response.cancel failed", "err", err)
	}
	k.sched.CancelAll()
	k.agentText.Reset()
	k.metrics.IncrementInterruptions()
}

func (k *Grok) finishTurn() {
	user := k.userText
	agent := strings.TrimSpace(k.agentText.String())
	k.userText = ""
	k.agentText.Reset()

	k.metrics.MarkResponseDone()

	if (user != "" || agent != "") && k.cb.OnTranscription != nil {
		k.cb.OnTranscription(user, agent)
	}
}

func (k *Grok) handleFunctionCall(msg map[string]any) {
	name, _ := msg["name"].(string)
	callID, _ := msg["call_id"].(string)
	argsRaw, _ := msg["arguments"].(string)

	var args map[string]any
	if argsRaw != "" {
		if err := json.Unmarshal([]byte(argsRaw), &args); err != nil {
			args = nil
		}
	}

	result := k.cb.CallTool(voice.FunctionCall{
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
	if err := k.sendJSON(item); err != nil {
		if k.cb.OnError != nil {
			k.cb.OnError(fmt.Errorf("voice/grok: send tool output: %w", err))
		}
		return
	}
	if err := k.sendJSON(map[string]any{"type": "response.create"}); err != nil {
		log.Debug("grok: response.create after tool failed", "err", err)
	}
}

// Disconnect tears the session down. Idempotent.
func (k *Grok) Disconnect() error {
	k.mu.Lock()
	if k.closed && !k.connected {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.connected = false
	ws := k.ws
	k.ws = nil
	k.mu.Unlock()

	if k.cancel != nil {
		k.cancel()
	}
	if k.source != nil {
		k.source.Stop()
	}
	if k.sched != nil {
		k.sched.CancelAll()
	}
	if k.sink != nil {
		k.sink.Stop()
	}
	if k.ownsDevices {
		if k.source != nil {
			k.source.Close()
		}
		if k.sink != nil {
			k.sink.Close()
		}
	}
	k.source = nil
	k.sink = nil

	var err error
	if ws != nil {
		err = ws.Close()
	}

	if k.cb.OnClose != nil {
		k.cb.OnClose()
	}
	return err
}

// Metrics returns the per-turn latency metrics snapshot.
func (k *Grok) Metrics() voice.Metrics {
	return k.metrics.Current()
}

// Scheduler exposes the playback scheduler for observability.
func (k *Grok) Scheduler() *audio.Scheduler { return k.sched }

func (k *Grok) isClosed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.closed
}

func (k *Grok) sendJSON(v any) error {
	k.wsMu.Lock()
	defer k.wsMu.Unlock()

	k.mu.RLock()
	ws := k.ws
	k.mu.RUnlock()

	if ws == nil {
		return voice.ErrNotConnected
	}
	return ws.WriteJSON(v)
}

var _ voice.Adapter = (*Grok)(nil)

func init() {
	voice.Register(voice.ProviderGrok, func(cfg voice.Config) (voice.Adapter, error) {
		return NewGrok(cfg)
	})
}

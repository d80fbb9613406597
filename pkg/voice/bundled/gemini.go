// Package bundled provides the built-in provider adapters.
package bundled

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marketscope/voiceagent/internal/log"
	"github.com/marketscope/voiceagent/pkg/audio"
	"github.com/marketscope/voiceagent/pkg/voice"
)

// geminiLiveURL is the Gemini Live API WebSocket endpoint. A variable so
// tests can point the adapter at a local server.
var geminiLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

const (
	// Primary and fallback models. The fallback is attempted exactly once
	// when the primary fails its handshake within the timeout.
	geminiDefaultModel  = "models/gemini-2.5-flash-native-audio-preview"
	geminiFallbackModel = "models/gemini-2.0-flash-live-001"

	geminiDefaultVoice = "Puck"
)

// Gemini implements voice.Adapter using Google's Gemini Live API.
// Gemini handles VAD, ASR, LLM and TTS in a single bidirectional stream.
type Gemini struct {
	cfg voice.Config
	cb  voice.Callbacks

	// WebSocket connection
	ws   *websocket.Conn
	wsMu sync.Mutex

	// Session state
	mu          sync.RWMutex
	connected   bool
	closed      bool
	activeModel string
	ctx         context.Context
	cancel      context.CancelFunc

	// Audio pipeline
	source      audio.Source
	sink        audio.Sink
	sched       *audio.Scheduler
	ownsDevices bool

	// Per-turn transcript accumulators, touched only by the read loop.
	userText  strings.Builder
	agentText strings.Builder

	metrics *voice.MetricsCollector
}

// NewGemini creates a new Gemini Live adapter.
func NewGemini(cfg voice.Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, voice.ErrMissingAPIKey
	}

	return &Gemini{
		cfg:     cfg,
		metrics: voice.NewMetricsCollector(),
	}, nil
}

// Provider returns "gemini".
func (g *Gemini) Provider() voice.Provider { return voice.ProviderGemini }

// ActiveModel returns the model actually negotiated. After a fallback it
// names the fallback model, not the requested one.
func (g *Gemini) ActiveModel() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.activeModel
}

// Connect dials Gemini Live and negotiates the session. The requested model
// is tried first with a bounded handshake timeout; on failure the designated
// fallback model is tried once. If both fail, the returned error names both
// attempts.
func (g *Gemini) Connect(ctx context.Context, cb voice.Callbacks) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return voice.ErrAlreadyConnected
	}
	g.cb = cb
	g.mu.Unlock()

	primary := g.cfg.Model
	if primary == "" {
		primary = geminiDefaultModel
	}

	models := []string{primary}
	if primary != geminiFallbackModel {
		models = append(models, geminiFallbackModel)
	}

	var errs []string
	var conn *websocket.Conn
	var negotiated string

	for _, model := range models {
		c, err := g.attempt(ctx, model)
		if err == nil {
			conn = c
			negotiated = model
			break
		}
		errs = append(errs, fmt.Sprintf("%s: %v", model, err))
		log.Warn("gemini handshake failed", "model", model, "err", err)

		// Caller gave up; don't burn another handshake on the fallback.
		if ctx.Err() != nil {
			break
		}
	}

	if conn == nil {
		return fmt.Errorf("voice/gemini: all connection attempts failed: %s", strings.Join(errs, "; "))
	}

	g.ctx, g.cancel = context.WithCancel(context.Background())

	if err := g.startAudio(); err != nil {
		conn.Close()
		g.cancel()
		return fmt.Errorf("voice/gemini: audio devices: %w", err)
	}

	g.mu.Lock()
	g.ws = conn
	g.connected = true
	g.closed = false
	g.activeModel = negotiated
	g.mu.Unlock()

	go g.readLoop()
	go g.captureLoop()

	if g.cb.OnOpen != nil {
		g.cb.OnOpen()
	}

	log.Info("gemini live connected", "model", negotiated)
	return nil
}

// attempt dials, sends the session setup, and waits for setupComplete.
func (g *Gemini) attempt(ctx context.Context, model string) (*websocket.Conn, error) {
	timeout := g.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	url := fmt.Sprintf("%s?key=%s", geminiLiveURL, g.cfg.APIKey)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	if err := conn.WriteJSON(g.setupMessage(model)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	// Wait for the setupComplete ack before starting audio capture.
	conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("await setup ack: %w", err)
		}

		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if _, ok := msg["setupComplete"]; ok {
			conn.SetReadDeadline(time.Time{})
			return conn, nil
		}
		if errData, ok := msg["error"].(map[string]any); ok {
			conn.Close()
			return nil, fmt.Errorf("setup rejected: %v", errData["message"])
		}
	}
}

// setupMessage builds the one-shot session configuration.
func (g *Gemini) setupMessage(model string) map[string]any {
	voiceName := g.cfg.Voice
	if voiceName == "" {
		voiceName = geminiDefaultVoice
	}

	setup := map[string]any{
		"model": model,
		"generationConfig": map[string]any{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]any{
				"voiceConfig": map[string]any{
					"prebuiltVoiceConfig": map[string]any{
						"voiceName": voiceName,
					},
				},
			},
		},
		"systemInstruction": map[string]any{
			"parts": []map[string]any{
				{"text": g.cfg.SystemPrompt},
			},
		},
		"inputAudioTranscription":  map[string]any{},
		"outputAudioTranscription": map[string]any{},
	}

	if decls := geminiDeclarations(g.cfg.Tools); len(decls) > 0 {
		setup["tools"] = []map[string]any{
			{"functionDeclarations": decls},
		}
	}

	return map[string]any{"setup": setup}
}

func (g *Gemini) startAudio() error {
	if g.cfg.Source != nil {
		g.source = g.cfg.Source
	} else {
		cfg := audio.DefaultCaptureConfig()
		cfg.SampleRate = g.cfg.InputSampleRate
		src, err := audio.NewSource(cfg, log.L())
		if err != nil {
			return err
		}
		g.source = src
		g.ownsDevices = true
	}

	if g.cfg.Sink != nil {
		g.sink = g.cfg.Sink
	} else {
		cfg := audio.DefaultPlaybackConfig()
		cfg.SampleRate = g.cfg.OutputSampleRate
		sink, err := audio.NewSink(cfg, log.L())
		if err != nil {
			return err
		}
		g.sink = sink
		g.ownsDevices = true
	}

	if err := g.source.Start(g.ctx); err != nil {
		return err
	}
	if err := g.sink.Start(g.ctx); err != nil {
		g.source.Stop()
		return err
	}

	g.sched = audio.NewScheduler(g.sink, log.L())
	return nil
}

// captureLoop sends one uplink message per captured block.
func (g *Gemini) captureLoop() {
	for chunk := range g.source.Stream() {
		samples := chunk.Samples
		if chunk.SampleRate != g.cfg.InputSampleRate {
			samples = audio.Resample(samples, chunk.SampleRate, g.cfg.InputSampleRate)
		}

		g.metrics.IncrementAudioIn()

		msg := map[string]any{
			"realtimeInput": map[string]any{
				"mediaChunks": []map[string]any{
					{
						"mimeType": fmt.Sprintf("audio/pcm;rate=%d", g.cfg.InputSampleRate),
						"data":     audio.EncodeBase64(audio.SamplesToBytes(samples)),
					},
				},
			},
		}

		if err := g.sendJSON(msg); err != nil {
			if !g.isClosed() {
				log.Debug("gemini uplink send failed", "err", err)
			}
			return
		}
	}
}

// readLoop processes incoming messages until the connection closes.
func (g *Gemini) readLoop() {
	g.mu.RLock()
	ws := g.ws
	g.mu.RUnlock()
	if ws == nil {
		return
	}

	for {
		if g.isClosed() {
			return
		}

		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !g.isClosed() && g.cb.OnError != nil {
				g.cb.OnError(fmt.Errorf("voice/gemini: transport: %w", err))
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug("gemini: unparseable message", "err", err)
			continue
		}

		g.handleMessage(msg)
	}
}

func (g *Gemini) handleMessage(msg map[string]any) {
	if serverContent, ok := msg["serverContent"].(map[string]any); ok {
		g.handleServerContent(serverContent)
		return
	}

	if toolCall, ok := msg["toolCall"].(map[string]any); ok {
		g.handleToolCall(toolCall)
		return
	}

	if _, ok := msg["toolCallCancellation"]; ok {
		log.Debug("gemini: tool call cancelled by backend")
		return
	}

	if g.cfg.Debug {
		log.Debug("gemini: unhandled message", "msg", msg)
	}
}

func (g *Gemini) handleServerContent(content map[string]any) {
	// Barge-in: discard all pending playback before accepting new audio.
	if interrupted, ok := content["interrupted"].(bool); ok && interrupted {
		g.bargeIn()
		return
	}

	if turnComplete, ok := content["turnComplete"].(bool); ok && turnComplete {
		g.finishTurn()
		return
	}

	if modelTurn, ok := content["modelTurn"].(map[string]any); ok {
		g.handleModelTurn(modelTurn)
	}

	if in, ok := content["inputTranscription"].(map[string]any); ok {
		if text, ok := in["text"].(string); ok {
			if g.userText.Len() == 0 {
				g.metrics.MarkSpeechEnd()
			}
			g.userText.WriteString(text)
			g.metrics.MarkTranscript()
		}
	}

	if out, ok := content["outputTranscription"].(map[string]any); ok {
		if text, ok := out["text"].(string); ok {
			g.metrics.MarkFirstText()
			g.agentText.WriteString(text)
		}
	}
}

func (g *Gemini) handleModelTurn(modelTurn map[string]any) {
	parts, ok := modelTurn["parts"].([]any)
	if !ok {
		return
	}

	for _, part := range parts {
		partMap, ok := part.(map[string]any)
		if !ok {
			continue
		}

		inline, ok := partMap["inlineData"].(map[string]any)
		if !ok {
			continue
		}
		mimeType, _ := inline["mimeType"].(string)
		if !strings.HasPrefix(mimeType, "audio/pcm") {
			continue
		}
		data, _ := inline["data"].(string)

		pcm := audio.DecodeBase64(data)
		if len(pcm) == 0 {
			continue // malformed payload, play next valid chunk
		}

		chunk := audio.DecodePCM16(pcm, g.cfg.OutputSampleRate, 1)
		g.metrics.MarkFirstAudio()
		g.metrics.IncrementAudioOut()

		if g.cb.OnAudioData != nil {
			g.cb.OnAudioData(chunk)
		}
		g.sched.Schedule(chunk)
	}
}

// bargeIn cancels all playback and clears the in-progress agent transcript.
func (g *Gemini) bargeIn() {
	g.sched.CancelAll()
	g.agentText.Reset()
	g.metrics.IncrementInterruptions()
	log.Debug("gemini: interrupted, playback cancelled")
}

// finishTurn emits the accumulated transcripts exactly once per turn.
func (g *Gemini) finishTurn() {
	user := strings.TrimSpace(g.userText.String())
	agent := strings.TrimSpace(g.agentText.String())
	g.userText.Reset()
	g.agentText.Reset()

	g.metrics.MarkResponseDone()

	if (user != "" || agent != "") && g.cb.OnTranscription != nil {
		g.cb.OnTranscription(user, agent)
	}
}

// handleToolCall bridges function calls to the registered handler. Every
// call gets exactly one functionResponse, success or not.
func (g *Gemini) handleToolCall(toolCall map[string]any) {
	functionCalls, ok := toolCall["functionCalls"].([]any)
	if !ok {
		return
	}

	var responses []map[string]any
	for _, fc := range functionCalls {
		fcMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}

		name, _ := fcMap["name"].(string)
		id, _ := fcMap["id"].(string)
		args, _ := fcMap["args"].(map[string]any)

		result := g.cb.CallTool(voice.FunctionCall{
			ID:        id,
			Name:      name,
			Arguments: args,
		})

		responses = append(responses, map[string]any{
			"id":       id,
			"name":     name,
			"response": map[string]any{"output": result},
		})
	}

	if len(responses) == 0 {
		return
	}

	msg := map[string]any{
		"toolResponse": map[string]any{
			"functionResponses": responses,
		},
	}
	if err := g.sendJSON(msg); err != nil && g.cb.OnError != nil {
		g.cb.OnError(fmt.Errorf("voice/gemini: send tool response: %w", err))
	}
}

// Disconnect tears the session down. Safe to call repeatedly or before
// Connect ever succeeded.
func (g *Gemini) Disconnect() error {
	g.mu.Lock()
	if g.closed && !g.connected {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.connected = false
	ws := g.ws
	g.ws = nil
	g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
	}
	if g.source != nil {
		g.source.Stop()
	}
	if g.sched != nil {
		g.sched.CancelAll()
	}
	if g.sink != nil {
		g.sink.Stop()
	}
	if g.ownsDevices {
		if g.source != nil {
			g.source.Close()
		}
		if g.sink != nil {
			g.sink.Close()
		}
	}
	g.source = nil
	g.sink = nil

	var err error
	if ws != nil {
		err = ws.Close()
	}

	if g.cb.OnClose != nil {
		g.cb.OnClose()
	}
	return err
}

// Metrics returns the per-turn latency metrics collector snapshot.
func (g *Gemini) Metrics() voice.Metrics {
	return g.metrics.Current()
}

// Scheduler exposes the playback scheduler for observability.
func (g *Gemini) Scheduler() *audio.Scheduler { return g.sched }

func (g *Gemini) isClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

func (g *Gemini) sendJSON(v any) error {
	g.wsMu.Lock()
	defer g.wsMu.Unlock()

	g.mu.RLock()
	ws := g.ws
	g.mu.RUnlock()

	if ws == nil {
		return voice.ErrNotConnected
	}
	return ws.WriteJSON(v)
}

// Ensure Gemini implements voice.Adapter at compile time.
var _ voice.Adapter = (*Gemini)(nil)

func init() {
	voice.Register(voice.ProviderGemini, func(cfg voice.Config) (voice.Adapter, error) {
		return NewGemini(cfg)
	})
}

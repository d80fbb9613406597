// Package session owns the lifecycle of one voice conversation: at most one
// active adapter, the transcript history, and the externally observed
// connection state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketscope/voiceagent/internal/log"
	"github.com/marketscope/voiceagent/pkg/audio"
	"github.com/marketscope/voiceagent/pkg/tools"
	"github.com/marketscope/voiceagent/pkg/voice"
)

// Snapshot is the read-only state surface exposed to observers. LastAudio
// is a rolling reference to the most recent downlink chunk, for
// visualization only.
type Snapshot struct {
	State      voice.ConnectionState
	Transcript []voice.TranscriptEntry
	LastAudio  audio.Chunk
	Err        error
	Provider   voice.Provider
	Model      string
}

// Options configures a Controller.
type Options struct {
	// Configs holds the per-provider connection configuration. Tool
	// declarations are filled in from Dispatcher at connect time.
	Configs map[voice.Provider]voice.Config

	// DefaultProvider is used by Toggle and by Connect with an empty
	// provider id.
	DefaultProvider voice.Provider

	// Dispatcher handles tool calls from any provider. Optional.
	Dispatcher *tools.Dispatcher

	// OnChange is invoked with a fresh snapshot after every observable
	// state change. Called from controller and adapter goroutines;
	// implementations must be quick and must not call back into the
	// controller. Optional.
	OnChange func(Snapshot)
}

// Controller drives one voice session at a time. Connect tears down any
// existing adapter before creating the next one, so "at most one active
// adapter" holds by construction.
type Controller struct {
	opts Options

	// connMu serializes session lifecycles. Connect holds it across the
	// whole teardown/create/handshake/install sequence so two overlapping
	// connects cannot each leave a live adapter behind.
	connMu sync.Mutex

	mu         sync.Mutex
	adapter    voice.Adapter
	state      voice.ConnectionState
	transcript []voice.TranscriptEntry
	lastAudio  audio.Chunk
	err        error
	provider   voice.Provider
	model      string
}

// NewController creates a controller in the disconnected state.
func NewController(opts Options) *Controller {
	if opts.DefaultProvider == "" {
		opts.DefaultProvider = voice.ProviderGemini
	}
	return &Controller{
		opts:  opts,
		state: voice.StateDisconnected,
	}
}

// Connect establishes a session with the given provider, tearing down any
// existing session first. An empty provider selects the default.
func (c *Controller) Connect(ctx context.Context, provider voice.Provider) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if provider == "" {
		provider = c.opts.DefaultProvider
	}

	c.mu.Lock()
	prev := c.adapter
	c.adapter = nil
	c.mu.Unlock()

	if prev != nil {
		if err := prev.Disconnect(); err != nil {
			log.Warn("teardown before reconnect failed", "err", err)
		}
	}

	cfg, ok := c.opts.Configs[provider]
	if !ok {
		err := voice.ErrUnknownProvider
		c.fail(provider, err)
		return err
	}
	if c.opts.Dispatcher != nil {
		cfg.Tools = c.opts.Dispatcher.Declarations()
	}

	c.transition(voice.StateConnecting)
	c.mu.Lock()
	c.provider = provider
	c.model = ""
	c.err = nil
	c.mu.Unlock()
	c.notify()

	adapter, err := voice.New(provider, cfg)
	if err != nil {
		c.fail(provider, err)
		return err
	}

	if err := adapter.Connect(ctx, c.callbacks(adapter)); err != nil {
		c.fail(provider, err)
		return err
	}

	c.mu.Lock()
	c.adapter = adapter
	c.model = adapter.ActiveModel()
	c.mu.Unlock()

	c.transition(voice.StateConnected)
	c.notify()
	return nil
}

// callbacks wires adapter events into controller state. The adapter
// argument pins which session the callbacks belong to, so events from a
// torn-down adapter cannot clobber a newer session.
func (c *Controller) callbacks(adapter voice.Adapter) voice.Callbacks {
	return voice.Callbacks{
		OnClose: func() {
			if !c.isCurrent(adapter) {
				return
			}
			c.transition(voice.StateDisconnected)
			c.notify()
		},
		OnError: func(err error) {
			if !c.isCurrent(adapter) {
				return
			}
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			c.transition(voice.StateError)
			c.notify()
			log.Error("session transport error", "provider", adapter.Provider(), "err", err)
		},
		OnAudioData: func(chunk audio.Chunk) {
			if !c.isCurrent(adapter) {
				return
			}
			c.mu.Lock()
			c.lastAudio = chunk
			c.mu.Unlock()
		},
		OnTranscription: func(user, agent string) {
			if !c.isCurrent(adapter) {
				return
			}
			c.appendTranscript(user, agent)
			c.notify()
		},
		OnToolCall: func(call voice.FunctionCall) (any, error) {
			if c.opts.Dispatcher == nil {
				return map[string]any{"error": "no tool handlers configured"}, nil
			}
			return c.opts.Dispatcher.Dispatch(context.Background(), call), nil
		},
	}
}

// isCurrent reports whether the adapter is still the active one. During
// Connect the adapter field is only set after the handshake, so callbacks
// fired mid-handshake also pass.
func (c *Controller) isCurrent(adapter voice.Adapter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapter == nil || c.adapter == adapter
}

func (c *Controller) appendTranscript(user, agent string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if user != "" {
		c.transcript = append(c.transcript, voice.TranscriptEntry{
			ID:        uuid.NewString(),
			Speaker:   voice.SpeakerUser,
			Text:      user,
			Timestamp: now,
		})
	}
	if agent != "" {
		c.transcript = append(c.transcript, voice.TranscriptEntry{
			ID:        uuid.NewString(),
			Speaker:   voice.SpeakerAgent,
			Text:      agent,
			Timestamp: now,
		})
	}
}

// Disconnect tears down the active session, if any.
func (c *Controller) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.mu.Lock()
	adapter := c.adapter
	c.adapter = nil
	c.mu.Unlock()

	var err error
	if adapter != nil {
		err = adapter.Disconnect()
	}

	c.transition(voice.StateDisconnected)
	c.notify()
	return err
}

// Toggle connects when idle or errored and disconnects when a session is
// live or being established.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	provider := c.provider
	c.mu.Unlock()

	switch state {
	case voice.StateConnected, voice.StateConnecting:
		return c.Disconnect()
	default:
		if provider == "" {
			provider = c.opts.DefaultProvider
		}
		return c.Connect(ctx, provider)
	}
}

// ClearTranscript drops the transcript history.
func (c *Controller) ClearTranscript() {
	c.mu.Lock()
	c.transcript = nil
	c.mu.Unlock()
	c.notify()
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:      c.state,
		Transcript: append([]voice.TranscriptEntry(nil), c.transcript...),
		LastAudio:  c.lastAudio,
		Err:        c.err,
		Provider:   c.provider,
		Model:      c.model,
	}
}

// Close unconditionally attempts to disconnect. Meant for process teardown
// so audio devices and sockets are not leaked.
func (c *Controller) Close() error {
	return c.Disconnect()
}

func (c *Controller) fail(provider voice.Provider, err error) {
	c.mu.Lock()
	c.provider = provider
	c.err = err
	c.mu.Unlock()
	c.transition(voice.StateError)
	c.notify()
}

// transition applies a state change through the transition table. An
// illegal transition is logged and skipped rather than forced.
func (c *Controller) transition(to voice.ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == to {
		return
	}
	if !c.state.CanTransition(to) {
		log.Debug("illegal state transition skipped", "from", c.state, "to", to)
		return
	}
	c.state = to
}

func (c *Controller) notify() {
	if c.opts.OnChange == nil {
		return
	}
	c.opts.OnChange(c.Snapshot())
}

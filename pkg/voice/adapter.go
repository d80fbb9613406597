package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/marketscope/voiceagent/pkg/audio"
)

// Adapter is the capability contract every provider implements.
//
// At most one adapter is active per session controller; starting a new
// connection tears down the previous adapter's resources first.
type Adapter interface {
	// Provider returns the static provider identifier.
	Provider() Provider

	// ActiveModel returns the model actually negotiated, which may differ
	// from the requested one (e.g. after a fallback attempt).
	ActiveModel() string

	// Connect opens the duplex transport, negotiates the session, and
	// returns once the backend confirms readiness or the handshake
	// timeout elapses. Audio capture starts only after the ready ack.
	Connect(ctx context.Context, cb Callbacks) error

	// Disconnect releases the audio devices, closes the transport, and
	// cancels all scheduled playback. It is idempotent and always safe
	// to call, even if Connect never succeeded.
	Disconnect() error
}

// Callbacks groups the handlers the caller supplies to an adapter.
// Every field may be nil; adapters guard each invocation.
type Callbacks struct {
	// OnOpen fires when the session is negotiated and ready.
	OnOpen func()

	// OnClose fires when the session ends, locally or remotely.
	OnClose func()

	// OnError fires on transport-level faults. The adapter does not
	// retry; the session is in an error state afterwards.
	OnError func(err error)

	// OnAudioData fires once per decoded playback chunk, before
	// scheduling. Intended for visualization, not playback.
	OnAudioData func(chunk audio.Chunk)

	// OnTranscription fires exactly once per completed conversational
	// turn with the accumulated user and agent text. Either side may be
	// empty when the turn had no speech in that direction.
	OnTranscription func(userText, agentText string)

	// OnToolCall handles a tool invocation from the backend and returns
	// a JSON-serializable result. Errors are converted to error payloads
	// at the bridge; they never abort the connection.
	OnToolCall func(call FunctionCall) (any, error)
}

// CallTool invokes the tool handler, containing errors and panics. It always
// produces a JSON-serializable result so the adapter can answer the backend:
// a tool call left without a response stalls the remote turn indefinitely.
func (c *Callbacks) CallTool(call FunctionCall) (result any) {
	defer func() {
		if r := recover(); r != nil {
			result = map[string]any{"error": fmt.Sprintf("tool handler panic: %v", r)}
		}
	}()

	if c.OnToolCall == nil {
		return map[string]any{"error": "no tool handler registered"}
	}

	res, err := c.OnToolCall(call)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	if res == nil {
		return map[string]any{}
	}
	return res
}

// Factory creates an Adapter from a validated Config.
type Factory func(cfg Config) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Provider]Factory)
)

// Register installs a provider factory. Bundled implementations call this
// from init().
func Register(p Provider, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p] = f
}

// New creates an adapter for the given provider.
// Returns ErrUnknownProvider if no implementation is registered.
func New(p Provider, cfg Config) (Adapter, error) {
	cfg.Provider = p
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	factory, ok := registry[p]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}

	return factory(cfg)
}

// Providers returns the registered provider identifiers.
func Providers() []Provider {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Provider, 0, len(registry))
	for p := range registry {
		out = append(out, p)
	}
	return out
}

// Package voice provides a unified interface for realtime voice-agent
// sessions.
//
// The voice package abstracts different speech-to-speech providers behind a
// common Adapter contract, enabling switching between providers and
// consistent latency measurement across all implementations.
//
// # Supported Providers
//
// Three bundled providers, each with its own wire protocol:
//
//   - Gemini Live: Google's native speech-to-speech API, with a
//     primary/fallback model strategy
//   - Grok Realtime: xAI's realtime API
//   - OpenAI Realtime: GPT-4o with built-in VAD, ASR and TTS
//
// # Usage
//
// Create an adapter through the factory:
//
//	import (
//	    "github.com/marketscope/voiceagent/pkg/voice"
//	    _ "github.com/marketscope/voiceagent/pkg/voice/bundled"
//	)
//
//	cfg := voice.DefaultGeminiConfig()
//	cfg.APIKey = os.Getenv("GEMINI_API_KEY")
//	cfg.SystemPrompt = "You are a market analyst."
//	cfg.Tools = dispatcher.Declarations()
//
//	agent, err := voice.New(voice.ProviderGemini, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = agent.Connect(ctx, voice.Callbacks{
//	    OnAudioData: func(chunk audio.Chunk) {
//	        visualizer.Push(chunk.Floats())
//	    },
//	    OnTranscription: func(user, agent string) {
//	        fmt.Printf("user: %s\nagent: %s\n", user, agent)
//	    },
//	    OnToolCall: func(call voice.FunctionCall) (any, error) {
//	        return dispatcher.Dispatch(ctx, call), nil
//	    },
//	})
//	defer agent.Disconnect()
//
// Audio capture and playback are owned by the adapter: it reads fixed
// blocks from its configured Source, and schedules downlink chunks for
// gapless playback on its Sink.
package voice

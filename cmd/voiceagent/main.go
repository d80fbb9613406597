// voiceagent runs a realtime voice session against one of the supported
// providers, with a local dashboard for state, transcript and control.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marketscope/voiceagent/internal/config"
	"github.com/marketscope/voiceagent/internal/log"
	"github.com/marketscope/voiceagent/pkg/audio"
	"github.com/marketscope/voiceagent/pkg/session"
	"github.com/marketscope/voiceagent/pkg/tools"
	"github.com/marketscope/voiceagent/pkg/voice"
	_ "github.com/marketscope/voiceagent/pkg/voice/bundled"
	"github.com/marketscope/voiceagent/pkg/web"
)

const systemPrompt = `You are a sharp, concise market analyst for a telecom pricing team.
Answer questions about company metrics, segment tiers, metro markets and saved
insights using the available tools. Keep spoken answers short.`

func main() {
	config.Load()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	provider := flag.String("provider", config.Provider(), "Voice provider: gemini, grok, openai")
	port := flag.String("port", config.WebPort(), "Dashboard port")
	backend := flag.String("audio", string(audio.BackendFFmpeg), "Audio backend: ffmpeg, mock")
	autoConnect := flag.Bool("connect", false, "Connect immediately on startup")
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)

	configs, err := providerConfigs(audio.Backend(*backend), *debug)
	if err != nil {
		log.Error("configuration error", "err", err)
		os.Exit(1)
	}
	if len(configs) == 0 {
		log.Error("no provider API keys configured; set GEMINI_API_KEY, XAI_API_KEY or OPENAI_API_KEY")
		os.Exit(1)
	}

	dispatcher := tools.NewDispatcher(tools.NewStaticDataSource())

	// The server publishes controller changes, and the server also needs
	// the controller for its routes; the OnChange hook closes over the
	// variable assigned just below.
	var server *web.Server
	controller := session.NewController(session.Options{
		Configs:         configs,
		DefaultProvider: voice.Provider(*provider),
		Dispatcher:      dispatcher,
		OnChange: func(snap session.Snapshot) {
			if server != nil {
				server.PublishSnapshot(snap)
			}
		},
	})
	defer controller.Close()

	server = web.NewServer(*port, controller)
	server.StartAsync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *autoConnect {
		if err := controller.Connect(ctx, voice.Provider(*provider)); err != nil {
			log.Error("initial connect failed", "provider", *provider, "err", err)
		}
	}

	log.Info("voiceagent running", "provider", *provider, "port", *port)
	<-ctx.Done()

	log.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		log.Warn("server shutdown", "err", err)
	}
}

// providerConfigs builds a config per provider that has an API key set.
func providerConfigs(backend audio.Backend, debug bool) (map[voice.Provider]voice.Config, error) {
	deviceFor := func(cfg voice.Config) (voice.Config, error) {
		captureCfg := audio.DefaultCaptureConfig()
		captureCfg.Backend = backend
		source, err := audio.NewSource(captureCfg, log.L())
		if err != nil {
			return cfg, fmt.Errorf("capture device: %w", err)
		}

		playbackCfg := audio.DefaultPlaybackConfig()
		playbackCfg.Backend = backend
		sink, err := audio.NewSink(playbackCfg, log.L())
		if err != nil {
			return cfg, fmt.Errorf("playback device: %w", err)
		}

		cfg.Source = source
		cfg.Sink = sink
		cfg.SystemPrompt = systemPrompt
		cfg.Debug = debug
		return cfg, nil
	}

	configs := make(map[voice.Provider]voice.Config)

	if key := config.GeminiAPIKey(); key != "" {
		cfg := voice.DefaultGeminiConfig()
		cfg.APIKey = key
		cfg, err := deviceFor(cfg)
		if err != nil {
			return nil, err
		}
		configs[voice.ProviderGemini] = cfg
	}
	if key := config.GrokAPIKey(); key != "" {
		cfg := voice.DefaultGrokConfig()
		cfg.APIKey = key
		cfg.Greeting = "Introduce yourself as the pricing team's market analyst and offer help."
		cfg, err := deviceFor(cfg)
		if err != nil {
			return nil, err
		}
		configs[voice.ProviderGrok] = cfg
	}
	if key := config.OpenAIAPIKey(); key != "" {
		cfg := voice.DefaultOpenAIConfig()
		cfg.APIKey = key
		cfg, err := deviceFor(cfg)
		if err != nil {
			return nil, err
		}
		configs[voice.ProviderOpenAI] = cfg
	}

	return configs, nil
}

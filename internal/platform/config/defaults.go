package config

import "time"

// DefaultConfig returns the configuration used when no file or overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9000,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		ASR: ASRConfig{
			Engine:           "whisper",
			Model:            "base",
			SampleRate:       16000,
			ChunkSeconds:     30,
			InferenceTimeout: 5 * time.Minute,
			VAD: VADConfig{
				EnergyThreshold: 0.01,
				MinSilenceMs:    800,
				SpeechPadMs:     200,
			},
		},
		Runtime: RuntimeConfig{
			Type:    "local",
			BaseURL: "http://127.0.0.1:8178",
			Timeout: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			Enabled: false,
		},
	}
}

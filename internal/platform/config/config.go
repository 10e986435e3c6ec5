package config

import "time"

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	ASR           ASRConfig           `yaml:"asr"`
	Runtime       RuntimeConfig       `yaml:"runtime"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// ASRConfig selects the engine variant and its decoding knobs.
type ASRConfig struct {
	Engine           string            `yaml:"engine"`
	Model            string            `yaml:"model"`
	SampleRate       int               `yaml:"sample_rate"`
	ChunkSeconds     float64           `yaml:"chunk_seconds"`
	InferenceTimeout time.Duration     `yaml:"inference_timeout"`
	VAD              VADConfig         `yaml:"vad"`
	Diarization      DiarizationConfig `yaml:"diarization"`
}

type VADConfig struct {
	EnergyThreshold float64 `yaml:"energy_threshold"`
	MinSilenceMs    int     `yaml:"min_silence_ms"`
	SpeechPadMs     int     `yaml:"speech_pad_ms"`
}

type DiarizationConfig struct {
	HFToken string `yaml:"hf_token"`
}

// RuntimeConfig points the engines at the model runtime that performs inference.
type RuntimeConfig struct {
	Type    string        `yaml:"type"` // local | openai
	BaseURL string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type ObservabilityConfig struct {
	Enabled bool `yaml:"enabled"`
}

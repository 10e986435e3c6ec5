// Package eventbus publishes transcription lifecycle events so logging and
// metrics listeners stay decoupled from the request path.
package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Topics emitted by the transcription pipeline.
const (
	EventTranscribeStarted   = "asr:started"
	EventTranscribeCompleted = "asr:completed"
	EventTranscribeFailed    = "asr:failed"
	EventLanguageDetected    = "langdetect:completed"
	EventLanguageFailed      = "langdetect:failed"
)

// TranscriptionEventData describes one transcription request.
type TranscriptionEventData struct {
	RequestID    string  `json:"request_id"`
	Engine       string  `json:"engine"`
	Task         string  `json:"task"`
	OutputFormat string  `json:"output_format"`
	DurationSec  float64 `json:"duration_sec,omitempty"`
	SegmentCount int     `json:"segment_count,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// LanguageEventData describes one language-detection request.
type LanguageEventData struct {
	RequestID  string  `json:"request_id"`
	Engine     string  `json:"engine"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

var (
	instance evbus.Bus
	asyncBus *AsyncEventBus
	once     sync.Once
)

func initBuses() {
	instance = evbus.New()
	asyncBus = NewAsyncEventBus(4)
	asyncBus.Start()
}

// Get returns the shared synchronous bus.
func Get() evbus.Bus {
	once.Do(initBuses)
	return instance
}

// GetAsync returns the shared asynchronous bus.
func GetAsync() *AsyncEventBus {
	once.Do(initBuses)
	return asyncBus
}

// Publish delivers an event synchronously to all subscribers.
func Publish(topic string, args ...interface{}) {
	Get().Publish(topic, args...)
}

// PublishAsync enqueues an event for the worker pool.
func PublishAsync(topic string, args ...interface{}) {
	GetAsync().PublishAsync(topic, args...)
}

// Subscribe registers a synchronous handler.
func Subscribe(topic string, fn interface{}) error {
	return Get().Subscribe(topic, fn)
}

// SubscribeAsync registers a handler on the asynchronous bus.
func SubscribeAsync(topic string, fn interface{}) error {
	return GetAsync().Subscribe(topic, fn)
}

// Shutdown stops the asynchronous workers.
func Shutdown() {
	if asyncBus != nil {
		asyncBus.Stop()
	}
}

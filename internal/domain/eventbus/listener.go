package eventbus

import (
	"context"

	"asr-webservice-go/internal/platform/logging"
	"asr-webservice-go/internal/platform/observability"
)

// RegisterListeners attaches the logging and metrics listener to every
// lifecycle topic on the shared asynchronous bus. Wired once at bootstrap so
// published events always have a consumer.
func RegisterListeners(logger *logging.Logger) error {
	return registerListeners(GetAsync(), logger)
}

func registerListeners(bus *AsyncEventBus, logger *logging.Logger) error {
	l := &listener{logger: logger}
	for topic, handler := range map[string]interface{}{
		EventTranscribeStarted:   l.transcribeStarted,
		EventTranscribeCompleted: l.transcribeCompleted,
		EventTranscribeFailed:    l.transcribeFailed,
		EventLanguageDetected:    l.languageDetected,
		EventLanguageFailed:      l.languageFailed,
	} {
		if err := bus.Subscribe(topic, handler); err != nil {
			return err
		}
	}
	return nil
}

// listener turns lifecycle events into log lines and counters, off the
// request path.
type listener struct {
	logger *logging.Logger
}

func (l *listener) transcribeStarted(data TranscriptionEventData) {
	l.logger.DebugTag("EVENT", "transcription started: request=%s engine=%s task=%s output=%s",
		data.RequestID, data.Engine, data.Task, data.OutputFormat)
	l.count("asr.started", data.Engine, data.Task)
}

func (l *listener) transcribeCompleted(data TranscriptionEventData) {
	l.logger.InfoTag("EVENT", "transcription completed: request=%s engine=%s %.1fs audio",
		data.RequestID, data.Engine, data.DurationSec)
	l.count("asr.completed", data.Engine, data.Task)
}

func (l *listener) transcribeFailed(data TranscriptionEventData) {
	l.logger.WarnTag("EVENT", "transcription failed: request=%s engine=%s: %s",
		data.RequestID, data.Engine, data.Error)
	l.count("asr.failed", data.Engine, data.Task)
}

func (l *listener) languageDetected(data LanguageEventData) {
	l.logger.InfoTag("EVENT", "language detected: request=%s language=%s confidence=%.2f",
		data.RequestID, data.Language, data.Confidence)
	l.count("langdetect.completed", data.Engine, "")
}

func (l *listener) languageFailed(data LanguageEventData) {
	l.logger.WarnTag("EVENT", "language detection failed: request=%s: %s",
		data.RequestID, data.Error)
	l.count("langdetect.failed", data.Engine, "")
}

func (l *listener) count(name, engineName, task string) {
	labels := map[string]string{
		"component": "eventbus",
		"engine":    engineName,
	}
	if task != "" {
		labels["task"] = task
	}
	observability.RecordMetric(context.Background(), name, 1, labels)
}

package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// AsyncEventBus fans events out to a bounded worker pool so slow subscribers
// never stall the transcription path.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// NewAsyncEventBus creates a bus with the given worker count.
func NewAsyncEventBus(workerNum int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 4
	}

	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the worker goroutines.
func (b *AsyncEventBus) Start() {
	for i := 0; i < b.workerNum; i++ {
		b.wg.Add(1)
		go b.worker()
	}
}

// Stop shuts the workers down and waits for them to exit.
func (b *AsyncEventBus) Stop() {
	close(b.stopChan)
	b.wg.Wait()
}

func (b *AsyncEventBus) worker() {
	defer b.wg.Done()

	for {
		select {
		case <-b.stopChan:
			return
		case event := <-b.workChan:
			func() {
				defer func() {
					// A panicking subscriber must not take the worker down.
					_ = recover()
				}()
				b.bus.Publish(event.topic, event.args...)
			}()
		}
	}
}

// PublishAsync enqueues an event; when the queue is full the event is dropped.
func (b *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	select {
	case b.workChan <- asyncEvent{topic: topic, args: args}:
	default:
	}
}

// Publish delivers synchronously on the underlying bus.
func (b *AsyncEventBus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// Subscribe registers a handler for a topic.
func (b *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe removes a handler.
func (b *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return b.bus.Unsubscribe(topic, handler)
}

// HasCallback reports whether a topic has subscribers.
func (b *AsyncEventBus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

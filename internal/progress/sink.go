package progress

import "context"

// Sink consumes batches of progress events. Batches arrive in emission order
// from a single goroutine; implementations must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so
// builders stay agnostic about how events are buffered or rendered.
type Emitter interface {
	Emit(evt Event)
}

// Discard is an Emitter that drops everything.
type Discard struct{}

// Emit drops evt.
func (Discard) Emit(Event) {}

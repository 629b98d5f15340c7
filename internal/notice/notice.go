// Package notice carries user-visible warnings and errors from the components
// that absorb provider failures up to whatever surface shows them.
package notice

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is a message meant for the user, not the operator.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Sink receives notices.
type Sink interface {
	Notify(level Level, msg string)
}

// Collector buffers notices until they are drained. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	items  []Notice
	logger *log.Logger
}

// NewCollector returns a collector that also logs every notice when logger is non-nil.
func NewCollector(logger *log.Logger) *Collector {
	return &Collector{logger: logger}
}

func (c *Collector) Notify(level Level, msg string) {
	if c.logger != nil {
		c.logger.Printf("[%s] %s", levelTag(level), msg)
	}
	c.mu.Lock()
	c.items = append(c.items, Notice{Level: level, Message: msg, At: time.Now()})
	c.mu.Unlock()
}

// Drain returns the buffered notices and empties the buffer.
func (c *Collector) Drain() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.items
	c.items = nil
	return out
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Logger is a Sink that only writes to a log.
type Logger struct {
	L *log.Logger
}

func (l Logger) Notify(level Level, msg string) {
	if l.L == nil {
		log.Printf("[%s] %s", levelTag(level), msg)
		return
	}
	l.L.Printf("[%s] %s", levelTag(level), msg)
}

func levelTag(level Level) string {
	switch level {
	case Warning:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

type ctxKey struct{}

// NewContext returns a copy of ctx that routes notices to sink.
func NewContext(ctx context.Context, sink Sink) context.Context {
	return context.WithValue(ctx, ctxKey{}, sink)
}

// FromContext returns the sink attached to ctx, or a log-only sink.
func FromContext(ctx context.Context) Sink {
	if ctx != nil {
		if s, ok := ctx.Value(ctxKey{}).(Sink); ok && s != nil {
			return s
		}
	}
	return Logger{}
}

func Infof(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Notify(Info, fmt.Sprintf(format, args...))
}

func Warnf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Notify(Warning, fmt.Sprintf(format, args...))
}

func Errorf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Notify(Error, fmt.Sprintf(format, args...))
}

package logging

import (
	"context"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"

	"go.uber.org/zap/zapcore"
)

// eventWriteTimeout bounds a single monitoring write so a slow sink cannot
// stall the ETL loop.
const eventWriteTimeout = 3 * time.Second

// EventWriter persists monitoring events.
type EventWriter interface {
	Insert(ctx context.Context, event domain.Event) error
}

type eventCore struct {
	zapcore.LevelEnabler
	sink        EventWriter
	app         string
	environment string
	fields      []zapcore.Field
}

// NewEventCore returns a zap core that turns each entry into a domain.Event.
func NewEventCore(sink EventWriter, app, environment string, enab zapcore.LevelEnabler) zapcore.Core {
	return &eventCore{
		LevelEnabler: enab,
		sink:         sink,
		app:          app,
		environment:  environment,
	}
}

func (c *eventCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return &clone
}

func (c *eventCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *eventCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	// app and environment are top level on the document.
	delete(enc.Fields, "app")
	delete(enc.Fields, "environment")

	event := domain.Event{
		Level:       LevelName(ent.Level),
		Message:     ent.Message,
		Timestamp:   ent.Time.UTC(),
		App:         c.app,
		Environment: c.environment,
		Logger:      ent.LoggerName,
	}
	if len(enc.Fields) > 0 {
		event.Attributes = enc.Fields
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventWriteTimeout)
	defer cancel()
	return c.sink.Insert(ctx, event)
}

func (c *eventCore) Sync() error { return nil }

package logging

import "github.com/rs/zerolog"

// Zerolog adapts a zerolog.Logger to the Logger interface.
type Zerolog struct {
	L zerolog.Logger
}

// NewZerolog wraps an existing zerolog.Logger.
func NewZerolog(l zerolog.Logger) Zerolog { return Zerolog{L: l} }

func (z Zerolog) Debug(msg string, fields ...Field) { z.log(z.L.Debug(), msg, fields) }
func (z Zerolog) Info(msg string, fields ...Field)  { z.log(z.L.Info(), msg, fields) }
func (z Zerolog) Warn(msg string, fields ...Field)  { z.log(z.L.Warn(), msg, fields) }
func (z Zerolog) Error(msg string, fields ...Field) { z.log(z.L.Error(), msg, fields) }

func (Zerolog) log(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		event = event.Interface(f.Key, f.Value)
	}

	event.Msg(msg)
}

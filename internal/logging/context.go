// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const loggerKey contextKey = iota

var nop = zerolog.Nop()

// WithLogger returns a copy of ctx that carries logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, &logger)
}

// FromContext returns the logger carried by ctx, or a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && l != nil {
			return l
		}
	}
	return &nop
}

// WithFields returns a copy of ctx whose logger carries the given string fields.
func WithFields(ctx context.Context, kv map[string]string) context.Context {
	c := FromContext(ctx).With()
	for k, v := range kv {
		c = c.Str(k, v)
	}
	return WithLogger(ctx, c.Logger())
}

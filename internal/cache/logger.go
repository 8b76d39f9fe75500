package cache

import "github.com/rs/zerolog"

type zerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologLogger reports cache failures through logger, tagged with the
// cache group.
func NewZerologLogger(logger zerolog.Logger, group string) Logger {
	return &zerologAdapter{logger: logger.With().Str("cache", group).Logger()}
}

func (z *zerologAdapter) Error(msg string, err error) {
	z.logger.Error().Err(err).Msg(msg)
}

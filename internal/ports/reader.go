package ports

import (
	"context"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// SignalSource streams browser signals into the pipeline.
type SignalSource interface {
	Start(ctx context.Context) (<-chan domain.Signal, <-chan error)
	Stop() error
}

// SignalDecoder turns one wire record into a signal.
type SignalDecoder interface {
	Decode(line []byte) (domain.Signal, error)
	Format() string
}

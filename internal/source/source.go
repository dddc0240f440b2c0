// Package source builds the terrain sample source selected by configuration.
package source

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-terrain/internal/config"
	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/internal/resource"
	"github.com/Faultbox/midgard-terrain/pkg/terrain"
	"github.com/Faultbox/midgard-terrain/pkg/terrain/noise"
)

// Source is an opened terrain.Source together with whatever backs it.
type Source struct {
	terrain.Source
	Kind string

	closer io.Closer
}

// Open creates the source described by cfg. Resource sources are validated
// against the configured map size and levels of detail.
func Open(ctx context.Context, cfg *config.Config, opts ...resource.Option) (*Source, error) {
	frequencies := terrain.Frequencies(cfg.Terrain.LODs)

	switch cfg.Source.Kind {
	case config.SourceNoise:
		n, err := noise.New(cfg.Source.Noise, frequencies)
		if err != nil {
			return nil, err
		}
		logger.Info("using procedural terrain",
			zap.String("algorithm", string(cfg.Source.Noise.Algorithm)),
			zap.Int64("seed", cfg.Source.Noise.Seed),
		)
		return &Source{Source: n, Kind: config.SourceNoise}, nil

	case config.SourceResource:
		opts = append([]resource.Option{
			resource.WithRegion(cfg.Source.S3Region),
			resource.WithLogger(logger.Named("resource")),
		}, opts...)

		r, err := resource.Open(ctx, cfg.Source.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", cfg.Source.Path, err)
		}
		rs, err := terrain.NewResourceSource(r, r.Size(), cfg.Terrain.MapSize(), frequencies)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%s: %w", cfg.Source.Path, err)
		}
		return &Source{Source: rs, Kind: config.SourceResource, closer: r}, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// Close releases the backing resource, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Package stage assembles the pipeline collaborators selected by
// configuration.
package stage

import (
	"fmt"
	"log/slog"

	"github.com/ahmethakanbesel/ranking-api/internal/config"
	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
	"github.com/ahmethakanbesel/ranking-api/internal/stage/ffmpeg"
	"github.com/ahmethakanbesel/ranking-api/internal/stage/metadata"
	"github.com/ahmethakanbesel/ranking-api/internal/stage/simulated"
	"github.com/ahmethakanbesel/ranking-api/internal/stage/youtube"
)

// Build returns the stages named by cfg.Stages.
func Build(cfg config.Config) (pipeline.Stages, error) {
	sim := simulated.New(
		simulated.WithOutputDir(cfg.Pipeline.OutputDir),
		simulated.WithCompileDelay(cfg.Stages.SimulatedCompileDelay),
		simulated.WithPublishDelay(cfg.Stages.SimulatedPublishDelay),
	)

	var s pipeline.Stages

	switch cfg.Stages.Discovery {
	case config.ProviderYouTube:
		s.Discoverer = youtube.NewDiscoverer(cfg.YouTube.APIKey, youtube.WithWorkers(cfg.Pipeline.PrepareWorkers))
	default:
		s.Discoverer = sim
	}

	switch cfg.Stages.Media {
	case config.ProviderFFmpeg:
		if err := ffmpeg.CheckAvailable(); err != nil {
			slog.Warn("media tools missing, prepare and compile will fail", "error", err)
		}
		p := ffmpeg.New(cfg.Pipeline.OutputDir)
		s.Preparer, s.Compiler = p, p
	default:
		s.Preparer, s.Compiler = sim, sim
	}

	switch cfg.Stages.Metadata {
	case config.ProviderOpenAI:
		g, err := metadata.NewOpenAI(cfg.OpenAI.APIKey, metadata.WithModel(cfg.OpenAI.Model))
		if err != nil {
			return s, fmt.Errorf("metadata provider: %w", err)
		}
		s.Metadata = g
	default:
		s.Metadata = metadata.Template{}
	}

	switch cfg.Stages.Publish {
	case config.ProviderYouTube:
		s.Publisher = youtube.NewPublisher(youtube.Credentials{
			ClientID:     cfg.YouTube.ClientID,
			ClientSecret: cfg.YouTube.ClientSecret,
			RefreshToken: cfg.YouTube.RefreshToken,
		})
	default:
		s.Publisher = sim
	}

	slog.Info("pipeline stages configured",
		"discovery", cfg.Stages.Discovery,
		"media", cfg.Stages.Media,
		"metadata", cfg.Stages.Metadata,
		"publish", cfg.Stages.Publish,
	)
	return s, s.Validate()
}

package embedder

import (
	"fmt"

	"github.com/yoanbernabeu/indexd/config"
)

// NewFromConfig creates an Embedder from the daemon configuration.
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	switch cfg.Embedder.Provider {
	case "openai":
		opts := []OpenAIOption{
			WithOpenAIModel(cfg.Embedder.Model),
			WithOpenAIKey(cfg.Embedder.APIKey),
			WithOpenAIEndpoint(cfg.Embedder.Endpoint),
			WithOpenAIRate(cfg.Embedder.RatePerSec),
		}
		if cfg.Embedder.Dimensions != nil {
			opts = append(opts, WithOpenAIDimensions(*cfg.Embedder.Dimensions))
		}
		return NewOpenAIEmbedder(opts...)

	case "hash", "":
		return NewHashEmbedder(cfg.Embedder.GetDimensions()), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedder.Provider)
	}
}

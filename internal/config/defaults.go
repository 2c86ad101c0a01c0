package config

const (
	defaultConfigPath           = "~/.config/vestique/config.toml"
	defaultCatalogPath          = "~/.local/share/vestique/wardrobe.json"
	defaultBackend              = "file"
	defaultBind                 = "127.0.0.1:8080"
	defaultSimilarityThreshold  = 0.80
	defaultColorWeight          = 0.3
	defaultHistogramBins        = 32
	defaultBackbone             = "grid"
	defaultEmbeddingBaseURL     = "https://api.voyageai.com/v1/multimodalembeddings"
	defaultEmbeddingModel       = "voyage-multimodal-3"
	defaultEmbeddingTimeout     = 30
	defaultResetPeriodDays      = 7
	defaultListingThresholdDays = 8
	defaultAnnotationBaseURL    = "https://api.anthropic.com/v1/messages"
	defaultAnnotationModel      = "claude-sonnet-4-20250514"
	defaultAnnotationTimeout    = 60
	defaultClaimTTLHours        = 72
	defaultLogLevel             = "info"
	defaultLogFormat            = "auto"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Catalog: defaultCatalogPath,
			Backend: defaultBackend,
		},
		Server: Server{
			Bind: defaultBind,
		},
		Recognition: Recognition{
			SimilarityThreshold: defaultSimilarityThreshold,
			ColorWeight:         defaultColorWeight,
			HistogramBins:       defaultHistogramBins,
			CompositeRegions:    true,
			Backbone:            defaultBackbone,
		},
		Embedding: Embedding{
			BaseURL:        defaultEmbeddingBaseURL,
			Model:          defaultEmbeddingModel,
			TimeoutSeconds: defaultEmbeddingTimeout,
		},
		Lifecycle: Lifecycle{
			ResetPeriodDays:      defaultResetPeriodDays,
			ListingThresholdDays: defaultListingThresholdDays,
		},
		Annotation: Annotation{
			Enabled:        true,
			BaseURL:        defaultAnnotationBaseURL,
			Model:          defaultAnnotationModel,
			TimeoutSeconds: defaultAnnotationTimeout,
		},
		Marketplace: Marketplace{
			ClaimTTLHours: defaultClaimTTLHours,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Recommend RecommendConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

// RecommendConfig carries every tunable of the scoring engine. The defaults
// below are the reference values; they are configuration, not fixed law.
type RecommendConfig struct {
	DefaultLimit    int
	MaxQueryHistory int

	CacheTTL        time.Duration
	QueryHistoryTTL time.Duration
	IntentTTL       time.Duration
	CacheTimeout    time.Duration

	InclusionThreshold   float64
	TitleBoostMax        float64
	KeywordDensityMax    float64
	ConfidenceWeight     float64
	LengthBonusMax       float64
	SemanticAlignMax     float64
	SourceDiversityBonus float64
	RecencyBonusMax      float64
	CommonSources        []string

	DiversityInjectScore float64

	FallbackBase  float64
	FallbackStep  float64
	FallbackFloor float64

	MaxFeatures  int
	MaxDocFreq   float64
	NgramMax     int
	ExcerptLimit int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/discover-vnext")

	viper.SetEnvPrefix("DISCOVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/discover.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.model", "gpt-3.5-turbo")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.maxTokens", 1000)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("recommend.defaultLimit", 10)
	viper.SetDefault("recommend.maxQueryHistory", 10)
	viper.SetDefault("recommend.cacheTTL", 5*time.Minute)
	viper.SetDefault("recommend.queryHistoryTTL", 24*time.Hour)
	viper.SetDefault("recommend.intentTTL", 6*time.Hour)
	viper.SetDefault("recommend.cacheTimeout", 2*time.Second)
	viper.SetDefault("recommend.inclusionThreshold", 0.01)
	viper.SetDefault("recommend.titleBoostMax", 0.8)
	viper.SetDefault("recommend.keywordDensityMax", 0.5)
	viper.SetDefault("recommend.confidenceWeight", 0.2)
	viper.SetDefault("recommend.lengthBonusMax", 0.05)
	viper.SetDefault("recommend.semanticAlignMax", 0.3)
	viper.SetDefault("recommend.sourceDiversityBonus", 0.03)
	viper.SetDefault("recommend.recencyBonusMax", 0.05)
	viper.SetDefault("recommend.commonSources", []string{"LLM Generated", "Excel Import"})
	viper.SetDefault("recommend.diversityInjectScore", 0.06)
	viper.SetDefault("recommend.fallbackBase", 0.25)
	viper.SetDefault("recommend.fallbackStep", 0.02)
	viper.SetDefault("recommend.fallbackFloor", 0.15)
	viper.SetDefault("recommend.maxFeatures", 10000)
	viper.SetDefault("recommend.maxDocFreq", 0.7)
	viper.SetDefault("recommend.ngramMax", 3)
	viper.SetDefault("recommend.excerptLimit", 300)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

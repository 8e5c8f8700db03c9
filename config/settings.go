package config

import "time"

// Settings is the persisted server configuration. Env-tagged fields can be overridden from the
// environment after the file is read.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Database  DatabaseSettings  `json:"database"`
	Metadata  MetadataSettings  `json:"metadata"`
	Watchlist WatchlistSettings `json:"watchlist"`
	Auth      AuthSettings      `json:"auth"`
	Recommend RecommendSettings `json:"recommend"`
	Cache     CacheSettings     `json:"cache"`
	Log       LogSettings       `json:"log"`
}

type ServerSettings struct {
	Addr string `json:"addr" env:"CINELIST_ADDR"`
	// CORSOrigins lists allowed origins. Empty or "*" allows any; "private" allows LAN and loopback.
	CORSOrigins       []string `json:"corsOrigins" env:"CINELIST_CORS_ORIGINS" envSeparator:","`
	RateLimitPerSec   float64  `json:"rateLimitPerSec"`
	RateLimitBurst    int      `json:"rateLimitBurst"`
	ShutdownTimeoutMS int      `json:"shutdownTimeoutMs"`
}

type DatabaseSettings struct {
	Path string `json:"path" env:"CINELIST_DB_PATH"`
}

type MetadataSettings struct {
	TMDBAPIKey        string  `json:"tmdbApiKey" env:"TMDB_API_KEY"`
	BaseURL           string  `json:"baseUrl" env:"TMDB_BASE_URL"`
	Language          string  `json:"language"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	IngestWorkers     int     `json:"ingestWorkers"`
}

type WatchlistSettings struct {
	// StrictTransitions rejects category moves against the lifecycle order.
	StrictTransitions bool `json:"strictTransitions" env:"CINELIST_STRICT_TRANSITIONS"`
}

type AuthSettings struct {
	// Required turns on bearer verification for user routes. A secret is generated when empty.
	Required      bool   `json:"required" env:"CINELIST_AUTH_REQUIRED"`
	JWTSecret     string `json:"jwtSecret" env:"CINELIST_JWT_SECRET"`
	TokenTTLHours int    `json:"tokenTtlHours"`
}

type RecommendSettings struct {
	OpenAIAPIKey string `json:"openaiApiKey" env:"OPENAI_API_KEY"`
	BaseURL      string `json:"baseUrl" env:"OPENAI_BASE_URL"`
	Model        string `json:"model" env:"OPENAI_MODEL"`
}

type CacheSettings struct {
	TrailerSize       int    `json:"trailerSize"`
	TrailerTTLMinutes int    `json:"trailerTtlMinutes"`
	RedisAddr         string `json:"redisAddr" env:"REDIS_ADDR"`
	RedisPassword     string `json:"redisPassword" env:"REDIS_PASSWORD"`
	RedisDB           int    `json:"redisDb"`
}

type LogSettings struct {
	// File enables a rotating log file next to stdout output.
	File       string `json:"file" env:"CINELIST_LOG_FILE"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
}

// DefaultSettings returns the settings written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Addr:              ":8080",
			CORSOrigins:       []string{"*"},
			RateLimitPerSec:   10,
			RateLimitBurst:    20,
			ShutdownTimeoutMS: 10000,
		},
		Database: DatabaseSettings{Path: "cinelist.db"},
		Metadata: MetadataSettings{
			Language:          "en-US",
			RequestsPerSecond: 20,
			IngestWorkers:     4,
		},
		Auth:      AuthSettings{TokenTTLHours: 24 * 7},
		Recommend: RecommendSettings{Model: "gpt-3.5-turbo"},
		Cache: CacheSettings{
			TrailerSize:       512,
			TrailerTTLMinutes: 24 * 60,
		},
		Log: LogSettings{MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 14},
	}
}

func (s ServerSettings) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutMS) * time.Millisecond
}

func (s AuthSettings) TokenTTL() time.Duration {
	return time.Duration(s.TokenTTLHours) * time.Hour
}

func (s CacheSettings) TrailerTTL() time.Duration {
	return time.Duration(s.TrailerTTLMinutes) * time.Minute
}

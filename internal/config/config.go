package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Chunk store
	ChunksFile  string
	WatchChunks bool

	// Gemini
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTier        string
	GenerationTimeout time.Duration

	// Knowledge graph: "mongo", "neo4j" or "memory"
	GraphBackend  string
	GraphTimeout  time.Duration
	MongoURI      string
	DBName        string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Redis Configuration (rate limiting + ingestion queue)
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int
	AnswerCacheTTL  time.Duration

	// Admin routes need Redis and a signing secret
	AdminJWTSecret string

	// Intent heuristics
	GeoKeywords []string
	KGVerbs     []string

	// Geo responder
	GazetteerFile string

	// Ingestion
	CrawlDir         string
	CrawlTargetsFile string
	CrawlMaxPages    int
	CrawlRenderJS    bool
	ChunkMaxWords    int
	ChunkOverlap     int
	RecrawlCron      string
	OCRServiceURL    string

	// Telemetry
	OTelEnabled  bool
	OTelEndpoint string
}

var (
	DefaultGeoKeywords = []string{"map", "region", "location", "coordinates", "area", "where", "place", "boundary", "state", "district"}
	DefaultKGVerbs     = []string{"is", "was", "are", "relate", "define", "connect", "associate"}
)

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		ChunksFile:  getEnv("CHUNKS_FILE", "./data/chunks.json"),
		WatchChunks: getEnvBool("WATCH_CHUNKS", true),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiTier:        getEnv("GEMINI_TIER", "free"),
		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),

		GraphBackend:  strings.ToLower(getEnv("GRAPH_BACKEND", "mongo")),
		GraphTimeout:  getEnvDuration("GRAPH_TIMEOUT", 10*time.Second),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:        getEnv("DB_NAME", "skyquery"),
		Neo4jURI:      getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
		AnswerCacheTTL:  getEnvDuration("ANSWER_CACHE_TTL", 6*time.Hour),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		GeoKeywords: getEnvList("GEO_KEYWORDS", DefaultGeoKeywords),
		KGVerbs:     getEnvList("KG_VERBS", DefaultKGVerbs),

		GazetteerFile: getEnv("GAZETTEER_FILE", ""),

		CrawlDir:         getEnv("CRAWL_DIR", "./crawler"),
		CrawlTargetsFile: getEnv("CRAWL_TARGETS_FILE", ""),
		CrawlMaxPages:    getEnvInt("CRAWL_MAX_PAGES", 200),
		CrawlRenderJS:    getEnvBool("CRAWL_RENDER_JS", false),
		ChunkMaxWords:    getEnvInt("CHUNK_MAX_WORDS", 400),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 50),
		RecrawlCron:      getEnv("RECRAWL_CRON", "0 3 * * 0"), // weekly, Sunday 03:00 UTC
		OCRServiceURL:    getEnv("OCR_SERVICE_URL", ""),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_ENDPOINT", "localhost:4317"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AdminEnabled reports whether the admin ingestion routes are served.
func (c *Config) AdminEnabled() bool {
	return c.RedisURL != "" && c.AdminJWTSecret != ""
}

// Validate checks cross-field constraints. A missing GEMINI_API_KEY is not
// an error: generation then degrades to a failure message per question.
func (c *Config) Validate() error {
	switch c.GraphBackend {
	case "mongo", "neo4j", "memory":
	default:
		return fmt.Errorf("GRAPH_BACKEND must be one of mongo, neo4j, memory (got %q)", c.GraphBackend)
	}

	if c.ChunkMaxWords <= 0 {
		return fmt.Errorf("CHUNK_MAX_WORDS must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkMaxWords {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_MAX_WORDS)")
	}

	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < 32 {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 characters")
	}

	if c.GraphTimeout <= 0 || c.GenerationTimeout <= 0 {
		return fmt.Errorf("GRAPH_TIMEOUT and GENERATION_TIMEOUT must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

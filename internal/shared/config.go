package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	CatalogMySQL = "mysql"
	CatalogCSV   = "csv"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	MySQLDSN  string
	RedisAddr string // empty disables the cache
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	CatalogSource string // mysql|csv
	CatalogPath   string

	IngestWorkers   int
	IngestBatchSize int

	OpenRouterKey   string // empty disables LLM hints and blurbs
	OpenRouterBase  string
	OpenRouterModel string
	LLMTimeout      time.Duration
	LLMRPS          int

	SearchTopK         int
	RecommendTopK      int
	RankingWeightsPath string
	AdminToken         string // empty leaves the admin routes open
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("invalid integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		MySQLDSN:  env("MYSQL_DSN", "root:root@tcp(localhost:3306)/stayfinder?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,

		CatalogSource: strings.ToLower(env("CATALOG_SOURCE", CatalogCSV)),
		CatalogPath:   env("CATALOG_PATH", "data/properties.csv"),

		IngestWorkers:   atoi("INGEST_WORKERS", 8),
		IngestBatchSize: atoi("INGEST_BATCH_SIZE", 200),

		OpenRouterKey:   strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterBase:  env("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel: env("OPENROUTER_MODEL", "deepseek/deepseek-chat-v3-0324:free"),
		LLMTimeout:      time.Duration(atoi("LLM_TIMEOUT_SECONDS", 8)) * time.Second,
		LLMRPS:          atoi("LLM_RPS", 2),

		SearchTopK:         atoi("SEARCH_TOP_K", 300),
		RecommendTopK:      atoi("RECOMMEND_TOP_K", 5),
		RankingWeightsPath: os.Getenv("RANKING_WEIGHTS_PATH"),
		AdminToken:         os.Getenv("ADMIN_TOKEN"),
	}
	if c.CatalogSource != CatalogMySQL && c.CatalogSource != CatalogCSV {
		log.Warn().Str("catalog_source", c.CatalogSource).Msg("unknown CATALOG_SOURCE, using csv")
		c.CatalogSource = CatalogCSV
	}
	if c.OpenRouterKey == "" {
		log.Warn().Msg("OPENROUTER_API_KEY is empty; ranking runs without LLM hints")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

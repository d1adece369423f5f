package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatasetPath    string
	DatasetBackend string
	ModelPath      string

	NumSamples     int
	GeneratorSeed  uint64
	SplitSeed      uint64
	ForestSeed     uint64
	NumTrees       int
	TestFraction   float64
	MaxDepth       int
	MinSamplesLeaf int
	MaxConcurrency int

	HTTPAddr          string
	CORSOrigins       []string
	AnalyticsCacheTTL time.Duration
	RedisAddr         string

	PostgresHost       string
	PostgresPort       string
	PostgresUser       string
	PostgresPassword   string
	PostgresDB         string
	PostgresSSLMode    string
	PostgresMaxRetries int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DatasetPath:    getEnv("DATASET_PATH", "./data/morocco_housing.csv"),
		DatasetBackend: strings.ToLower(getEnv("DATASET_BACKEND", "csv")),
		ModelPath:      getEnv("MODEL_PATH", "./data/model.gob"),

		NumSamples:     getEnvInt("NUM_SAMPLES", 5000),
		GeneratorSeed:  getEnvUint("GENERATOR_SEED", 42),
		SplitSeed:      getEnvUint("SPLIT_SEED", 42),
		ForestSeed:     getEnvUint("FOREST_SEED", 42),
		NumTrees:       getEnvInt("NUM_TREES", 100),
		TestFraction:   getEnvFloat("TEST_FRACTION", 0.2),
		MaxDepth:       getEnvInt("MAX_DEPTH", 0),
		MinSamplesLeaf: getEnvInt("MIN_SAMPLES_LEAF", 1),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", runtime.NumCPU()),

		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		CORSOrigins:       getEnvList("CORS_ORIGINS", []string{"*"}),
		AnalyticsCacheTTL: getEnvDuration("ANALYTICS_CACHE_TTL", 5*time.Minute),
		RedisAddr:         getEnv("REDIS_ADDR", ""),

		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:       getEnv("POSTGRES_USER", "luminastay"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", "luminastay123"),
		PostgresDB:         getEnv("POSTGRES_DB", "housing_db"),
		PostgresSSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresMaxRetries: getEnvInt("POSTGRES_MAX_RETRIES", 3),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.ParseUint(val, 10, 64)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-registry/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Web      WebConfig
	FaceAPI  FaceAPIConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Matching MatchingConfig
	Log      LogConfig
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // in addition to localhost, which is always allowed
}

type FaceAPIConfig struct {
	URL string // defaults to http://localhost:8000
}

// StorageConfig describes where the two pipeline stores and their reference images live.
type StorageConfig struct {
	Backend string // json, sqlite, mysql or postgres
	DataDir string

	EmbeddingFile         string // JSON backend only
	VerificationFile      string // JSON backend only
	SQLitePath            string
	EmbeddingImagesDir    string
	VerificationImagesDir string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL URL or MySQL DSN
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MatchingConfig struct {
	Models                  ModelDefaults `yaml:"models"`
	VerificationRequireFace bool
	MaxImageSize            int // longest side in pixels, larger images are downscaled
}

type ModelDefaults struct {
	Embedding    ModelSettings `yaml:"embedding"`
	Verification ModelSettings `yaml:"verification"`
}

type ModelSettings struct {
	Threshold float64 `yaml:"threshold"`
	Metric    string  `yaml:"metric"`
}

type LogConfig struct {
	Level  string
	Format string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var matching MatchingConfig
	if err := yaml.Unmarshal(defaultsYAML, &matching); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	if matching.Models.Embedding.Threshold == 0 {
		matching.Models.Embedding.Threshold = constants.DefaultEmbeddingThreshold
	}
	if matching.Models.Verification.Threshold == 0 {
		matching.Models.Verification.Threshold = constants.DefaultVerificationThreshold
	}

	matching.Models.Embedding.Threshold = envFloat("EMBEDDING_THRESHOLD", matching.Models.Embedding.Threshold)
	matching.Models.Embedding.Metric = envString("EMBEDDING_METRIC", matching.Models.Embedding.Metric)
	matching.Models.Verification.Threshold = envFloat("VERIFICATION_THRESHOLD", matching.Models.Verification.Threshold)
	matching.VerificationRequireFace = envBool("VERIFICATION_REQUIRE_FACE")
	matching.MaxImageSize = envInt("MAX_IMAGE_SIZE", constants.DefaultMaxImageSize)

	dataDir := envString("DATA_DIR", ".")

	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", constants.DefaultWebPort),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		FaceAPI: FaceAPIConfig{
			URL: os.Getenv("FACE_API_URL"),
		},
		Storage: StorageConfig{
			Backend:               strings.ToLower(envString("STORE_BACKEND", "json")),
			DataDir:               dataDir,
			EmbeddingFile:         filepath.Join(dataDir, "faces_data.json"),
			VerificationFile:      filepath.Join(dataDir, "verification_faces.json"),
			SQLitePath:            envString("SQLITE_PATH", filepath.Join(dataDir, "faces.db")),
			EmbeddingImagesDir:    filepath.Join(dataDir, "registered_faces"),
			VerificationImagesDir: filepath.Join(dataDir, "verification_faces"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Matching: matching,
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
	}
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストレージバックエンドの種別。
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

// dotEnvFiles はビルド時設定として読み込む.envファイル。先に読んだ値が優先される。
var dotEnvFiles = []string{".env.local", ".env"}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Identity Platform
	FirebaseAPIKey     string
	FirebaseAuthDomain string
	FirebaseProjectID  string
	FirebaseTenantID   string
	IdentityToolkitURL string
	SecureTokenURL     string

	// Downstream APIs
	APIBaseURL           string
	WeatherAPIURL        string
	WarningsAPIURL       string
	RecommendationAPIURL string
	HTTPTimeout          time.Duration

	// Storage
	StorageBackend string
	StoragePath    string
	DatabaseURL    string
	RedisURL       string

	// Session
	SessionMaxAge int

	// Geocoding
	GeocoderURL       string
	GeocoderUserAgent string
	GeocoderEmail     string
	GeocoderRate      float64

	// Watcher / Server
	WatchInterval time.Duration
	ServerPort    string
	LoginURL      string

	Features FeatureFlags
}

// FeatureFlags は機能単位の有効/無効を表す。
type FeatureFlags struct {
	Weather         bool
	Recommendations bool
	TravelWarnings  bool
}

// Load は.envファイル、ランタイム設定ファイル、環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	runtime, err := LoadRuntimeConfig(getEnvString("RUNTIME_CONFIG_PATH", "runtime-config.json"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.FirebaseAPIKey = os.Getenv("FIREBASE_API_KEY")
	if cfg.FirebaseAPIKey == "" {
		missing = append(missing, "FIREBASE_API_KEY")
	}

	cfg.FirebaseAuthDomain = os.Getenv("FIREBASE_AUTH_DOMAIN")
	if cfg.FirebaseAuthDomain == "" {
		missing = append(missing, "FIREBASE_AUTH_DOMAIN")
	}

	cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	if cfg.FirebaseProjectID == "" {
		missing = append(missing, "FIREBASE_PROJECT_ID")
	}

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", StorageFile))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")

	switch cfg.StorageBackend {
	case StorageFile, StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StorageRedis:
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND: %q", cfg.StorageBackend)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// デプロイ時の値がビルド時の値より優先される
	cfg.FirebaseTenantID = RuntimeValue(runtime["FIREBASE_TENANT_ID"], os.Getenv("FIREBASE_TENANT_ID"))
	cfg.APIBaseURL = RuntimeValue(runtime["API_BASE_URL"], getEnvString("API_BASE_URL", "http://localhost:8080"))
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	// Optional fields with defaults
	cfg.IdentityToolkitURL = getEnvString("IDENTITY_TOOLKIT_URL", "https://identitytoolkit.googleapis.com/v1")
	cfg.SecureTokenURL = getEnvString("SECURE_TOKEN_URL", "https://securetoken.googleapis.com/v1")
	cfg.WeatherAPIURL = getEnvString("WEATHER_API_URL", cfg.APIBaseURL)
	cfg.WarningsAPIURL = getEnvString("WARNINGS_API_URL", cfg.APIBaseURL)
	cfg.RecommendationAPIURL = getEnvString("RECOMMENDATION_API_URL", cfg.APIBaseURL)
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 30*time.Second)
	cfg.StoragePath = getEnvString("STORAGE_PATH", defaultStoragePath())
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.GeocoderURL = getEnvString("GEOCODER_URL", "https://nominatim.openstreetmap.org")
	cfg.GeocoderUserAgent = getEnvString("GEOCODER_USER_AGENT", "TripPlanner/1.0")
	cfg.GeocoderEmail = getEnvString("GEOCODER_EMAIL", "")
	cfg.GeocoderRate = getEnvFloat("GEOCODER_RATE", 1)
	cfg.WatchInterval = getEnvDuration("WATCH_INTERVAL", 15*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8090")
	cfg.LoginURL = getEnvString("LOGIN_URL", "/login")

	cfg.Features = FeatureFlags{
		Weather:         getEnvBool("FEATURE_WEATHER", true),
		Recommendations: getEnvBool("FEATURE_RECOMMENDATIONS", true),
		TravelWarnings:  getEnvBool("FEATURE_TRAVEL_WARNINGS", true),
	}

	return cfg, nil
}

// RuntimeValue はデプロイ時に注入された値とビルド時の値から採用する値を返す。
// デプロイ時の値が空、または未置換のプレースホルダ（"${"で始まる）の場合はビルド時の値を使う。
func RuntimeValue(runtimeValue, buildTimeValue string) string {
	if runtimeValue != "" && !strings.HasPrefix(runtimeValue, "${") {
		return runtimeValue
	}
	return buildTimeValue
}

// LoadRuntimeConfig はコンテナ起動時に置換されるランタイム設定ファイルを読み込む。
// ファイルが存在しない場合は空のマップを返す。
func LoadRuntimeConfig(path string) (map[string]string, error) {
	values := map[string]string{}
	if path == "" {
		return values, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runtime config: %w", err)
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse runtime config %s: %w", path, err)
	}
	return values, nil
}

// loadDotEnv は存在する.envファイルを読み込む。既存の環境変数は上書きしない。
func loadDotEnv() error {
	for _, name := range dotEnvFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".tripplanner.json"
	}
	return filepath.Join(dir, "tripplanner", "storage.json")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

// getEnvBool は未設定時にdefaultValを返し、設定時は"true"（大文字小文字無視）のみを真とする。
func getEnvBool(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	return strings.EqualFold(v, "true")
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

package config

import (
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"

	AudioOto = "oto"
	AudioSim = "sim"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Storage
	StorageBackend string        // memory | file | redis | sqlite
	StorageDir     string        // file backend directory
	SQLitePath     string        // sqlite database file
	BookmarkKey    string        // storage key of the bookmark collection (ex: "bookmarks")
	StorageTimeout time.Duration // per-write timeout for bookmarks

	// Redis (storage backend = redis)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	// Audio
	AudioBackend   string        // oto (speakers) | sim (timers only)
	SimLoadDelay   time.Duration // sim: time until a clip is ready
	SimClipLength  time.Duration // sim: length of every clip
	OtoSampleRate  int           // oto: device rate, clips are resampled to it
	AudioFetchTime time.Duration // oto: timeout for downloading one clip

	// Verse supply
	ManifestFile       string        // optional recitation manifest (empty = remote only)
	ReloadInterval     time.Duration // interval to reload the manifest (default: 24h)
	AlQuranURL         string        // ex: "https://api.alquran.cloud", "off" disables it
	AudioEdition       string        // ex: "ar.alafasy"
	TranslationEdition string        // ex: "en.sahih", "bn.bengali", "-" for none
	AlQuranTimeout     time.Duration // http timeout for the alquran api
	CacheTTL           time.Duration // how long fetched surahs are kept (default: 30d)
	JanitorInterval    time.Duration // interval to evict stale surahs (default: 24h)

	// HTTP access
	AllowedHosts       []string // optional, restrict access to specific Host headers
	AllowedCIDRS       []string // optional, restrict readyz/infra/reload to these IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy         bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CORSOrigins        []string // browser origins allowed to call /api
	RateLimitBurst     int      // per-IP burst on /api
	RateLimitRefillMin int      // per-IP tokens per minute on /api
}

// Load reads the configuration from the environment. A .env file, when
// present, fills in variables that are not already set.
func Load() *Config {
	envFile := getenv("NOOR_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		panic(fmt.Sprintf("❌ FATAL: cannot read %s: %v", envFile, err))
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("NOOR_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("NOOR_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("NOOR_LOG_LEVEL", "info"),
		PrettyLog: mustBool("NOOR_PRETTY_LOG", true),

		// Storage
		StorageBackend: strings.ToLower(getenv("NOOR_STORAGE", StorageFile)),
		StorageDir:     getenv("NOOR_STORAGE_DIR", "/var/lib/noor"),
		SQLitePath:     getenv("NOOR_SQLITE_PATH", "/var/lib/noor/noor.db"),
		BookmarkKey:    getenv("NOOR_BOOKMARK_KEY", "bookmarks"),
		StorageTimeout: mustDuration("NOOR_STORAGE_TIMEOUT", 3*time.Second),

		// Redis settings
		RedisUser:           getenv("NOOR_REDIS_USERNAME", ""),
		RedisPassword:       getenv("NOOR_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("NOOR_REDIS_DB", 0),
		RedisDT:             mustDuration("NOOR_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("NOOR_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("NOOR_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("NOOR_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("NOOR_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("NOOR_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("NOOR_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("NOOR_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("NOOR_REDIS_WARN_THRESHOLD", 3),

		// Audio
		AudioBackend:   strings.ToLower(getenv("NOOR_AUDIO", AudioOto)),
		SimLoadDelay:   mustDuration("NOOR_SIM_LOAD_DELAY", 300*time.Millisecond),
		SimClipLength:  mustDuration("NOOR_SIM_CLIP_LENGTH", 5*time.Second),
		OtoSampleRate:  getenvInt("NOOR_OTO_SAMPLE_RATE", 44100),
		AudioFetchTime: mustDuration("NOOR_AUDIO_FETCH_TIMEOUT", 30*time.Second),

		// Verse supply
		ManifestFile:       getenv("NOOR_MANIFEST_FILE", ""),
		ReloadInterval:     mustDuration("NOOR_RELOAD_INTERVAL", 24*time.Hour),
		AlQuranURL:         getenv("NOOR_ALQURAN_URL", "https://api.alquran.cloud"),
		AudioEdition:       getenv("NOOR_AUDIO_EDITION", "ar.alafasy"),
		TranslationEdition: getenv("NOOR_TRANSLATION_EDITION", "en.sahih"),
		AlQuranTimeout:     mustDuration("NOOR_ALQURAN_TIMEOUT", 10*time.Second),
		CacheTTL:           mustDuration("NOOR_CACHE_TTL", 30*24*time.Hour),
		JanitorInterval:    mustDuration("NOOR_JANITOR_INTERVAL", 24*time.Hour),

		// Access restrictions
		AllowedHosts:       splitAndTrim(getenv("NOOR_ALLOWED_HOSTS", "")),
		AllowedCIDRS:       splitAndTrim(getenv("NOOR_ALLOWED_CIDRS", "")),
		TrustProxy:         mustBool("NOOR_TRUST_PROXY", false),
		CORSOrigins:        splitAndTrim(getenv("NOOR_CORS_ORIGINS", "")),
		RateLimitBurst:     getenvInt("NOOR_RATE_LIMIT_BURST", 30),
		RateLimitRefillMin: getenvInt("NOOR_RATE_LIMIT_PER_MIN", 120),
	}

	cfg.validate()

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// validate panics on settings the process cannot start with.
func (cfg *Config) validate() {
	backends := []string{StorageMemory, StorageFile, StorageRedis, StorageSQLite}
	if !slices.Contains(backends, cfg.StorageBackend) {
		panic(fmt.Sprintf("❌ FATAL: NOOR_STORAGE must be one of %v, got %q", backends, cfg.StorageBackend))
	}
	if cfg.StorageBackend == StorageRedis {
		cfg.RedisAddr = requireEnv("NOOR_REDIS_ADDR")
	}

	if cfg.AudioBackend != AudioOto && cfg.AudioBackend != AudioSim {
		panic(fmt.Sprintf("❌ FATAL: NOOR_AUDIO must be %q or %q, got %q", AudioOto, AudioSim, cfg.AudioBackend))
	}

	if cfg.BookmarkKey == "" {
		panic("❌ FATAL: NOOR_BOOKMARK_KEY must not be empty")
	}

	if cfg.RemoteDisabled() && cfg.ManifestFile == "" {
		panic("❌ FATAL: no verse source, set NOOR_MANIFEST_FILE or enable NOOR_ALQURAN_URL")
	}
}

// RemoteDisabled reports whether the alquran api is switched off.
func (cfg *Config) RemoteDisabled() bool {
	return cfg.AlQuranURL == "" || strings.EqualFold(cfg.AlQuranURL, "off")
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

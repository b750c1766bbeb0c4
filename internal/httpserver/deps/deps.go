package deps

import (
	"time"

	"github.com/MrSnakeDoc/noor/internal/bookmarks"
	"github.com/MrSnakeDoc/noor/internal/catalog"
	"github.com/MrSnakeDoc/noor/internal/logger"
	"github.com/MrSnakeDoc/noor/internal/playback"
	"github.com/MrSnakeDoc/noor/internal/storage"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access readyz/infra/reload
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CORSOrigins  []string         // Origins allowed by CORS, empty means none

	RateLimitBurst     int // per-IP burst on /api
	RateLimitRefillMin int // per-IP tokens per minute on /api

	Storage       storage.Store        // Key-value backend shared by bookmarks and the surah cache
	Catalog       *catalog.Memory      // Surahs held in memory
	Resolver      *catalog.Resolver    // Catalog, then cache, then alquran
	Bookmarks     *bookmarks.Store     // Saved verses, hadith and duas
	Player        *playback.Controller // The single audio player
	AudioBackend  string               // Name of the audio backend in use
	ManifestFile  string               // Recitation manifest, empty when unused
	ReloadTrigger chan struct{}        // Channel to trigger manual manifest reload (nil without manifest)
}

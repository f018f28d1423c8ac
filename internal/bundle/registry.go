package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrModelUnavailable is returned when no verified bundle has ever loaded.
// Callers surface this as a service-not-ready condition, not a per-lead
// failure.
var ErrModelUnavailable = errors.New("no model bundle available")

// RegistryConfig controls bundle discovery and cache behavior.
type RegistryConfig struct {
	Root string        // directory holding one subdirectory per version
	TTL  time.Duration // cache lifetime before checking for a newer bundle
	Pin  string        // optional explicit version override
}

// Health is a non-blocking snapshot of registry state.
type Health struct {
	Loaded       bool      `json:"loaded"`
	Version      string    `json:"version,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	FeatureCount int       `json:"feature_count"`
	LoadedAt     time.Time `json:"loaded_at,omitempty"`
}

// Registry serves the active ModelBundle with a TTL cache, single-flight
// reload and atomic swap. A reload failure keeps the last-known-good bundle
// in service; only a registry that has never loaded anything reports
// ErrModelUnavailable.
type Registry struct {
	cfg    RegistryConfig
	logger *zap.Logger

	active    atomic.Pointer[ModelBundle]
	expiresAt atomic.Int64 // unix nanos

	reloadMu sync.Mutex
}

// NewRegistry builds a registry; nothing is loaded until the first Active call.
func NewRegistry(cfg RegistryConfig, logger *zap.Logger) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{cfg: cfg, logger: logger}
}

// Active returns the current verified bundle. The second result reports
// whether the lookup was served from cache, which feeds telemetry. The
// caller holds a reference and must Release the bundle when its batch is
// done; a version swap only closes a displaced estimator once the last
// in-flight batch has released it.
func (r *Registry) Active(ctx context.Context) (*ModelBundle, bool, error) {
	if b := r.active.Load(); b != nil && time.Now().UnixNano() < r.expiresAt.Load() && b.acquire() {
		return b, true, nil
	}

	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	// Another caller may have finished the reload while we waited.
	if b := r.active.Load(); b != nil && time.Now().UnixNano() < r.expiresAt.Load() && b.acquire() {
		return b, true, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	fresh, err := r.load()
	if err != nil {
		if prev := r.active.Load(); prev != nil && prev.acquire() {
			// Keep serving the last-known-good bundle; extend its lease so
			// every request does not retry the broken reload.
			r.logger.Error("bundle reload failed, keeping last known good",
				zap.String("version", prev.Version), zap.Error(err))
			r.expiresAt.Store(time.Now().Add(r.cfg.TTL).UnixNano())
			return prev, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	prev := r.active.Load()
	if prev == nil || prev.Version != fresh.Version || prev.Checksum != fresh.Checksum {
		fresh.acquire() // caller's reference on top of the one Load granted
		r.active.Store(fresh)
		r.expiresAt.Store(time.Now().Add(r.cfg.TTL).UnixNano())
		if prev != nil {
			prev.Release()
		}
		r.logger.Info("model bundle activated",
			zap.String("version", fresh.Version),
			zap.String("checksum", fresh.Checksum[:12]),
			zap.Int("feature_count", len(fresh.Schema.FeatureNames)),
		)
		return fresh, false, nil
	}

	// Same content reloaded; drop the duplicate and keep serving prev.
	fresh.Release()
	prev.acquire()
	r.expiresAt.Store(time.Now().Add(r.cfg.TTL).UnixNano())
	return prev, false, nil
}

// Health reports registry state without triggering a load.
func (r *Registry) Health() Health {
	b := r.active.Load()
	if b == nil {
		return Health{}
	}
	return Health{
		Loaded:       true,
		Version:      b.Version,
		Checksum:     b.Checksum,
		FeatureCount: len(b.Schema.FeatureNames),
		LoadedAt:     b.LoadedAt,
	}
}

// Close drops the registry's reference; the estimator shuts down once any
// remaining in-flight batches release theirs.
func (r *Registry) Close() {
	if b := r.active.Swap(nil); b != nil {
		b.Release()
	}
}

func (r *Registry) load() (*ModelBundle, error) {
	dir, err := r.resolveDir()
	if err != nil {
		return nil, err
	}
	return Load(filepath.Join(r.cfg.Root, dir))
}

// resolveDir maps the pinned version, or the highest embedded version, to a
// bundle directory. Directory names are advisory; the manifest decides.
func (r *Registry) resolveDir() (string, error) {
	if r.cfg.Pin != "" {
		return findVersionDir(r.cfg.Root, r.cfg.Pin)
	}
	return latestVersion(r.cfg.Root)
}

// findVersionDir locates the directory whose manifest carries the wanted
// version, so a pin keeps working when artifacts are unpacked under
// arbitrary directory names.
func findVersionDir(root, version string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("read bundle root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, _, err := ReadManifest(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		if m.Version == version {
			return e.Name(), nil
		}
	}
	return "", fmt.Errorf("pinned bundle version %q not found under %s", version, root)
}

// latestVersion picks the highest embedded manifest version among valid
// bundle directories. The manifest field decides, not directory mtime, so a
// re-copied old artifact can never shadow a newer one.
func latestVersion(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("read bundle root: %w", err)
	}

	var best string
	var bestDir string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, _, err := ReadManifest(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		if best == "" || compareVersions(m.Version, best) > 0 {
			best = m.Version
			bestDir = e.Name()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no valid bundle under %s", root)
	}
	return bestDir, nil
}

// compareVersions orders dotted numeric versions ("2024.10.2", "1.4.0"),
// falling back to string comparison for non-numeric segments.
func compareVersions(a, b string) int {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		default:
			if sa != sb {
				if sa < sb {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}

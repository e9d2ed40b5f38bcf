package scan

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/geonas-tools/nascat/internal/apperr"
)

// Defaults applied by Config.Validate when a field is zero.
const (
	DefaultConfidenceThreshold = 0.6
	DefaultChecksumMaxBytes    = 64 << 20
	DefaultMaxFileSize         = 0 // unlimited
)

// Config is the immutable configuration of one scan. It is validated once
// before traversal starts and never re-read mid-scan.
type Config struct {
	// Root is the directory to scan.
	Root string
	// ExcludeDirs are directory names skipped during traversal.
	ExcludeDirs []string
	// ExcludeExts are file extensions (with dot) skipped during traversal.
	ExcludeExts []string
	// MaxFileSize skips files larger than this many bytes; 0 means no limit.
	MaxFileSize int64
	// FollowSymlinks enables following directory symlinks (cycle-guarded).
	FollowSymlinks bool
	// SkipHidden skips dot-files and dot-directories.
	SkipHidden bool
	// Concurrency bounds the dataset-root worker pool.
	Concurrency int
	// ConfidenceThreshold separates trusted from low-confidence README fields.
	ConfidenceThreshold float64
	// ChecksumMaxBytes caps the file size for which a SHA-1 is computed;
	// larger files get no checksum. 0 applies the default.
	ChecksumMaxBytes int64
}

// Validate checks the configuration and fills in defaults. All failures are
// ConfigErrors: fatal, detected before any scan work starts.
func (c *Config) Validate() error {
	if c.Root == "" {
		return apperr.Config("scan root is required")
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return apperr.Configf("resolve scan root %q: %v", c.Root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return apperr.Configf("scan root %q: %v", c.Root, err)
	}
	if !info.IsDir() {
		return apperr.Configf("scan root %q is not a directory", c.Root)
	}
	c.Root = abs

	if c.Concurrency < 0 {
		return apperr.Configf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.Concurrency == 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return apperr.Configf("confidence threshold must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.MaxFileSize < 0 {
		return apperr.Configf("max file size must not be negative, got %d", c.MaxFileSize)
	}
	if c.ChecksumMaxBytes == 0 {
		c.ChecksumMaxBytes = DefaultChecksumMaxBytes
	}
	return nil
}

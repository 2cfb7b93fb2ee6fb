package manager

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gobeaver/beaver-kit/config"

	"github.com/gobeaver/diskkit"
	"github.com/gobeaver/diskkit/driver/local"
	"github.com/gobeaver/diskkit/driver/s3"
)

// Disk names used by NewFromConfig.
const (
	LocalDiskName  = "local"
	S3DiskName     = "s3"
	MemoryDiskName = "memory"
)

type Config struct {
	// Name of the disk made default (local, s3, memory)
	DefaultDisk string `env:"DISKKIT_DEFAULT_DISK,default:local"`

	// Local disk configuration
	LocalRoot       string `env:"DISKKIT_LOCAL_ROOT,default:./storage"`
	LocalLinks      string `env:"DISKKIT_LOCAL_LINKS,default:disallow"`
	LocalWriteFlags int    `env:"DISKKIT_LOCAL_WRITE_FLAGS,default:2"`

	// Permission bits as octal strings
	LocalFilePublic          string `env:"DISKKIT_LOCAL_FILE_PUBLIC,default:0644"`
	LocalFilePrivate         string `env:"DISKKIT_LOCAL_FILE_PRIVATE,default:0600"`
	LocalDirPublic           string `env:"DISKKIT_LOCAL_DIR_PUBLIC,default:0755"`
	LocalDirPrivate          string `env:"DISKKIT_LOCAL_DIR_PRIVATE,default:0700"`
	LocalDirectoryVisibility string `env:"DISKKIT_LOCAL_DIRECTORY_VISIBILITY,default:private"`

	// Public URLs of local disks below a web server document root
	LocalDocumentRoot string `env:"DISKKIT_LOCAL_DOCUMENT_ROOT"`
	LocalBaseURL      string `env:"DISKKIT_LOCAL_BASE_URL"`

	// S3 disk configuration, registered when a bucket is set
	S3Bucket          string `env:"DISKKIT_S3_BUCKET"`
	S3Prefix          string `env:"DISKKIT_S3_PREFIX"`
	S3Region          string `env:"DISKKIT_S3_REGION,default:us-east-1"`
	S3Endpoint        string `env:"DISKKIT_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"DISKKIT_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"DISKKIT_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"DISKKIT_S3_FORCE_PATH_STYLE,default:false"`
	S3Visibility      string `env:"DISKKIT_S3_VISIBILITY,default:private"`

	// In-memory scratch disk
	MemoryEnabled bool  `env:"DISKKIT_MEMORY_ENABLED,default:false"`
	MemoryMaxSize int64 `env:"DISKKIT_MEMORY_MAX_SIZE,default:0"`

	// Log level (debug, info, warn, error). Empty disables logging.
	LogLevel string `env:"DISKKIT_LOG_LEVEL"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Builder provides a way to create StorageManager instances with custom prefixes
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Config loads the configuration using the builder's prefix
func (b *Builder) Config() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New creates a new StorageManager using the builder's prefix
func (b *Builder) New(options ...ManagerOption) (*StorageManager, error) {
	cfg, err := b.Config()
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, options...)
}

// NewFromEnv creates a manager from environment variables (convenience constructor)
func NewFromEnv(options ...ManagerOption) (*StorageManager, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, options...)
}

// NewFromConfig creates a manager with the disks described by cfg. The
// local disk is always registered, the S3 disk only when a bucket is set
// and the memory disk only when enabled.
func NewFromConfig(cfg *Config, options ...ManagerOption) (*StorageManager, error) {
	if cfg.LogLevel != "" {
		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		options = append([]ManagerOption{WithLogger(logger)}, options...)
	}
	m := New(options...)

	if cfg.LocalDocumentRoot != "" && cfg.LocalBaseURL != "" {
		resolver := diskkit.DocumentRootResolver{DocumentRoot: cfg.LocalDocumentRoot, BaseURL: cfg.LocalBaseURL}
		m.RegisterDriver(local.DriverName, &local.Driver{URLResolver: resolver})
		m.RegisterDriver(local.ImageDriverName, &local.ImageDriver{Driver: local.Driver{URLResolver: resolver}})
	}

	if _, err := m.RegisterLocalDisk(LocalDiskName, cfg.LocalRoot, localOptions(cfg)); err != nil {
		return nil, fmt.Errorf("failed to register local disk: %w", err)
	}

	if cfg.S3Bucket != "" {
		client := s3.ClientConfig{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3ForcePathStyle,
		}
		_, err := m.RegisterS3Disk(S3DiskName, client, cfg.S3Bucket, map[string]any{
			"prefix":     cfg.S3Prefix,
			"visibility": cfg.S3Visibility,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register s3 disk: %w", err)
		}
	}

	if cfg.MemoryEnabled {
		if _, err := m.RegisterMemoryDisk(MemoryDiskName, map[string]any{"max_size": cfg.MemoryMaxSize}); err != nil {
			return nil, fmt.Errorf("failed to register memory disk: %w", err)
		}
	}

	if cfg.DefaultDisk != "" {
		if err := m.UseDisk(cfg.DefaultDisk); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func localOptions(cfg *Config) map[string]any {
	return map[string]any{
		"links":       cfg.LocalLinks,
		"write_flags": cfg.LocalWriteFlags,
		"visibility": map[string]any{
			"file": map[string]any{
				"public":  cfg.LocalFilePublic,
				"private": cfg.LocalFilePrivate,
			},
			"dir": map[string]any{
				"public":  cfg.LocalDirPublic,
				"private": cfg.LocalDirPrivate,
			},
			"default_for_directories": cfg.LocalDirectoryVisibility,
		},
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

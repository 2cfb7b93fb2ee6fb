package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gobeaver/diskkit"
)

// DriverName is the name the s3 driver is registered under.
const DriverName = "s3"

// Driver builds *diskkit.Filesystem disks backed by S3.
type Driver struct {
	// Options are applied to every disk.
	Options []diskkit.FilesystemOption
}

var _ diskkit.Driver = (*Driver)(nil)

// NewDriver returns an s3 Driver.
func NewDriver(options ...diskkit.FilesystemOption) *Driver {
	return &Driver{Options: options}
}

// ParseArgs validates driver arguments. See the package level ParseArgs.
func (d *Driver) ParseArgs(args ...any) (Config, error) {
	return ParseArgs(args...)
}

// Build creates the adapter described by cfg, constructing a client from
// cfg.ClientConfig when no client is given.
func (d *Driver) Build(cfg Config) (*Adapter, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	client := cfg.Client
	if client == nil {
		c, err := newClient(context.Background(), *cfg.ClientConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		client = c
	}

	opts := []AdapterOption{WithDefaultVisibility(cfg.Visibility)}
	if cfg.Prefix != "" {
		opts = append(opts, WithPrefix(cfg.Prefix))
	}
	if cfg.MimeTypeDetector != nil {
		opts = append(opts, WithMimeTypeDetector(cfg.MimeTypeDetector))
	}

	return New(client, cfg.Bucket, opts...), nil
}

// Wrap binds adapter to a new Filesystem.
func (d *Driver) Wrap(adapter *Adapter) *diskkit.Filesystem {
	return diskkit.NewFilesystem(adapter, d.Options...)
}

// Open implements diskkit.Driver
func (d *Driver) Open(args ...any) (diskkit.Disk, error) {
	cfg, err := d.ParseArgs(args...)
	if err != nil {
		return nil, err
	}
	fsys, err := d.OpenConfig(cfg)
	if err != nil {
		return nil, err
	}
	return fsys, nil
}

// OpenConfig builds a disk from an already typed Config.
func (d *Driver) OpenConfig(cfg Config) (*diskkit.Filesystem, error) {
	adapter, err := d.Build(cfg)
	if err != nil {
		return nil, err
	}
	return d.Wrap(adapter), nil
}

// newClient creates an S3 client from cc
func newClient(ctx context.Context, cc ClientConfig) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cc.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cc.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	// Override with explicit credentials if provided
	if cc.AccessKeyID != "" && cc.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(
			cc.AccessKeyID,
			cc.SecretAccessKey,
			cc.SessionToken,
		)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cc.Endpoint != "" {
			o.BaseEndpoint = aws.String(cc.Endpoint)
		}
		if cc.UsePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

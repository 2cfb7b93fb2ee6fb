package s3

import (
	"github.com/gobeaver/diskkit"
	"github.com/gobeaver/diskkit/internal/driverconf"
)

// ClientConfig describes how to build an S3 client when none is given.
type ClientConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
	SessionToken    string `mapstructure:"session_token"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// Config is the validated construction input of an S3 adapter. Exactly one
// of Client and ClientConfig is used; Client wins when both are set.
type Config struct {
	Client           API                      `validate:"-"`
	ClientConfig     *ClientConfig            `validate:"-"`
	Bucket           string                   `validate:"required"`
	Prefix           string
	Visibility       diskkit.Visibility       `validate:"omitempty,oneof=public private"`
	MimeTypeDetector diskkit.MimeTypeDetector `validate:"-"`
}

// mapOptions is the shape of the options map.
type mapOptions struct {
	Bucket     string             `mapstructure:"bucket"`
	Prefix     string             `mapstructure:"prefix"`
	Visibility diskkit.Visibility `mapstructure:"visibility"`
}

// ParseArgs turns driver arguments into a Config. args[0] is an API client,
// a ClientConfig or a map of ClientConfig keys. args[1] is either an options
// map (bucket, prefix, visibility) or the bucket name followed by the
// optional positional prefix and visibility.
//
// ParseArgs performs no I/O.
func ParseArgs(args ...any) (Config, error) {
	if len(args) == 0 || args[0] == nil {
		return Config{}, diskkit.NewConfigError(DriverName, "client", "client argument is required")
	}

	var cfg Config
	switch client := args[0].(type) {
	case API:
		cfg.Client = client
	case ClientConfig:
		cfg.ClientConfig = &client
	case *ClientConfig:
		cfg.ClientConfig = client
	default:
		if !driverconf.IsMap(client) {
			return Config{}, diskkit.NewConfigError(DriverName, "client", "must be an s3.API, a ClientConfig or a map, got %T", client)
		}
		var cc ClientConfig
		if err := driverconf.Decode(DriverName, client, &cc); err != nil {
			return Config{}, err
		}
		cfg.ClientConfig = &cc
	}

	rest := args[1:]
	if len(rest) == 0 || rest[0] == nil {
		return Config{}, diskkit.NewConfigError(DriverName, "bucket", "bucket argument is required")
	}

	if driverconf.IsMap(rest[0]) {
		if len(rest) > 1 {
			return Config{}, diskkit.NewConfigError(DriverName, "", "unexpected arguments after options map")
		}
		var m mapOptions
		if err := driverconf.Decode(DriverName, rest[0], &m); err != nil {
			return Config{}, err
		}
		cfg.Bucket, cfg.Prefix, cfg.Visibility = m.Bucket, m.Prefix, m.Visibility
	} else if err := applyPositional(&cfg, rest); err != nil {
		return Config{}, err
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyPositional handles (bucket, prefix, visibility).
func applyPositional(cfg *Config, args []any) error {
	if len(args) > 3 {
		return diskkit.NewConfigError(DriverName, "", "expected at most 4 arguments, got %d", len(args)+1)
	}

	bucket, ok := args[0].(string)
	if !ok {
		return diskkit.NewConfigError(DriverName, "bucket", "must be a string, got %T", args[0])
	}
	cfg.Bucket = bucket

	if len(args) > 1 && args[1] != nil {
		prefix, ok := args[1].(string)
		if !ok {
			return diskkit.NewConfigError(DriverName, "prefix", "must be a string, got %T", args[1])
		}
		cfg.Prefix = prefix
	}

	if len(args) > 2 && args[2] != nil {
		switch v := args[2].(type) {
		case diskkit.Visibility:
			cfg.Visibility = v
		case string:
			parsed, err := diskkit.ParseVisibility(v)
			if err != nil {
				return err
			}
			cfg.Visibility = parsed
		default:
			return diskkit.NewConfigError(DriverName, "visibility", "must be a string, got %T", args[2])
		}
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Client == nil && cfg.ClientConfig == nil {
		return diskkit.NewConfigError(DriverName, "client", "client argument is required")
	}
	if err := driverconf.Validate(DriverName, cfg); err != nil {
		return err
	}
	if cfg.Client == nil {
		return driverconf.Validate(DriverName, cfg.ClientConfig)
	}
	return nil
}

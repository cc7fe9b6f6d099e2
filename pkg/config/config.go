package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/mitlibraries/llama/pkg/params"
)

// ErrMissingValues is returned when required values are not configured.
var ErrMissingValues = errors.New("missing required configuration values")

// ParamReader reads a parameter store value.
type ParamReader interface {
	GetParameterValue(ctx context.Context, name string) (string, error)
}

// ParamsFunc opens the parameter store for region. It is only called for
// deployed workspaces.
type ParamsFunc func(ctx context.Context, region string) (ParamReader, error)

// Config is built once at start and passed to every component.
type Config struct {
	Workspace string
	SSMPath   string
	AWSRegion string
	LogLevel  string

	AlmaAPIURL       string
	AlmaReadKey      string
	AlmaReadWriteKey string
	AlmaMaxRetries   int

	DropboxHost string
	DropboxPort string
	DropboxUser string
	DropboxKey  string

	FinalRecipients  string
	ReviewRecipients string
	ReplyToEmail     string
	FromEmail        string

	AlmaBucket     string
	DipAlephBucket string

	SentryDSN string
}

// Deployed reports whether values come from the parameter store.
func (c *Config) Deployed() bool {
	return c.Workspace == "stage" || c.Workspace == "prod"
}

// values maps each configuration name to its field.
func (c *Config) values() map[string]*string {
	return map[string]*string{
		"ALMA_API_URL":                &c.AlmaAPIURL,
		"ALMA_API_ACQ_READ_KEY":       &c.AlmaReadKey,
		"ALMA_API_ACQ_READ_WRITE_KEY": &c.AlmaReadWriteKey,
		"SAP_DROPBOX_HOST":            &c.DropboxHost,
		"SAP_DROPBOX_PORT":            &c.DropboxPort,
		"SAP_DROPBOX_USER":            &c.DropboxUser,
		"SAP_DROPBOX_KEY":             &c.DropboxKey,
		"SAP_FINAL_RECIPIENT_EMAILS":  &c.FinalRecipients,
		"SAP_REVIEW_RECIPIENT_EMAILS": &c.ReviewRecipients,
		"SAP_REPLY_TO_EMAIL":          &c.ReplyToEmail,
		"SES_SEND_FROM_EMAIL":         &c.FromEmail,
		"SENTRY_DSN":                  &c.SentryDSN,
	}
}

// optional values may be absent from the parameter store.
var optional = map[string]bool{"SENTRY_DSN": true}

// Require returns ErrMissingValues naming every empty value in names.
func (c *Config) Require(names ...string) error {
	fields := c.values()
	var missing []string
	for _, name := range names {
		f, ok := fields[name]
		if !ok {
			return fmt.Errorf("unknown configuration value %s", name)
		}
		if *f == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingValues, strings.Join(missing, ", "))
	}
	return nil
}

// DefaultFile is the config file read when none is given.
func DefaultFile() string {
	return filepath.Join(xdg.ConfigHome, "llama", "config.yaml")
}

// flagKeys binds command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level": "LOG_LEVEL",
	"workspace": "WORKSPACE",
}

// Load reads .env, the config file, the environment and bound flags, in
// increasing order of precedence.
func Load(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("ALMA_MAX_RETRIES", 1)
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	path := cfgFile
	if path == "" {
		path = DefaultFile()
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}
	return v, nil
}

// Build loads configuration. In the stage and prod workspaces every value is
// read from the parameter store under SSM_PATH.
func Build(ctx context.Context, cfgFile string, flags *pflag.FlagSet, openParams ParamsFunc) (*Config, error) {
	v, err := Load(cfgFile, flags)
	if err != nil {
		return nil, err
	}

	c := &Config{
		Workspace:      v.GetString("WORKSPACE"),
		SSMPath:        v.GetString("SSM_PATH"),
		AWSRegion:      v.GetString("AWS_REGION"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		AlmaMaxRetries: v.GetInt("ALMA_MAX_RETRIES"),
		AlmaBucket:     v.GetString("ALMA_BUCKET"),
		DipAlephBucket: v.GetString("DIP_ALEPH_BUCKET"),
	}
	if c.Workspace == "" {
		return nil, fmt.Errorf("%w: WORKSPACE", ErrMissingValues)
	}
	if strings.Contains(c.SSMPath, "/prod") && c.Workspace != "prod" {
		return nil, fmt.Errorf("SSM_PATH %q points at prod but WORKSPACE is %q", c.SSMPath, c.Workspace)
	}

	if !c.Deployed() {
		for name, f := range c.values() {
			*f = v.GetString(name)
		}
		apiKey := v.GetString("ALMA_API_KEY")
		if c.AlmaReadKey == "" {
			c.AlmaReadKey = apiKey
		}
		if c.AlmaReadWriteKey == "" {
			c.AlmaReadWriteKey = apiKey
		}
		return c, nil
	}

	if c.SSMPath == "" {
		return nil, fmt.Errorf("%w: SSM_PATH", ErrMissingValues)
	}
	store, err := openParams(ctx, c.AWSRegion)
	if err != nil {
		return nil, err
	}
	var missing []string
	for name, f := range c.values() {
		value, err := store.GetParameterValue(ctx, c.SSMPath+name)
		switch {
		case errors.Is(err, params.ErrNotFound):
			if !optional[name] {
				missing = append(missing, name)
			}
		case err != nil:
			return nil, err
		default:
			*f = value
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w in %s: %s", ErrMissingValues, c.SSMPath, strings.Join(missing, ", "))
	}
	return c, nil
}

// Package config loads the catalog mirror configuration.
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ListSeparator splits list values given as plain strings, e.g. through the
// environment. Commas are taken by filter clauses.
const ListSeparator = ";"

// Config holds all configuration for the mirror.
type Config struct {
	// Mirror holds the catalog mirroring settings, named as in the catalog app-config.
	Mirror MirrorConfig `mapstructure:"grafanaCloudCatalogInfo"`
	// Log holds logger settings.
	Log LogConfig `mapstructure:"log"`
	// Cache holds the entity snapshot cache settings.
	Cache CacheConfig `mapstructure:"cache"`
}

// MirrorConfig configures what is mirrored and where to.
type MirrorConfig struct {
	Enable          bool     `mapstructure:"enable" default:"false"`
	Allow           []string `mapstructure:"allow" default:""`
	StackSlug       string   `mapstructure:"stack_slug" default:""`
	GrafanaEndpoint string   `mapstructure:"grafana_endpoint" default:""`
	Token           string   `mapstructure:"token" default:""`
	// InCluster uses the pod service account; forced when CI=true.
	InCluster         bool          `mapstructure:"in_cluster" default:"false"`
	SkipKinds         []string      `mapstructure:"skip_kinds" default:"Location;API"`
	ReconnectCooldown time.Duration `mapstructure:"reconnect_cooldown" default:"1s"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" default:"10s"`
	RecordEvents      bool          `mapstructure:"record_events" default:"false"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info or error.
	Level       string `mapstructure:"level" default:"info"`
	Development bool   `mapstructure:"development" default:"false"`
}

// CacheConfig sizes the in-memory snapshot cache.
type CacheConfig struct {
	Size int           `mapstructure:"size" default:"4096"`
	TTL  time.Duration `mapstructure:"ttl" default:"24h"`
}

// Load reads configuration from an optional YAML file, a .env file next to
// it (or in the working directory) and the environment, in increasing order
// of precedence. The result is normalised but not validated.
func Load(path string) (*Config, error) {
	envPath := ".env"
	if path != "" {
		envPath = filepath.Join(filepath.Dir(path), ".env")
	}
	// A missing .env file is fine.
	_ = godotenv.Load(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(ListSeparator),
	)))
	if err != nil {
		return nil, err
	}
	config.normalise()
	return &config, nil
}

func (config *Config) normalise() {
	config.Mirror.GrafanaEndpoint = strings.TrimSuffix(config.Mirror.GrafanaEndpoint, "/")
	if os.Getenv("CI") == "true" {
		config.Mirror.InCluster = true
	}
	config.Log.Level = strings.ToLower(config.Log.Level)
}

// bindValues registers every mapstructure key with its default so that
// AutomaticEnv can resolve it.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		v.SetDefault(key, field.Tag.Get("default"))
	}
}

package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmcpi/uefivars/internal/firmware/boot"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/viper"
)

const (
	defaultNvramPath    = "/etc/uefivars"
	defaultTemplatePath = "/usr/share/bhyve/firmware/BHYVE_VARS.fd"
)

type NvramConfig struct {
	Path     string `yaml:"path"     mapstructure:"path"`
	Template string `yaml:"template" mapstructure:"template"`
	Backup   bool   `yaml:"backup"   mapstructure:"backup"`
}

type DevicesConfig struct {
	BootDisk bool `yaml:"bootdisk" mapstructure:"bootdisk"`
	Disks    int  `yaml:"disks"    mapstructure:"disks"`
	CDROMs   int  `yaml:"cdroms"   mapstructure:"cdroms"`
	NICs     int  `yaml:"nics"     mapstructure:"nics"`
}

type BootConfig struct {
	Order        string            `yaml:"order"         mapstructure:"order"`
	Next         string            `yaml:"next"          mapstructure:"next"`
	Options      map[string]string `yaml:"options"       mapstructure:"options"`
	OrderAliases map[string]string `yaml:"order_aliases" mapstructure:"order_aliases"`
	Devices      DevicesConfig     `yaml:"devices"       mapstructure:"devices"`
}

type Config struct {
	LogLevel  string      `yaml:"log_level"  mapstructure:"log_level"`
	LogFormat string      `yaml:"log_format" mapstructure:"log_format"`
	Nvram     NvramConfig `yaml:"nvram"      mapstructure:"nvram"`
	Boot      BootConfig  `yaml:"boot"       mapstructure:"boot"`
	Dump      bool        `yaml:"dump"       mapstructure:"dump"`
	Log       logr.Logger `yaml:"-"          mapstructure:"-"`
}

// Resolver builds the boot token resolver described by the configuration.
func (c *Config) Resolver() (*boot.Resolver, error) {
	r := boot.NewResolver()
	r.AddDevices(boot.Devices{
		BootDisk: c.Boot.Devices.BootDisk,
		Disks:    c.Boot.Devices.Disks,
		CDROMs:   c.Boot.Devices.CDROMs,
		NICs:     c.Boot.Devices.NICs,
	})
	for name, literal := range c.Boot.Options {
		t, err := boot.ParseTarget(literal)
		if err != nil {
			return nil, fmt.Errorf("config: boot option %s: %w", name, err)
		}
		r.AddOption(name, t)
	}
	for name, order := range c.Boot.OrderAliases {
		r.AddAlias(name, order)
	}
	return r, nil
}

// NewConfig reads uefivars.yaml from /etc/uefivars.d or the working
// directory, or the file named by UEFIVARS_CONFIG. A missing file leaves
// the defaults in place.
func NewConfig() (*Config, error) {
	v := viper.New()
	if file, ok := os.LookupEnv("UEFIVARS_CONFIG"); ok {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("uefivars")
		v.AddConfigPath("/etc/uefivars.d/")
		v.AddConfigPath(".")
	}
	return Load(v)
}

// Load applies defaults and environment overrides to v and decodes it.
func Load(v *viper.Viper) (*Config, error) {
	conf := &Config{}

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("nvram.path", defaultNvramPath)
	v.SetDefault("nvram.template", defaultTemplatePath)
	v.SetDefault("nvram.backup", false)

	v.SetDefault("boot.order", boot.DefaultOrder)
	v.SetDefault("boot.next", "")
	v.SetDefault("boot.options", map[string]string{})
	v.SetDefault("boot.order_aliases", map[string]string{})
	v.SetDefault("boot.devices.bootdisk", true)
	v.SetDefault("boot.devices.disks", 0)
	v.SetDefault("boot.devices.cdroms", 1)
	v.SetDefault("boot.devices.nics", 1)

	v.SetDefault("dump", false)

	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: unable to read config file: %w", err)
		}
	}

	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey); err != nil {
			return nil, fmt.Errorf("config: unable to bind env: %w", err)
		}
	}

	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("config: unable to decode: %w", err)
	}

	switch conf.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("config: unknown log_format %q", conf.LogFormat)
	}

	conf.Log = defaultLogger(conf.LogLevel, conf.LogFormat)

	return conf, nil
}

// defaultLogger uses the slog logr implementation for json and stdr for
// text output.
func defaultLogger(level, format string) logr.Logger {
	if format == "text" {
		stdr.SetVerbosity(0)
		if level == "debug" {
			stdr.SetVerbosity(1)
		}
		return stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	}

	// source file and function can be long. This makes the logs less readable.
	// truncate source file and function to last 3 parts for improved readability.
	customAttr := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			ss, ok := a.Value.Any().(*slog.Source)
			if !ok || ss == nil {
				return a
			}
			f := strings.Split(ss.Function, "/")
			if len(f) > 3 {
				ss.Function = filepath.Join(f[len(f)-3:]...)
			}
			p := strings.Split(ss.File, "/")
			if len(p) > 3 {
				ss.File = filepath.Join(p[len(p)-3:]...)
			}

			return a
		}

		return a
	}
	opts := &slog.HandlerOptions{AddSource: true, ReplaceAttr: customAttr}
	switch level {
	case "debug":
		opts.Level = slog.LevelDebug
	default:
		opts.Level = slog.LevelInfo
	}
	return logr.FromSlogHandler(slog.NewJSONHandler(os.Stderr, opts))
}

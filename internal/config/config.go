// Package config loads run settings from flags, environment, .env and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/whatsapp-automation/broadcaster/internal/antiban"
	"github.com/whatsapp-automation/broadcaster/internal/browser"
	"github.com/whatsapp-automation/broadcaster/internal/message"
)

const (
	EnvPrefix = "BROADCASTER"

	TransportBrowser   = "browser"
	TransportWhatsmeow = "whatsmeow"
)

// Config is every setting of a send run. Keys match the CLI flag names;
// environment variables are BROADCASTER_<FLAG_NAME> with dashes as
// underscores.
type Config struct {
	Input        string `mapstructure:"csv"`
	PhoneCol     string `mapstructure:"phone-col"`
	NameCol      string `mapstructure:"name-col"`
	Message      string `mapstructure:"message"`
	MessageFile  string `mapstructure:"message-file"`
	MessagesJSON string `mapstructure:"messages-json"`

	ReportDir string `mapstructure:"report-dir"`
	LedgerDSN string `mapstructure:"ledger"`
	DryRun    bool   `mapstructure:"dry-run"`
	Transport string `mapstructure:"transport"`

	BatchSize         int           `mapstructure:"batch-size"`
	BatchPause        time.Duration `mapstructure:"batch-pause"`
	PreSendMin        time.Duration `mapstructure:"pre-send-min"`
	PreSendMax        time.Duration `mapstructure:"pre-send-max"`
	Settle            time.Duration `mapstructure:"settle"`
	PreSubmitMin      time.Duration `mapstructure:"pre-submit-min"`
	PreSubmitMax      time.Duration `mapstructure:"pre-submit-max"`
	PostSubmitMin     time.Duration `mapstructure:"post-submit-min"`
	PostSubmitMax     time.Duration `mapstructure:"post-submit-max"`
	ComposeTimeout    time.Duration `mapstructure:"compose-timeout"`
	PollInterval      time.Duration `mapstructure:"poll-interval"`
	MaxSessionRetries int           `mapstructure:"max-session-retries"`

	ChromeBin    string        `mapstructure:"chrome-bin"`
	ControlURL   string        `mapstructure:"control-url"`
	Headless     bool          `mapstructure:"headless"`
	UserDataDir  string        `mapstructure:"user-data-dir"`
	LoginTimeout time.Duration `mapstructure:"login-timeout"`
	DeviceSeed   string        `mapstructure:"device-seed"`
	Country      string        `mapstructure:"country"`
	QRDir        string        `mapstructure:"qr-dir"`

	SessionDB string `mapstructure:"session-db"`

	StatusAddr string `mapstructure:"status-addr"`

	TelegramToken  string `mapstructure:"telegram-token"`
	TelegramChatID string `mapstructure:"telegram-chat-id"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	Proxy ProxyConfig `mapstructure:",squash"`
}

// Defaults registers the default of every key on v.
func Defaults(v *viper.Viper) {
	policy := antiban.DefaultPolicy()

	v.SetDefault("phone-col", "phone")
	v.SetDefault("name-col", "name")
	v.SetDefault("report-dir", ".")
	v.SetDefault("transport", TransportBrowser)

	v.SetDefault("batch-size", policy.BatchSize)
	v.SetDefault("batch-pause", policy.BatchPause)
	v.SetDefault("pre-send-min", policy.PreSend.Min)
	v.SetDefault("pre-send-max", policy.PreSend.Max)
	v.SetDefault("settle", policy.Settle)
	v.SetDefault("pre-submit-min", policy.PreSubmit.Min)
	v.SetDefault("pre-submit-max", policy.PreSubmit.Max)
	v.SetDefault("post-submit-min", policy.PostSubmit.Min)
	v.SetDefault("post-submit-max", policy.PostSubmit.Max)
	v.SetDefault("compose-timeout", policy.ComposeTimeout)
	v.SetDefault("poll-interval", policy.PollInterval)
	v.SetDefault("max-session-retries", 3)

	v.SetDefault("user-data-dir", "./chrome-data")
	v.SetDefault("login-timeout", 60*time.Second)
	v.SetDefault("device-seed", "default-seed")
	v.SetDefault("country", "BR")
	v.SetDefault("qr-dir", "./qrcodes")
	v.SetDefault("session-db", "./sessions/whatsmeow.db")

	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("proxy-type", "socks5")
}

// legacyEnv maps keys to the unprefixed variable names the worker deployments
// already export.
var legacyEnv = map[string]string{
	"device-seed":      "DEVICE_SEED",
	"country":          "PROXY_COUNTRY",
	"proxy-host":       "PROXY_HOST",
	"proxy-port":       "PROXY_PORT",
	"proxy-user":       "PROXY_USER",
	"proxy-pass":       "PROXY_PASS",
	"proxy-type":       "PROXY_TYPE",
	"telegram-token":   "TELEGRAM_TOKEN",
	"telegram-chat-id": "TELEGRAM_CHAT_ID",
	"log-level":        "LOG_LEVEL",
}

// Prepare loads .env (if present), wires environment lookup and reads the
// optional config file.
func Prepare(v *viper.Viper, configFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("[Config] Could not load .env: %v", err)
	}

	Defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return nil
}

// Load decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Policy builds the pacing policy from the configured ranges.
func (c *Config) Policy() antiban.Policy {
	return antiban.Policy{
		PreSend:        antiban.Range{Min: c.PreSendMin, Max: c.PreSendMax},
		Settle:         c.Settle,
		PreSubmit:      antiban.Range{Min: c.PreSubmitMin, Max: c.PreSubmitMax},
		PostSubmit:     antiban.Range{Min: c.PostSubmitMin, Max: c.PostSubmitMax},
		ComposeTimeout: c.ComposeTimeout,
		PollInterval:   c.PollInterval,
		BatchSize:      c.BatchSize,
		BatchPause:     c.BatchPause,
	}
}

// MessageOptions returns the message source settings.
func (c *Config) MessageOptions() message.Options {
	return message.Options{Text: c.Message, TextFile: c.MessageFile, JSONFile: c.MessagesJSON}
}

// Browser returns the Chrome settings.
func (c *Config) Browser() browser.Config {
	cfg := browser.DefaultConfig()
	cfg.Bin = c.ChromeBin
	cfg.ControlURL = c.ControlURL
	cfg.Headless = c.Headless
	cfg.UserDataDir = c.UserDataDir
	cfg.LoginTimeout = c.LoginTimeout
	cfg.ProxyServer = c.Proxy.ServerFlag()
	if c.Proxy.Enabled() && c.Proxy.HasAuth() {
		cfg.ProxyUser = c.Proxy.User
		cfg.ProxyPass = c.Proxy.Pass
	}
	return cfg
}

// Validate checks everything a send run needs before any transport starts.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Input, validation.Required, validation.By(fileExists)),
		validation.Field(&c.PhoneCol, validation.Required),
		validation.Field(&c.MessageFile, validation.When(c.MessageFile != "", validation.By(fileExists))),
		validation.Field(&c.MessagesJSON, validation.When(c.MessagesJSON != "", validation.By(fileExists))),
		validation.Field(&c.Transport, validation.Required, validation.In(TransportBrowser, TransportWhatsmeow)),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.BatchPause, validation.Min(time.Duration(0))),
		validation.Field(&c.ComposeTimeout, validation.Required),
		validation.Field(&c.PollInterval, validation.Required),
		validation.Field(&c.MaxSessionRetries, validation.Min(0)),
		validation.Field(&c.ReportDir, validation.Required),
		validation.Field(&c.Proxy, validation.When(c.Proxy.Enabled(), validation.By(validProxy))),
	); err != nil {
		return err
	}

	set := 0
	for _, s := range []string{c.Message, c.MessageFile, c.MessagesJSON} {
		if s != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return message.ErrNoSource
	case set > 1:
		return message.ErrMultipleSource
	}

	return c.Policy().Validate()
}

func fileExists(value interface{}) error {
	path, _ := value.(string)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file %q not found", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", path)
	}
	return nil
}

func validProxy(value interface{}) error {
	p, _ := value.(ProxyConfig)
	return validation.ValidateStruct(&p,
		validation.Field(&p.Port, validation.Required),
		validation.Field(&p.Type, validation.In("socks5", "http", "https")),
	)
}

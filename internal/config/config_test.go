package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsapp-automation/broadcaster/internal/message"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func load(t *testing.T, configFile string, set map[string]interface{}) *Config {
	t.Helper()
	v := viper.New()
	require.NoError(t, Prepare(v, configFile))
	for k, val := range set {
		v.Set(k, val)
	}
	cfg, err := Load(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := load(t, "", nil)

	assert.Equal(t, "phone", cfg.PhoneCol)
	assert.Equal(t, "name", cfg.NameCol)
	assert.Equal(t, ".", cfg.ReportDir)
	assert.Equal(t, TransportBrowser, cfg.Transport)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, time.Minute, cfg.BatchPause)
	assert.Equal(t, 8*time.Second, cfg.PreSendMin)
	assert.Equal(t, 15*time.Second, cfg.PreSendMax)
	assert.Equal(t, 15*time.Second, cfg.ComposeTimeout)
	assert.Equal(t, 3, cfg.MaxSessionRetries)
	assert.Equal(t, "socks5", cfg.Proxy.Type)

	policy := cfg.Policy()
	require.NoError(t, policy.Validate())
	assert.Equal(t, 5*time.Second, policy.PostSubmit.Min)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("BROADCASTER_BATCH_SIZE", "10")
	t.Setenv("BROADCASTER_BATCH_PAUSE", "2m")
	t.Setenv("DEVICE_SEED", "worker-7")
	t.Setenv("PROXY_HOST", "proxy.local")
	t.Setenv("PROXY_PORT", "1080")

	cfg := load(t, "", nil)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.BatchPause)
	assert.Equal(t, "worker-7", cfg.DeviceSeed)
	assert.Equal(t, "socks5://proxy.local:1080", cfg.Proxy.ServerFlag())
	assert.Equal(t, "socks5://proxy.local:1080", cfg.Browser().ProxyServer)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broadcaster.yaml", "transport: whatsmeow\nsettle: 3s\nreport-dir: out\n")

	cfg := load(t, path, nil)
	assert.Equal(t, TransportWhatsmeow, cfg.Transport)
	assert.Equal(t, 3*time.Second, cfg.Settle)
	assert.Equal(t, "out", cfg.ReportDir)
}

func TestMissingConfigFile(t *testing.T) {
	err := Prepare(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "contacts.csv", "phone\n11987654321\n")

	valid := func() *Config {
		return load(t, "", map[string]interface{}{"csv": input, "message": "Olá {name}"})
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"missing input":     func(c *Config) { c.Input = "" },
		"input not found":   func(c *Config) { c.Input = filepath.Join(dir, "nope.csv") },
		"input is dir":      func(c *Config) { c.Input = dir },
		"bad transport":     func(c *Config) { c.Transport = "sms" },
		"zero batch":        func(c *Config) { c.BatchSize = 0 },
		"inverted range":    func(c *Config) { c.PreSendMin, c.PreSendMax = 10*time.Second, time.Second },
		"message file gone": func(c *Config) { c.Message, c.MessageFile = "", filepath.Join(dir, "msg.txt") },
		"proxy without port": func(c *Config) {
			c.Proxy.Host = "proxy.local"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateMessageSources(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "contacts.csv", "phone\n11987654321\n")
	msgFile := writeFile(t, dir, "msg.txt", "hello")

	cfg := load(t, "", map[string]interface{}{"csv": input})
	assert.ErrorIs(t, cfg.Validate(), message.ErrNoSource)

	cfg.Message = "hi"
	cfg.MessageFile = msgFile
	assert.ErrorIs(t, cfg.Validate(), message.ErrMultipleSource)

	cfg.Message = ""
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, message.Options{TextFile: msgFile}, cfg.MessageOptions())
}

func TestProxyConfig(t *testing.T) {
	var p ProxyConfig
	assert.False(t, p.Enabled())
	assert.Equal(t, "", p.ServerFlag())
	assert.Equal(t, "disabled", p.String())

	p = ProxyConfig{Host: "h", Port: "8080", User: "u@x", Pass: "s3cret", Type: "http"}
	assert.True(t, p.HasAuth())
	assert.Equal(t, "http://h:8080", p.ServerFlag())
	assert.Equal(t, "http://u%40x:s3cret@h:8080", p.GetURL())
	assert.Equal(t, "http://u@x:***@h:8080", p.String())
	assert.NotContains(t, p.String(), "s3cret")
}

func TestBrowserProxyCredentials(t *testing.T) {
	c := &Config{Proxy: ProxyConfig{Host: "h", Port: "1080", User: "u", Pass: "p"}}
	bc := c.Browser()
	assert.Equal(t, "socks5://h:1080", bc.ProxyServer)
	assert.Equal(t, "u", bc.ProxyUser)
	assert.Equal(t, "p", bc.ProxyPass)

	// credentials without a host have nothing to answer
	c.Proxy.Host = ""
	bc = c.Browser()
	assert.Empty(t, bc.ProxyServer)
	assert.Empty(t, bc.ProxyUser)
	assert.Empty(t, bc.ProxyPass)

	c = &Config{Proxy: ProxyConfig{Host: "h", Port: "1080"}}
	assert.Empty(t, c.Browser().ProxyUser)
}

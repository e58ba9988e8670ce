package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Profile is a deterministic browser identity derived from a seed, applied
// to the WhatsApp Web tab so restarts look like the same desktop.
type Profile struct {
	ID             string // 16 hex chars from SHA256
	UserAgent      string // desktop Chrome UA
	Timezone       string // based on country
	Language       string // based on country
	ViewportWidth  int
	ViewportHeight int
	Country        string
}

// countryConfig holds timezone and language for each country
type countryConfig struct {
	Timezone string
	Language string
}

var countryConfigs = map[string]countryConfig{
	"BR": {Timezone: "America/Sao_Paulo", Language: "pt-BR"},
	"PT": {Timezone: "Europe/Lisbon", Language: "pt-PT"},
	"US": {Timezone: "America/New_York", Language: "en-US"},
	"GB": {Timezone: "Europe/London", Language: "en-GB"},
	"DE": {Timezone: "Europe/Berlin", Language: "de-DE"},
	"FR": {Timezone: "Europe/Paris", Language: "fr-FR"},
	"ES": {Timezone: "Europe/Madrid", Language: "es-ES"},
	"AR": {Timezone: "America/Argentina/Buenos_Aires", Language: "es-AR"},
	"MX": {Timezone: "America/Mexico_City", Language: "es-MX"},
	"IN": {Timezone: "Asia/Kolkata", Language: "en-IN"},
}

// Chrome major versions for user agent selection
var chromeVersions = []string{
	"124.0.6367.91",
	"125.0.6422.112",
	"126.0.6478.127",
	"127.0.6533.89",
	"128.0.6613.120",
	"129.0.6668.90",
	"130.0.6723.117",
	"131.0.6778.86",
}

// Common desktop window sizes
var viewports = [][2]int{
	{1366, 768},
	{1440, 900},
	{1536, 864},
	{1600, 900},
	{1920, 1080},
}

// Generate creates a DETERMINISTIC profile from a seed.
// Same seed + same country = same profile (for consistency across restarts).
func Generate(seed string, country string) Profile {
	if seed == "" {
		seed = "default-seed"
	}
	if country == "" {
		country = "BR"
	}
	country = strings.ToUpper(country)

	sum := sha256.Sum256([]byte(seed))
	hashHex := hex.EncodeToString(sum[:])

	version := chromeVersions[int(sum[0])%len(chromeVersions)]
	userAgent := fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", version)

	vp := viewports[int(sum[1])%len(viewports)]

	config, ok := countryConfigs[country]
	if !ok {
		config = countryConfigs["BR"]
	}

	return Profile{
		ID:             hashHex[:16],
		UserAgent:      userAgent,
		Timezone:       config.Timezone,
		Language:       config.Language,
		ViewportWidth:  vp[0],
		ViewportHeight: vp[1],
		Country:        country,
	}
}

// ToMap returns the profile as a map for JSON serialization
func (p Profile) ToMap() map[string]string {
	return map[string]string{
		"id":         p.ID,
		"user_agent": p.UserAgent,
		"timezone":   p.Timezone,
		"language":   p.Language,
		"viewport":   fmt.Sprintf("%dx%d", p.ViewportWidth, p.ViewportHeight),
		"country":    p.Country,
	}
}

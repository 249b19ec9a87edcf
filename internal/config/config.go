package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for stockbot.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Market   MarketConfig   `json:"market"`
	Chart    ChartConfig    `json:"chart"`
	Channels ChannelsConfig `json:"channels"`
	Server   ServerConfig   `json:"server"`
	Metrics  MetricsConfig  `json:"metrics"`
	API      APIConfig      `json:"api"`
}

type GeneralConfig struct {
	LogLevel               string `json:"logLevel"`
	LogFormat              string `json:"logFormat"` // "text" | "json"
	LogFile                string `json:"logFile,omitempty"`
	MaxConcurrentMessages  int    `json:"maxConcurrentMessages"`
	MaxConcurrentCommands  int    `json:"maxConcurrentCommands"` // per message
	CommandTimeoutSeconds  int    `json:"commandTimeoutSeconds"`
	TypingKeepaliveSeconds int    `json:"typingKeepaliveSeconds"`
}

// MarketConfig configures the Yahoo Finance client and report contents.
type MarketConfig struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	SearchLimit    int    `json:"searchLimit"`
	ReturnPeriods  []int  `json:"returnPeriods"` // months
	HistoryDays    int    `json:"historyDays"`
	UserAgent      string `json:"userAgent,omitempty"`
}

type ChartConfig struct {
	Renderer             string `json:"renderer"` // "raster" | "chrome" | "none"
	ChromePath           string `json:"chromePath,omitempty"`
	ChromeTimeoutSeconds int    `json:"chromeTimeoutSeconds"`
	Width                int    `json:"width"`
	Height               int    `json:"height"`
	OutDir               string `json:"outDir,omitempty"` // CLI chart output
}

type ChannelsConfig struct {
	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram"`
	CLI      CLIConfig      `json:"cli"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	GuildID string `json:"guildId,omitempty"` // optional: restrict to specific guild
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// ServerConfig is the HTTP listener shared by metrics and the lookup API.
type ServerConfig struct {
	Listen string `json:"listen"`
}

// MetricsConfig configures the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// APIConfig configures the JSON lookup endpoint.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"apiKey,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.stockbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stockbot"
	}
	return filepath.Join(home, ".stockbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// LoadDotEnv loads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		p = ExpandPath(p)
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("cannot load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a JSON or YAML config file. A missing file yields the defaults.
// Environment tokens are applied and the result validated in both cases.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadFile is Load without ApplyEnv, for editing a file in place.
func LoadFile(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, env bool) (*Config, error) {
	path = ExpandPath(path)

	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	default:
		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if env {
		ApplyEnv(cfg)
	}
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Chart.OutDir = ExpandPath(cfg.Chart.OutDir)
	cfg.Chart.ChromePath = ExpandPath(cfg.Chart.ChromePath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// decode unmarshals JSON, or YAML for .yaml/.yml files. YAML goes through a
// generic map so both formats share the json field names.
func decode(path string, data []byte, cfg *Config) error {
	if !isYAML(path) {
		return json.Unmarshal(data, cfg)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	j, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(j, cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ApplyEnv fills empty tokens from DISCORD_TOKEN and TELEGRAM_TOKEN.
func ApplyEnv(cfg *Config) {
	if cfg.Channels.Discord.Token == "" {
		cfg.Channels.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}
	if cfg.Channels.Telegram.Token == "" {
		cfg.Channels.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// Save writes cfg as indented JSON, or YAML for .yaml/.yml paths.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if isYAML(path) {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
		if data, err = yaml.Marshal(m); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
	}

	// Tokens may live in the file.
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}
	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.General.MaxConcurrentCommands < 1 || cfg.General.MaxConcurrentCommands > 32 {
		errs = append(errs, "general.maxConcurrentCommands must be between 1 and 32")
	}
	if cfg.General.CommandTimeoutSeconds < 1 {
		errs = append(errs, "general.commandTimeoutSeconds must be >= 1")
	}
	// Discord's typing indicator lasts ten seconds.
	if cfg.General.TypingKeepaliveSeconds < 1 || cfg.General.TypingKeepaliveSeconds > 10 {
		errs = append(errs, "general.typingKeepaliveSeconds must be between 1 and 10")
	}

	if cfg.Market.TimeoutSeconds < 1 {
		errs = append(errs, "market.timeoutSeconds must be >= 1")
	}
	if cfg.Market.SearchLimit < 1 || cfg.Market.SearchLimit > 25 {
		errs = append(errs, "market.searchLimit must be between 1 and 25")
	}
	maxPeriod := 0
	for _, p := range cfg.Market.ReturnPeriods {
		if p < 1 {
			errs = append(errs, fmt.Sprintf("market.returnPeriods: %d is not a positive number of months", p))
		}
		maxPeriod = max(maxPeriod, p)
	}
	if cfg.Market.HistoryDays < 30*maxPeriod {
		errs = append(errs, fmt.Sprintf("market.historyDays must cover the longest return period (>= %d)", 30*maxPeriod))
	}

	switch cfg.Chart.Renderer {
	case "raster", "chrome", "none":
	default:
		errs = append(errs, "chart.renderer must be one of: raster, chrome, none")
	}
	if cfg.Chart.Width < 200 || cfg.Chart.Width > 4000 {
		errs = append(errs, "chart.width must be between 200 and 4000")
	}
	if cfg.Chart.Height < 100 || cfg.Chart.Height > 4000 {
		errs = append(errs, "chart.height must be between 100 and 4000")
	}
	if cfg.Chart.Renderer == "chrome" && cfg.Chart.ChromeTimeoutSeconds < 1 {
		errs = append(errs, "chart.chromeTimeoutSeconds must be >= 1")
	}

	if (cfg.Metrics.Enabled || cfg.API.Enabled) && cfg.Server.Listen == "" {
		errs = append(errs, "server.listen is required when metrics or api is enabled")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateSurfaces checks what serving chat needs on top of Validate: at
// least one surface, and a token for every enabled bot.
func ValidateSurfaces(cfg *Config) error {
	var errs []string
	ch := cfg.Channels
	if !ch.Discord.Enabled && !ch.Telegram.Enabled && !ch.CLI.Enabled {
		errs = append(errs, "no channel enabled (channels.discord, channels.telegram or channels.cli)")
	}
	if ch.Discord.Enabled && ch.Discord.Token == "" {
		errs = append(errs, "channels.discord.token is required (or set DISCORD_TOKEN)")
	}
	if ch.Telegram.Enabled && ch.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required (or set TELEGRAM_TOKEN)")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

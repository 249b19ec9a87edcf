package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_MaxConcurrentMessages(t *testing.T) {
	for _, n := range []int{0, 101} {
		cfg := Defaults()
		cfg.General.MaxConcurrentMessages = n
		if err := Validate(cfg); err == nil {
			t.Errorf("expected error for maxConcurrentMessages=%d", n)
		}
	}
	for _, n := range []int{1, 100} {
		cfg := Defaults()
		cfg.General.MaxConcurrentMessages = n
		if err := Validate(cfg); err != nil {
			t.Errorf("maxConcurrentMessages=%d should be valid: %v", n, err)
		}
	}
}

func TestValidate_TypingKeepalive(t *testing.T) {
	cfg := Defaults()
	cfg.General.TypingKeepaliveSeconds = 11
	if err := Validate(cfg); err == nil {
		t.Fatal("keepalive beyond the typing indicator lifetime should be rejected")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidate_ValidRenderers(t *testing.T) {
	for _, r := range []string{"raster", "chrome", "none"} {
		cfg := Defaults()
		cfg.Chart.Renderer = r
		if err := Validate(cfg); err != nil {
			t.Errorf("renderer %q should be valid: %v", r, err)
		}
	}
	cfg := Defaults()
	cfg.Chart.Renderer = "matplotlib"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unknown renderer")
	}
}

func TestValidate_HistoryCoversReturnPeriods(t *testing.T) {
	cfg := Defaults()
	cfg.Market.ReturnPeriods = []int{1, 24}
	if err := Validate(cfg); err == nil {
		t.Fatal("400 days cannot cover a 24 month return")
	}
	cfg.Market.HistoryDays = 730
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_NonPositivePeriod(t *testing.T) {
	cfg := Defaults()
	cfg.Market.ReturnPeriods = []int{0, 3}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for zero-month period")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Market.SearchLimit = 0
	cfg.Chart.Width = 10
	cfg.Metrics.Enabled = true
	cfg.Metrics.Endpoint = "metrics"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"market.searchLimit", "chart.width", "metrics.endpoint"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_ServerListenRequired(t *testing.T) {
	cfg := Defaults()
	cfg.API.Enabled = true
	cfg.Server.Listen = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("api without a listen address should be rejected")
	}
}

func TestValidateSurfaces(t *testing.T) {
	cfg := Defaults()
	if err := ValidateSurfaces(cfg); err == nil || !strings.Contains(err.Error(), "DISCORD_TOKEN") {
		t.Fatalf("enabled discord without token should be rejected, got %v", err)
	}

	cfg.Channels.Discord.Token = "token"
	if err := ValidateSurfaces(cfg); err != nil {
		t.Fatalf("expected valid surfaces, got: %v", err)
	}

	cfg.Channels.Discord.Enabled = false
	if err := ValidateSurfaces(cfg); err == nil {
		t.Fatal("no enabled channel should be rejected")
	}

	cfg.Channels.Telegram.Enabled = true
	if err := ValidateSurfaces(cfg); err == nil {
		t.Fatal("enabled telegram without token should be rejected")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Market.SearchLimit = 8
	original.Chart.Renderer = "none"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Market.SearchLimit != 8 || loaded.Chart.Renderer != "none" {
		t.Fatalf("round trip lost values: %+v %+v", loaded.Market, loaded.Chart)
	}
}

func TestLoadSave_YAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := Defaults()
	original.Market.ReturnPeriods = []int{1, 6}
	original.Channels.Telegram.AllowFrom = FlexStringList{"42"}

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		t.Fatalf("expected YAML output, got:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Market.ReturnPeriods) != 2 || loaded.Market.ReturnPeriods[1] != 6 {
		t.Fatalf("unexpected periods %v", loaded.Market.ReturnPeriods)
	}
	if len(loaded.Channels.Telegram.AllowFrom) != 1 || loaded.Channels.Telegram.AllowFrom[0] != "42" {
		t.Fatalf("unexpected allow list %v", loaded.Channels.Telegram.AllowFrom)
	}
}

func TestLoad_YAMLNumericAllowList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := "channels:\n  telegram:\n    enabled: true\n    token: abc\n    allowFrom: [123, \"456\"]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := cfg.Channels.Telegram.AllowFrom
	if len(got) != 2 || got[0] != "123" || got[1] != "456" {
		t.Fatalf("unexpected allow list %v", got)
	}
	if cfg.Market.HistoryDays != 400 {
		t.Fatalf("unset keys should keep defaults, got historyDays=%d", cfg.Market.HistoryDays)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "from-env")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Market.SearchLimit != 5 {
		t.Fatalf("expected default search limit, got %d", cfg.Market.SearchLimit)
	}
	if cfg.Channels.Discord.Token != "from-env" {
		t.Fatalf("expected env token, got %q", cfg.Channels.Discord.Token)
	}
}

func TestLoad_FileTokenWinsOverEnv(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"channels":{"discord":{"enabled":true,"token":"from-file"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channels.Discord.Token != "from-file" {
		t.Fatalf("expected file token, got %q", cfg.Channels.Discord.Token)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{
		"general": {
			"maxConcurrentCommands": 0
		}
	}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgFile)
	if err == nil {
		t.Fatal("expected validation error for maxConcurrentCommands=0")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("STOCKBOT_TEST_DOTENV=hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STOCKBOT_TEST_DOTENV", "")
	os.Unsetenv("STOCKBOT_TEST_DOTENV")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("STOCKBOT_TEST_DOTENV"); got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

// --- Accessor ---

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	cases := map[string]any{
		"chart.renderer":                "raster",
		"market.returnPeriods.2":        float64(12),
		"general.maxConcurrentCommands": float64(4),
		"channels.discord.enabled":      true,
	}
	for path, want := range cases {
		got, err := GetByPath(cfg, path)
		if err != nil {
			t.Errorf("%s: %v", path, err)
			continue
		}
		if got != want {
			t.Errorf("%s: got %v, want %v", path, got, want)
		}
	}

	for _, bad := range []string{"market.quotes", "market.returnPeriods.7", "chart.renderer.name"} {
		if _, err := GetByPath(cfg, bad); err == nil {
			t.Errorf("%s: expected an error", bad)
		}
	}
}

func TestSetByPath_ParsesBySettingType(t *testing.T) {
	cfg := Defaults()
	sets := [][2]string{
		{"chart.renderer", "chrome"},
		{"channels.telegram.enabled", "true"},
		{"market.searchLimit", "10"},
		{"market.returnPeriods", "1, 6, 12"},
		{"channels.telegram.allowFrom", "12345,67890"},
		{"channels.discord.guildId", "998877"},
	}
	for _, kv := range sets {
		if err := SetByPath(cfg, kv[0], kv[1]); err != nil {
			t.Fatalf("set %s=%s: %v", kv[0], kv[1], err)
		}
	}
	if cfg.Chart.Renderer != "chrome" || !cfg.Channels.Telegram.Enabled || cfg.Market.SearchLimit != 10 {
		t.Fatalf("scalar settings not applied: %+v %+v", cfg.Chart, cfg.Market)
	}
	if got := cfg.Market.ReturnPeriods; len(got) != 3 || got[1] != 6 {
		t.Fatalf("unexpected return periods %v", got)
	}
	if got := cfg.Channels.Telegram.AllowFrom; len(got) != 2 || got[0] != "12345" {
		t.Fatalf("unexpected allow list %v", got)
	}
	if cfg.Channels.Discord.GuildID != "998877" {
		t.Fatalf("optional guildId not set: %q", cfg.Channels.Discord.GuildID)
	}
}

func TestSetByPath_RejectsInvalidChanges(t *testing.T) {
	cases := [][2]string{
		{"market.searchLimit", "50"},     // out of range
		{"market.searchLimit", "many"},   // not a number
		{"chart.renderer", "gnuplot"},    // unknown renderer
		{"market.returnPeriods", "1,24"}, // history too short for 24 months
		{"channels.discord.enabled", "yes please"},
		{"channels.slack.token", "x"},
		{"market", "x"},
	}
	for _, kv := range cases {
		cfg := Defaults()
		if err := SetByPath(cfg, kv[0], kv[1]); err == nil {
			t.Errorf("set %s=%s: expected an error", kv[0], kv[1])
		}
		if cfg.Market.SearchLimit != 5 || cfg.Chart.Renderer != "raster" || len(cfg.Market.ReturnPeriods) != 3 {
			t.Errorf("set %s=%s: config changed despite the error", kv[0], kv[1])
		}
	}
}

// --- Sanitize ---

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "123456789:ABCdefGHIjklMNOpqrSTUvwxyz"
	cfg.Channels.Discord.Token = "MTIzNDU2Nzg5MDEyMzQ1Njc4.abcdef.ghijklmnop"
	cfg.API.APIKey = "api-key-12345678"

	sanitized := Sanitize(cfg)

	if sanitized.Channels.Telegram.Token != "1234****wxyz" {
		t.Fatalf("unexpected telegram mask %q", sanitized.Channels.Telegram.Token)
	}
	if sanitized.Channels.Discord.Token != "MTIz****mnop" {
		t.Fatalf("unexpected discord mask %q", sanitized.Channels.Discord.Token)
	}
	if sanitized.API.APIKey != "api-****5678" {
		t.Fatalf("unexpected API key mask %q", sanitized.API.APIKey)
	}
	if cfg.Channels.Telegram.Token != "123456789:ABCdefGHIjklMNOpqrSTUvwxyz" {
		t.Fatal("original config should not be modified")
	}
}

func TestSanitize_ShortAndEmptySecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "short"
	sanitized := Sanitize(cfg)
	if sanitized.Channels.Telegram.Token != "***" {
		t.Fatalf("short secret should be '***', got %q", sanitized.Channels.Telegram.Token)
	}
	if sanitized.Channels.Discord.Token != "" {
		t.Fatalf("empty secret should stay empty, got %q", sanitized.Channels.Discord.Token)
	}
}

// --- ListPaths ---

func TestListPaths_SortedAndMasked(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Discord.Token = "MTIzNDU2Nzg5MDEyMzQ1Njc4.abcdef.ghijklmnop"
	cfg.API.APIKey = "api-key-12345678"

	settings := ListPaths(cfg)
	values := make(map[string]any, len(settings))
	for i, st := range settings {
		if i > 0 && settings[i-1].Path >= st.Path {
			t.Fatalf("settings not sorted: %s before %s", settings[i-1].Path, st.Path)
		}
		values[st.Path] = st.Value
	}

	for _, path := range []string{"general.logLevel", "market.historyDays", "market.returnPeriods", "channels.cli.enabled", "server.listen"} {
		if _, ok := values[path]; !ok {
			t.Errorf("missing setting %s", path)
		}
	}
	if v := values["channels.discord.token"]; v != "MTIz****mnop" {
		t.Errorf("discord token listed as %v", v)
	}
	if v := values["api.apiKey"]; v != "api-****5678" {
		t.Errorf("API key listed as %v", v)
	}
	if v := values["channels.telegram.token"]; v != "" {
		t.Errorf("empty token should stay empty, got %v", v)
	}
}

// --- FlexStringList ---

func TestFlexStringList_MixedTypes(t *testing.T) {
	input := `["hello", 123, "world", 456.0]`
	var list FlexStringList
	if err := json.Unmarshal([]byte(input), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 items, got %d", len(list))
	}
	if list[0] != "hello" || list[2] != "world" {
		t.Fatal("string items mismatch")
	}
	if list[1] != "123" || list[3] != "456" {
		t.Fatalf("number conversion mismatch: %v", list)
	}
}

func TestFlexStringList_PureStrings(t *testing.T) {
	input := `["a", "b", "c"]`
	var list FlexStringList
	if err := json.Unmarshal([]byte(input), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 3 || list[0] != "a" {
		t.Fatalf("unexpected: %v", list)
	}
}

func TestFlexStringList_InvalidJSON(t *testing.T) {
	var list FlexStringList
	err := json.Unmarshal([]byte(`not json`), &list)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_SimpleSubstitution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-abc123")
	result := ExpandEnvVars(`{"apiKey": "${TEST_API_KEY}"}`)
	expected := `{"apiKey": "sk-abc123"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	// Ensure the var is unset
	os.Unsetenv("NONEXISTENT_VAR_12345")
	result := ExpandEnvVars(`{"port": "${NONEXISTENT_VAR_12345:-8080}"}`)
	expected := `{"port": "8080"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_SetVarOverridesDefault(t *testing.T) {
	t.Setenv("MY_PORT", "9090")
	result := ExpandEnvVars(`{"port": "${MY_PORT:-8080}"}`)
	expected := `{"port": "9090"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_MultipleVars(t *testing.T) {
	t.Setenv("HOST", "localhost")
	t.Setenv("PORT", "3000")
	result := ExpandEnvVars(`"${HOST}:${PORT}"`)
	expected := `"localhost:3000"`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_UnsetVarNoDefault_KeepsOriginal(t *testing.T) {
	os.Unsetenv("TOTALLY_UNSET_VAR_XYZ")
	result := ExpandEnvVars(`"${TOTALLY_UNSET_VAR_XYZ}"`)
	expected := `"${TOTALLY_UNSET_VAR_XYZ}"`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_EmptyVarUsesDefault(t *testing.T) {
	t.Setenv("EMPTY_VAR", "")
	result := ExpandEnvVars(`"${EMPTY_VAR:-fallback}"`)
	expected := `"fallback"`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_NoVarsInInput(t *testing.T) {
	input := `{"key": "value", "number": 42}`
	result := ExpandEnvVars(input)
	if result != input {
		t.Fatalf("expected no change, got %q", result)
	}
}

func TestExpandEnvVars_DollarSignWithoutBraces(t *testing.T) {
	input := `"$HOME is not substituted"`
	result := ExpandEnvVars(input)
	if result != input {
		t.Fatalf("expected no change for bare $VAR, got %q", result)
	}
}

func TestLoad_WithEnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_STOCKBOT_TOKEN", "tok-123")

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{
		"channels": {
			"telegram": {"enabled": true, "token": "${TEST_STOCKBOT_TOKEN}"}
		},
		"chart": {"renderer": "${TEST_STOCKBOT_RENDERER:-none}"}
	}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Channels.Telegram.Token != "tok-123" {
		t.Fatalf("expected token 'tok-123', got %q", cfg.Channels.Telegram.Token)
	}
	if cfg.Chart.Renderer != "none" {
		t.Fatalf("expected default renderer 'none', got %q", cfg.Chart.Renderer)
	}
}

// --- Defaults ---

func TestDefaults_ReturnsValidConfig(t *testing.T) {
	cfg := Defaults()
	if cfg == nil {
		t.Fatal("defaults returned nil")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if !cfg.Channels.Discord.Enabled {
		t.Fatal("discord should be enabled by default")
	}
	if got := cfg.Market.ReturnPeriods; len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 12 {
		t.Fatalf("unexpected default periods %v", got)
	}
}

func TestLoadFile_SkipsEnvTokens(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "from-env")
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channels.Discord.Token != "" {
		t.Fatalf("LoadFile should not read tokens from the environment, got %q", cfg.Channels.Discord.Token)
	}
}

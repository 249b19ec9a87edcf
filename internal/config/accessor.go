package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// secretPaths are masked by Sanitize and ListPaths.
var secretPaths = map[string]bool{
	"channels.discord.token":  true,
	"channels.telegram.token": true,
	"api.apiKey":              true,
}

// tree returns cfg as the generic JSON tree its dot paths address.
func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath returns the value at a dot path such as "market.searchLimit" or
// "market.returnPeriods.0".
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := tree(cfg)
	if err != nil {
		return nil, err
	}
	var node any = m
	for _, key := range strings.Split(path, ".") {
		switch v := node.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("unknown config key %q", path)
			}
			node = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil, fmt.Errorf("%s: no element %q", path, key)
			}
			node = v[i]
		default:
			return nil, fmt.Errorf("%s: %q is not a section", path, key)
		}
	}
	return node, nil
}

// SetByPath sets the setting at path from its command-line form. Only
// existing settings can be set; raw is parsed according to the setting's
// current type, with lists given comma-separated ("1,3,12"). The updated
// config must pass Validate, otherwise cfg is left unchanged.
func SetByPath(cfg *Config, path string, raw string) error {
	m, err := tree(cfg)
	if err != nil {
		return err
	}
	parts := strings.Split(path, ".")
	section := m
	for _, key := range parts[:len(parts)-1] {
		next, ok := section[key].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config section %q in %q", key, path)
		}
		section = next
	}
	leaf := parts[len(parts)-1]
	current, ok := section[leaf]
	if !ok {
		if _, optional := optionalPaths[path]; !optional {
			return fmt.Errorf("unknown config key %q", path)
		}
		current = ""
	}
	if _, isSection := current.(map[string]any); isSection {
		return fmt.Errorf("%q is a section; set one of its keys", path)
	}

	value, err := coerce(path, current, raw)
	if err != nil {
		return err
	}
	section[leaf] = value

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var updated Config
	if err := json.Unmarshal(data, &updated); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(&updated); err != nil {
		return err
	}
	*cfg = updated
	return nil
}

// optionalPaths are string settings omitted from the tree while empty.
var optionalPaths = map[string]struct{}{
	"general.logFile":          {},
	"market.userAgent":         {},
	"chart.chromePath":         {},
	"chart.outDir":             {},
	"channels.discord.guildId": {},
	"api.apiKey":               {},
}

// coerce parses raw into the JSON type of the current value at path.
func coerce(path string, current any, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch current.(type) {
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: expected true or false, got %q", path, raw)
		}
		return b, nil
	case float64:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: expected a whole number, got %q", path, raw)
		}
		return n, nil
	case []any, nil:
		// Lists: numbers stay numbers so both returnPeriods and allowFrom decode.
		items := []any{}
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if n, err := strconv.Atoi(s); err == nil {
				items = append(items, n)
				continue
			}
			items = append(items, s)
		}
		return items, nil
	default:
		return raw, nil
	}
}

// Sanitize returns a copy of the config with tokens and keys masked.
func Sanitize(cfg *Config) *Config {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}
	var copy Config
	if err := json.Unmarshal(data, &copy); err != nil {
		return cfg
	}

	copy.Channels.Discord.Token = maskIfSet(copy.Channels.Discord.Token)
	copy.Channels.Telegram.Token = maskIfSet(copy.Channels.Telegram.Token)
	copy.API.APIKey = maskIfSet(copy.API.APIKey)

	return &copy
}

func maskIfSet(s string) string {
	if s == "" {
		return ""
	}
	return maskString(s)
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// Setting is one leaf of the config tree.
type Setting struct {
	Path  string
	Value any
}

// ListPaths returns every setting, sorted by path, with secrets masked.
// Lists are reported as a single setting.
func ListPaths(cfg *Config) []Setting {
	m, err := tree(cfg)
	if err != nil {
		return nil
	}
	var settings []Setting
	var walk func(prefix string, section map[string]any)
	walk = func(prefix string, section map[string]any) {
		for key, v := range section {
			path := prefix + key
			if sub, ok := v.(map[string]any); ok {
				walk(path+".", sub)
				continue
			}
			if s, ok := v.(string); ok && secretPaths[path] {
				v = maskIfSet(s)
			}
			settings = append(settings, Setting{Path: path, Value: v})
		}
	}
	walk("", m)
	sort.Slice(settings, func(i, j int) bool { return settings[i].Path < settings[j].Path })
	return settings
}

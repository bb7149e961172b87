package am

import (
	"os"
	"sort"
	"strings"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/embcluster/config.toml
	SourceUser        ConfigSource = "user"        // ~/.embcluster/am.toml
	SourceProject     ConfigSource = "project"     // project am.toml
	SourceEnvironment ConfigSource = "environment" // EMBCLUSTER_* and bootstrap env vars
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource // The type of config source
	Path   string       // File path or environment variable name
}

// ConfigSources records the file that last set each key during loading
var ConfigSources = make(map[string]SourceInfo)

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"` // File path or env var name
}

// Settings returns every effective setting, sorted by key, with the source
// that provided it. Passwords are masked.
func Settings() []SettingInfo {
	v := GetViper()

	keys := v.AllKeys()
	sort.Strings(keys)

	settings := make([]SettingInfo, 0, len(keys))
	for _, key := range keys {
		info := SourceInfo{Source: SourceDefault}
		if si, ok := ConfigSources[key]; ok {
			info = si
		}
		if env, ok := envSource(key); ok {
			info = SourceInfo{Source: SourceEnvironment, Path: env}
		}

		value := v.Get(key)
		if strings.HasSuffix(key, "password") && v.GetString(key) != "" {
			value = "********"
		}

		settings = append(settings, SettingInfo{
			Key:        key,
			Value:      value,
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
	return settings
}

// envSource returns the environment variable that sets key, if any
func envSource(key string) (string, bool) {
	candidates := envBindings[key]
	if len(candidates) == 0 {
		candidates = []string{"EMBCLUSTER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	}
	for _, env := range candidates {
		if val, ok := os.LookupEnv(env); ok && val != "" {
			return env, true
		}
	}
	return "", false
}

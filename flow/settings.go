package flow

import (
	"bufio"
	"os"
	"strings"
)

// Settings is a flat string-keyed configuration loaded from an INI-style
// file: "key = value" lines, "#"/";" comments, optional "[section]"
// headers folded into a "section.key" dotted name. Mirrors the settings
// file flowfish.flux.Flux reads for data_dir/sync_dir defaults and similar
// session-wide knobs.
type Settings map[string]string

// LoadSettings reads path as an INI-subset file. A missing file yields an
// empty Settings, not an error -- settings files are optional overlays.
func LoadSettings(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, nil
		}
		return nil, err
	}
	defer f.Close()

	settings := Settings{}
	section := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if section != "" {
			key = section + "." + key
		}
		settings[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Get returns a key's value and whether it was present.
func (s Settings) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// GetDefault returns a key's value, or def if the key is absent.
func (s Settings) GetDefault(key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

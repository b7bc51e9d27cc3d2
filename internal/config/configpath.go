package config

import (
	"regexp"
	"strings"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ParseConfigPath splits a dotted key such as "channels.irc.server" into
// its segments. Each segment must look like a YAML key of helix.yaml.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if !keyPattern.MatchString(p) {
			return nil, &ConfigError{Message: "invalid config path segment " + `"` + p + `" in ` + raw}
		}
	}
	return parts, nil
}

// parent walks to the map holding the last segment of path. With create set,
// missing or non-map intermediates are replaced by empty maps.
func parent(root map[string]any, path []string, create bool) (map[string]any, bool) {
	m := root
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	return m, true
}

// GetValueAtPath returns the value stored at path.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	m, ok := parent(root, path, false)
	if !ok {
		return nil, false
	}
	v, ok := m[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath stores value at path, creating sections as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	m, _ := parent(root, path, true)
	m[path[len(path)-1]] = value
}

// UnsetValueAtPath deletes the value at path and reports whether it existed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	m, ok := parent(root, path, false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}

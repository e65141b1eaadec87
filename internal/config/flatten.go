package config

import (
	"net/url"
	"slices"
	"strings"
)

// secretKeys are masked by `config list` and `config get` unless
// --show-secrets is given.
var secretKeys = map[string]bool{
	"telegram.token":          true,
	"telegram.webhook_secret": true,
	"store.credentials_json":  true,
	"store.database_url":      true,
	"twilio.auth_token":       true,
}

// IsSecretKey reports whether a dot-separated key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns nested JSON objects into dot-separated keys. Arrays such as
// operators stay leaves.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A scalar sitting where a nested key
// needs an object is replaced by the object.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parts := strings.Split(k, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// SortedKeys returns the keys of a flat map in lexical order.
func SortedKeys(flat map[string]any) []string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MaskSecrets returns a copy of flat with secret values masked. A database
// URL keeps its scheme and host with the password redacted; other secrets
// show only their last 4 characters ("***abcd"). Empty values stay empty.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		s, ok := v.(string)
		if !secretKeys[k] || !ok || s == "" {
			out[k] = v
			continue
		}
		out[k] = maskValue(k, s)
	}
	return out
}

func maskValue(key, s string) string {
	if key == "store.database_url" {
		if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
			if _, hasPassword := u.User.Password(); hasPassword {
				return u.Redacted()
			}
		}
	}
	if len(s) <= 4 {
		return "***" + s
	}
	return "***" + s[len(s)-4:]
}

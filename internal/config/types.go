package config

import (
	"encoding/json"
	"net/url"
)

const redacted = "[REDACTED]"

// Secret is a string that never prints, marshals or logs its value. The
// NATS URL is one, since it may carry credentials.
type Secret string

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string   { return s.masked() }
func (s Secret) GoString() string { return "Secret(" + redacted + ")" }

// Value returns the secret itself.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether the secret is non-empty.
func (s Secret) IsSet() bool { return s != "" }

// Redacted returns the URL with its userinfo masked so the endpoint can be
// logged. Values that are not URLs are fully masked.
func (s Secret) Redacted() string {
	u, err := url.Parse(string(s))
	if err != nil || u.Host == "" {
		return s.masked()
	}
	return u.Redacted()
}

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.masked()) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }

// UnmarshalText stores text as is, so koanf can decode the real value.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

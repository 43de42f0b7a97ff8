package domain

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidDomain is returned for input that cannot be a host name.
var ErrInvalidDomain = errors.New("invalid domain name")

// Normalize lowercases the name and strips scheme, path, port and a leading "www.".
func Normalize(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidDomain
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", ErrInvalidDomain
		}
		s = u.Hostname()
	} else {
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		if i := strings.LastIndex(s, ":"); i >= 0 {
			s = s[:i]
		}
	}

	s = strings.TrimSuffix(s, ".")
	s = strings.TrimPrefix(s, "www.")

	if s == "" || !strings.Contains(s, ".") || len(s) > 253 {
		return "", ErrInvalidDomain
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" || len(label) > 63 || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "", ErrInvalidDomain
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return "", ErrInvalidDomain
			}
		}
	}
	return s, nil
}

// Package mode resolves the destination webhook for a channel in either
// test or production mode.
package mode

import (
	"fmt"
	"net/url"
	"strings"

	"hookgate/internal/gateway/models"
)

// Pair holds the two destinations configured for one channel.
type Pair struct {
	Test       string `json:"test"`
	Production string `json:"production"`
}

// Resolver is a read-only lookup table built once at startup.
type Resolver struct {
	pairs map[models.Channel]Pair
}

// New validates the table and returns a Resolver. Every channel must have
// both URLs and each must be an absolute http(s) URL.
func New(pairs map[models.Channel]Pair) (*Resolver, error) {
	r := &Resolver{pairs: make(map[models.Channel]Pair, len(pairs))}
	for _, ch := range models.Channels {
		p, ok := pairs[ch]
		if !ok {
			return nil, fmt.Errorf("mode: no webhook pair configured for %s", ch)
		}
		if err := checkURL(p.Test); err != nil {
			return nil, fmt.Errorf("mode: %s test url: %w", ch, err)
		}
		if err := checkURL(p.Production); err != nil {
			return nil, fmt.Errorf("mode: %s production url: %w", ch, err)
		}
		r.pairs[ch] = p
	}
	return r, nil
}

// Resolve returns the destination for channel. There is no fallback between modes.
func (r *Resolver) Resolve(ch models.Channel, isProduction bool) (string, error) {
	p, ok := r.pairs[ch]
	if !ok {
		return "", fmt.Errorf("mode: unknown channel %q", ch)
	}
	if isProduction {
		return p.Production, nil
	}
	return p.Test, nil
}

// Snapshot returns the destination of every channel for one mode.
func (r *Resolver) Snapshot(isProduction bool) map[models.Channel]string {
	out := make(map[models.Channel]string, len(r.pairs))
	for ch := range r.pairs {
		out[ch], _ = r.Resolve(ch, isProduction)
	}
	return out
}

// ParseMode maps "production"/"prod" to true and "test"/"" to false.
func ParseMode(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "test":
		return false, nil
	case "production", "prod":
		return true, nil
	default:
		return false, fmt.Errorf("mode: unknown mode %q", s)
	}
}

// Name is the inverse of ParseMode.
func Name(isProduction bool) string {
	if isProduction {
		return "production"
	}
	return "test"
}

func checkURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("missing")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

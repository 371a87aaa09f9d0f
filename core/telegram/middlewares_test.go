package telegram

import (
	"testing"

	coreconfig "github.com/m3rciful/encoderbot/core/config"
)

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		out := make([]string, len(mws))
		for i, m := range mws {
			out[i] = m.Name
		}
		return out
	}

	got := names(DefaultMiddlewares(&coreconfig.Config{}, nil, nil))
	if len(got) != 3 || got[0] != "recover" || got[1] != "logger" || got[2] != "metrics" {
		t.Fatalf("without rate limit: %v", got)
	}

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500, ExcludeUpdates: []string{"callback"}}}
	got = names(DefaultMiddlewares(cfg, nil, nil))
	if len(got) != 4 || got[1] != "rate_limit" {
		t.Fatalf("with rate limit: %v", got)
	}
}

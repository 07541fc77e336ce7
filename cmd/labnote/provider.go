package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labnote/labnote"
	"github.com/labnote/labnote/gemini"
	lnhttp "github.com/labnote/labnote/http"
)

// resolveTransport constructs the transport for cfg.provider.
func resolveTransport(ctx context.Context, cfg config, logger *slog.Logger) (labnote.Transport, error) {
	switch cfg.provider {
	case "labnote":
		return lnhttp.New(cfg.baseURL,
			lnhttp.WithToken(cfg.token),
			lnhttp.WithLogger(logger.With("component", "http")),
		), nil
	case "gemini":
		if cfg.apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set (use -api-key flag or environment variable)")
		}
		opts := []gemini.Option{gemini.WithLogger(logger.With("component", "gemini"))}
		if cfg.model != "" {
			opts = append(opts, gemini.WithModel(cfg.model))
		}
		return gemini.New(ctx, cfg.apiKey, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q: must be \"labnote\" or \"gemini\"", cfg.provider)
	}
}

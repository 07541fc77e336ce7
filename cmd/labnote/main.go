// Command labnote streams LabNote AI output to the terminal.
//
// Usage:
//
//	LABNOTE_TOKEN=... labnote -feature summarize -glob '**/*.md' [flags]
//	LABNOTE_TOKEN=... labnote -notes 3,9,14 -message "What links these?"
//	GEMINI_API_KEY=... labnote -provider gemini -tui
//
// Flags:
//
//	-config string        Path to YAML config (default: ~/.labnote/config.yaml)
//	-base-url string      LabNote backend URL (env LABNOTE_BASE_URL)
//	-token string         Bearer token (env LABNOTE_TOKEN)
//	-provider string      Transport: labnote, gemini
//	-api-key string       Gemini API key (env GEMINI_API_KEY)
//	-feature string       AI feature for generation requests
//	-content string       Request content, or - to read stdin
//	-glob string          Collect note files matching the pattern as content
//	-dir string           Directory the glob is applied to (default: .)
//	-notes string         Comma-separated note ids for a cluster insight
//	-message string       Question for a cluster insight
//	-model string         Model ID
//	-out string           Save the finished run as JSON
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-tui                  Interactive viewer
//	-v                    Debug logging
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labnote/labnote"
	bt "github.com/labnote/labnote/bubbletea"
	"github.com/labnote/labnote/goldmark"
	lnjson "github.com/labnote/labnote/json"
	"github.com/labnote/labnote/prometheus"
	"github.com/labnote/labnote/stream"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	env := environment{
		token:     os.Getenv("LABNOTE_TOKEN"),
		baseURL:   os.Getenv("LABNOTE_BASE_URL"),
		geminiKey: os.Getenv("GEMINI_API_KEY"),
	}
	err := run(ctx, os.Args[1:], env, os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "labnote: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	set := flag.NewFlagSet("labnote", flag.ContinueOnError)
	set.SetOutput(stderr)
	set.StringVar(&f.configPath, "config", "", "Path to YAML config (default: ~/.labnote/config.yaml)")
	set.StringVar(&f.baseURL, "base-url", "", "LabNote backend URL")
	set.StringVar(&f.token, "token", "", "Bearer token (overrides LABNOTE_TOKEN)")
	set.StringVar(&f.provider, "provider", "", "Transport: labnote, gemini")
	set.StringVar(&f.apiKey, "api-key", "", "Gemini API key (overrides GEMINI_API_KEY)")
	set.StringVar(&f.feature, "feature", "", "AI feature for generation requests")
	set.StringVar(&f.content, "content", "", "Request content, or - to read stdin")
	set.StringVar(&f.glob, "glob", "", "Collect note files matching the pattern as content")
	set.StringVar(&f.dir, "dir", "", "Directory the glob is applied to")
	set.StringVar(&f.notes, "notes", "", "Comma-separated note ids for a cluster insight")
	set.StringVar(&f.message, "message", "", "Question for a cluster insight")
	set.StringVar(&f.model, "model", "", "Model ID")
	set.StringVar(&f.out, "out", "", "Save the finished run as JSON")
	set.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	set.BoolVar(&f.tui, "tui", false, "Interactive viewer")
	set.BoolVar(&f.verbose, "v", false, "Debug logging")
	if err := set.Parse(args); err != nil {
		return f, err
	}
	if set.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %s", strings.Join(set.Args(), " "))
	}
	return f, nil
}

func run(ctx context.Context, args []string, env environment, stdin io.Reader, stdout, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	fc, err := loadConfig(first(f.configPath, defaultConfigPath()), f.configPath == "")
	if err != nil {
		return err
	}
	cfg := resolveConfig(f, env, fc)

	transport, err := resolveTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	builder, err := newRequestBuilder(f, cfg)
	if err != nil {
		return err
	}
	content, err := gatherContent(f, stdin)
	if err != nil {
		return err
	}
	input := content
	if len(builder.noteIDs) > 0 {
		input = f.message
	}

	metrics := prometheus.New()
	if cfg.metricsAddr != "" {
		shutdown := serveMetrics(cfg.metricsAddr, metrics, logger)
		defer shutdown()
	}
	opts := []stream.Option{
		stream.WithLogger(logger.With("component", "stream")),
		stream.WithListener(metrics.Listener()),
	}

	if f.tui {
		return runTUI(ctx, transport, opts, builder, input, f.out)
	}
	return runOnce(ctx, transport, opts, builder.build(input), f.out, stdout, stderr)
}

// runOnce streams one request to stdout.
func runOnce(ctx context.Context, t labnote.Transport, opts []stream.Option, req labnote.Request, out string, stdout, stderr io.Writer) error {
	if req.Feature != "" && strings.TrimSpace(req.Content) == "" {
		return errors.New("nothing to send: use -content, -glob or -tui")
	}

	p := &printer{w: stdout}
	session := stream.New(t, append(opts, stream.WithListener(p.listen))...)

	started := time.Now()
	session.Start(ctx, req)
	snap := session.Snapshot()

	if snap.Text != "" && !strings.HasSuffix(snap.Text, "\n") {
		fmt.Fprintln(stdout)
	}
	if snap.State == labnote.StateCompleted {
		if sources := goldmark.New(labnote.DefaultTheme()).Sources(snap.Metadata.Notes()); sources != "" {
			fmt.Fprintln(stderr, sources)
		}
	}
	if out != "" {
		if err := lnjson.Save(out, labnote.NewResult(uuid.NewString(), req, snap, started, time.Now())); err != nil {
			return fmt.Errorf("save result: %w", err)
		}
	}

	switch snap.State {
	case labnote.StateErrored:
		return fmt.Errorf("stream failed: %w", snap.Err)
	case labnote.StateAborted:
		return errors.New("stream aborted")
	}
	return nil
}

// runTUI runs the interactive viewer. The last run is saved on exit when out
// is set.
func runTUI(ctx context.Context, t labnote.Transport, opts []stream.Option, b requestBuilder, initial, out string) error {
	session := stream.New(t, opts...)

	var (
		last    labnote.Request
		started time.Time
	)
	request := func(input string) labnote.Request {
		last, started = b.build(input), time.Now()
		return last
	}

	if err := bt.Run(ctx, bt.New(session, request, labnote.DefaultTheme(), initial)); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	session.Stop()

	snap := session.Snapshot()
	if out == "" || !snap.State.Terminal() {
		return nil
	}
	if err := lnjson.Save(out, labnote.NewResult(uuid.NewString(), last, snap, started, time.Now())); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// serveMetrics serves /metrics on addr until the returned function is called.
func serveMetrics(addr string, m *prometheus.Metrics, logger *slog.Logger) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// Command convoy sends an HTTP request through an interception pipeline and
// prints every response the pipeline emits.
//
// Usage:
//
//	convoy [-config pipeline.yaml] [-method GET] [-log-level info] [-first] [-repeat 1] URL
//
// Without -config the pipeline logs requests and caches GET responses in
// memory, so running with -repeat 2 shows the cached response arriving before
// the fresh one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cecil-the-coder/convoy/pkg/config"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

type headerFlags []string

func (h *headerFlags) String() string { return strings.Join(*h, ", ") }

func (h *headerFlags) Set(v string) error {
	if !strings.Contains(v, ":") {
		return fmt.Errorf("header %q must be \"Name: value\"", v)
	}
	*h = append(*h, v)
	return nil
}

func main() {
	var headers headerFlags
	configPath := flag.String("config", "", "Path to a pipeline file (default: logger and in-memory cache)")
	method := flag.String("method", "GET", "HTTP method")
	data := flag.String("data", "", "Request body")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	first := flag.Bool("first", false, "Print only the first response of each request")
	repeat := flag.Int("repeat", 1, "Number of times to send the request")
	showBody := flag.Bool("body", false, "Print response bodies")
	flag.Var(&headers, "H", "Request header \"Name: value\" (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] URL\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s %v\n", colorRed, colorReset, err)
		os.Exit(2)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	req, err := buildRequest(*method, flag.Arg(0), *data, headers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s %v\n", colorRed, colorReset, err)
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s %v\n", colorRed, colorReset, err)
		os.Exit(1)
	}

	rt, err := config.Build(cfg, config.Deps{Logger: &log.Logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s failed to build pipeline: %v\n", colorRed, colorReset, err)
		os.Exit(1)
	}
	defer func() { _ = rt.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := false
	for i := 0; i < *repeat; i++ {
		if *repeat > 1 {
			fmt.Printf("%s# request %d%s\n", colorDim, i+1, colorReset)
		}
		if err := send(ctx, rt, req, *first, *showBody); err != nil {
			failed = true
			if errors.Is(err, context.Canceled) {
				break
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{Plugins: []config.PluginConfig{
			{Type: config.TypeLogger},
			{Type: config.TypeCache, Cache: &config.CacheConfig{AddCacheMetadata: true}},
		}}, nil
	}
	return config.Load(path)
}

func buildRequest(method, url, body string, headers []string) (*types.Request, error) {
	m, err := types.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	req := types.NewRequest(m, url)
	for _, h := range headers {
		name, value, _ := strings.Cut(h, ":")
		req = req.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	if body != "" {
		req = req.WithBody([]byte(body))
	}
	return req, nil
}

func send(ctx context.Context, rt *config.Runtime, req *types.Request, firstOnly, showBody bool) error {
	responses := rt.Client.Do(ctx, req)
	defer func() { _ = responses.Close() }()

	for {
		resp, err := responses.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if failed, ok := types.AsResponse(err); ok {
				printResponse(failed, showBody)
			} else {
				fmt.Printf("%serror%s %v\n", colorRed, colorReset, err)
			}
			return err
		}
		printResponse(resp, showBody)
		if firstOnly {
			return nil
		}
	}
}

func printResponse(resp *types.Response, showBody bool) {
	color := colorGreen
	switch {
	case resp.IsError():
		color = colorRed
	case resp.Status >= 300:
		color = colorYellow
	}
	source := resp.Source()
	if resp.CacheMetadata != nil {
		source = fmt.Sprintf("%s, stored %s ago", source, time.Since(resp.CacheMetadata.CreatedAt).Round(time.Millisecond))
	}
	fmt.Printf("%s%d %s%s %s(%s)%s %d bytes\n",
		color, resp.Status, resp.StatusText, colorReset, colorCyan, source, colorReset, len(resp.Body))
	if showBody && len(resp.Body) > 0 {
		fmt.Println(string(resp.Body))
	}
}

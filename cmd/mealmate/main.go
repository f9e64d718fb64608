// The mealmate command scans a GMail mailbox for campus food-delivery
// receipts and reports meal-swipe usage against the current quota
// week. By default it runs one scan and prints the result as JSON;
// with -serve it exposes the same scan over HTTP for the web UI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/NickJuneau/mealmate-v2-web/internal/config"
	"github.com/NickJuneau/mealmate-v2-web/internal/gmail"
	"github.com/NickJuneau/mealmate-v2-web/internal/gmailhttp"
	"github.com/NickJuneau/mealmate-v2-web/internal/scan"
	"github.com/NickJuneau/mealmate-v2-web/internal/server"
	"github.com/NickJuneau/mealmate-v2-web/internal/tracehttp"

	"github.com/pkg/errors"
)

var (
	flagConfig     = flag.String("config", "", "path to the YAML config (default ~/.mealmate.yaml)")
	flagDays       = flag.Int("days", 0, "days of mail to search, overriding the config")
	flagMax        = flag.Int64("max", 0, "maximum messages to fetch, overriding the config")
	flagIgnoreWeek = flag.Bool("ignore-week", false, "report all recent activity, not just the current quota week")
	flagDebug      = flag.Bool("debug", false, "log per-message diagnostics")
	flagServe      = flag.Bool("serve", false, "expose the scan over HTTP instead of running once")
	flagListen     = flag.String("listen", "", "HTTP listen address, overriding the config")
	flagTrace      = flag.Bool("T", false, "request debug tracing")
)

func run() error {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return errors.Wrap(err, "unable to load configuration")
	}

	ctx := context.Background()
	client, err := gmailhttp.New(ctx, cfg.CredentialsPath, cfg.TokenPath)
	if err != nil {
		return errors.Wrap(err, "unable to initialize GMail HTTP client")
	}

	src, err := gmail.New(client)
	if err != nil {
		return errors.Wrap(err, "unable to initialize GMail")
	}

	sc := scan.New(src, cfg.Vendor, cfg.ResetDay, cfg.Concurrency)

	if *flagServe {
		addr := listenAddr(cfg, *flagListen)
		r := server.NewRouter(sc, cfg.MealsPerWeek)
		log.Printf("serving swipe API on %s", addr)
		return errors.Wrap(r.Run(addr), "http server failed")
	}

	opts := scan.Options{
		Days:       cfg.Days,
		MaxResults: cfg.MaxResults,
		IgnoreWeek: *flagIgnoreWeek,
		Debug:      *flagDebug,
	}
	if *flagDays > 0 {
		opts.Days = *flagDays
	}
	if *flagMax > 0 {
		opts.MaxResults = *flagMax
	}

	res, err := sc.Scan(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "scan failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(res), "unable to encode result")
}

// listenAddr resolves the HTTP listen address: the -listen flag when
// given, else the configured server.listen value.
func listenAddr(cfg config.Config, override string) string {
	if override != "" {
		return override
	}
	return cfg.ListenAddr
}

func main() {
	flag.Parse()
	if *flagTrace {
		tracehttp.WrapDefaultTransport()
	}

	if err := run(); err != nil {
		log.Fatalf("Failed: %v\n", err)
	}
}

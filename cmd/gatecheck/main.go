// Command gatecheck prints the stored session's state and the gate decision
// for each path argument. With -fetch it also reads one backend endpoint
// through the authorizing transport.
//
//	gatecheck /dashboard /calculators /checkout
//	gatecheck -fetch games -query "season=2025" /dashboard
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"sports-analytics/internal/api"
	"sports-analytics/internal/config"
	"sports-analytics/internal/logger"
	"sports-analytics/internal/session"
)

func main() {
	os.Exit(run())
}

// run holds the deferred cleanup so it completes before main exits.
func run() int {
	fetch := flag.String("fetch", "", "backend data endpoint to fetch (e.g. games)")
	query := flag.String("query", "", "query string for -fetch")
	refresh := flag.Bool("refresh", false, "force a token refresh before checking")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	if err := config.Validate(cfg); err != nil {
		logger.Error("Invalid configuration: %v", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, closeStore, err := cfg.OpenTokenStore(ctx)
	if err != nil {
		logger.Error("Token store: %v", err)
		return 1
	}
	defer closeStore()

	opts := session.Options{RefreshLead: cfg.RefreshLead, RequestTimeout: cfg.RequestTimeout}
	if cfg.RoutesFile != "" {
		routes, err := session.LoadRoutePolicy(cfg.RoutesFile)
		if err != nil {
			logger.Error("Route policy: %v", err)
			return 1
		}
		opts.Routes = &routes
	}

	backend := api.NewBackendClient(cfg.Backend())
	ctrl := session.NewController(store, backend, opts)
	if err := ctrl.Start(ctx); err != nil {
		fmt.Printf("startup: %v\n", err)
	}
	defer ctrl.Close()

	if *refresh {
		if _, err := ctrl.Refresh(ctx); err != nil {
			fmt.Printf("refresh: %v\n", err)
		}
	}

	snap := ctrl.Snapshot()
	fmt.Printf("state:        %s\n", snap.State)
	fmt.Printf("subscription: %s\n", snap.Subscription)
	if !snap.ExpiresAt.IsZero() {
		fmt.Printf("expires:      %s (in %s)\n", snap.ExpiresAt.Format(time.RFC3339), time.Until(snap.ExpiresAt).Round(time.Second))
	}

	for _, path := range flag.Args() {
		d := ctrl.Admit(path)
		if d.Location != "" {
			fmt.Printf("%-24s %s -> %s\n", path, d.Verdict, d.Location)
		} else {
			fmt.Printf("%-24s %s\n", path, d.Verdict)
		}
	}

	if *fetch == "" {
		return 0
	}

	params, err := url.ParseQuery(*query)
	if err != nil {
		logger.Error("Bad -query: %v", err)
		return 2
	}
	data := backend.WithDataTransport(ctrl.Transport(nil))
	var out json.RawMessage
	if err := data.FetchJSON(ctx, *fetch, params, &out); err != nil {
		fmt.Printf("fetch %s: %v\n", *fetch, err)
		return 1
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		pretty = out
	}
	fmt.Println(string(pretty))
	return 0
}

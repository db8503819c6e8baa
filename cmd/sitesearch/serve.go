package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/f4ah6o/sitesearch-go/internal/config"
	"github.com/f4ah6o/sitesearch-go/internal/server"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	var (
		configPath string
		addr       string
		rootDir    string
		basePath   string
		noWatch    bool
		o          overrides
	)

	fs.StringVar(&configPath, "config", "", "Path to a TOML or YAML config file")
	fs.StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	fs.StringVar(&rootDir, "root", "", "Directory of the site to serve (default from config, .)")
	fs.StringVar(&basePath, "base-path", "", "URL prefix the site is served under, e.g. /college")
	fs.BoolVar(&noWatch, "no-watch", false, "Do not reload the config file when it changes")
	o.register(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sitesearch serve [options]

Serve a static site with the search highlight styles injected into every
page, plus a search API:

  GET /healthz
  GET /api/search?q=QUERY&format=json|html|markdown
  GET /search?q=QUERY

Pages are searched from the served directory unless --base-url is given.
The config file is reloaded when it changes.

Options:
`)
		fs.PrintDefaults()
	}

	fs.Parse(args)

	serverOverrides := func(cfg *config.Config) {
		if addr != "" {
			cfg.Server.Addr = addr
		}
		if rootDir != "" {
			cfg.Server.SiteDir = rootDir
		}
		if basePath != "" {
			cfg.Server.BasePath = basePath
		}
		if cfg.Fetch.BaseURL == "" && cfg.Fetch.SiteDir == "" {
			cfg.Fetch.SiteDir = cfg.Server.SiteDir
		}
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	serverOverrides(cfg)
	if err := o.apply(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	engine, err := newEngine(cfg, log.Default())
	if err != nil {
		log.Fatalf("Failed to create search engine: %v", err)
	}
	srv := server.New(engine, log.Default())

	ctx, stop := signalContext()
	defer stop()

	if configPath != "" && !noWatch {
		go func() {
			err := config.Watch(ctx, configPath, log.Default(), func(next *config.Config) {
				serverOverrides(next)
				if err := o.apply(next); err != nil {
					log.Printf("Warning: ignoring reloaded config: %v", err)
					return
				}
				e, err := newEngine(next, log.Default())
				if err != nil {
					log.Printf("Warning: ignoring reloaded config: %v", err)
					return
				}
				srv.SetEngine(e)
				log.Printf("Reloaded %s (%d pages)", configPath, len(next.Pages))
			})
			if err != nil {
				log.Printf("Warning: config watch stopped: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: shutdown: %v", err)
		}
	}
}

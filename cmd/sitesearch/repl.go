package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/f4ah6o/sitesearch-go/internal/render"
	"github.com/f4ah6o/sitesearch-go/internal/session"
)

func runREPL(args []string) {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)

	var (
		configPath string
		o          overrides
	)

	fs.StringVar(&configPath, "config", "", "Path to a TOML or YAML config file")
	o.register(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sitesearch repl [options]

Read one query per line from stdin and print the results panel as Markdown,
the way the search overlay would show it. A line of ":close" clears the
overlay; ":quit" or end of input exits.

Options:
`)
		fs.PrintDefaults()
	}

	fs.Parse(args)

	cfg, err := loadConfig(configPath, &o)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	engine, err := newEngine(cfg, log.Default())
	if err != nil {
		log.Fatalf("Failed to create search engine: %v", err)
	}

	if err := repl(os.Stdin, os.Stdout, engine, cfg.MinChars); err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
}

// repl submits each input line to an overlay session and prints every panel
// the session settles on.
func repl(in io.Reader, out io.Writer, searcher session.Searcher, minChars int) error {
	md := render.NewMarkdown()
	s := session.New(searcher, nil, session.Options{
		MinChars: minChars,
		OnChange: func(v session.View) {
			if v.State == session.StateSearching || v.State == session.StateDebouncing || v.Results == "" {
				return
			}
			text, err := md.Convert(v.Results)
			if err != nil {
				log.Printf("Warning: %v", err)
				return
			}
			fmt.Fprintf(out, "%s\n\n", text)
		},
	})
	s.Open()

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == ":quit":
			return nil
		case line == ":close":
			s.Close()
			s.Open()
		case len([]rune(line)) < minChars:
			s.Input(line)
		default:
			s.Submit(line)
			s.Wait()
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

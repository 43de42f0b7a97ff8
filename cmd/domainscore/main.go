package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"DomainScore/internal/app"
	"DomainScore/internal/config"
	"DomainScore/internal/domain"
	"DomainScore/internal/logging"
	"DomainScore/internal/scoring"
)

type globalOptions struct {
	Config   string `short:"c" long:"config" env:"DOMAINSCORE_CONFIG" description:"YAML configuration file"`
	LogLevel string `long:"log-level" description:"Override the configured log level (debug, info, warn, error)"`
	Scheme   string `long:"scheme" choice:"archive" choice:"comprehensive" description:"Override the scoring scheme"`
}

var opts globalOptions

func (g *globalOptions) load() config.Config {
	cfg := config.LoadFrom(g.Config)
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	if g.Scheme != "" {
		cfg.Scoring.Scheme = g.Scheme
	}
	return cfg
}

func (g *globalOptions) application() (*app.Application, error) {
	cfg := g.load()
	return app.New(cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format))
}

type serveCommand struct{}

func (serveCommand) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := opts.application()
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Serve(ctx)
}

type analyzeCommand struct {
	NoProgress bool `long:"no-progress" description:"Do not render the progress bar"`
	Args       struct {
		Domains []string `positional-arg-name:"domain" required:"1"`
	} `positional-args:"yes"`
}

func (c *analyzeCommand) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := opts.application()
	if err != nil {
		return err
	}
	defer application.Close()

	names := c.Args.Domains
	var (
		progress *mpb.Progress
		bar      *mpb.Bar
	)
	if !c.NoProgress {
		progress = mpb.NewWithContext(ctx, mpb.WithOutput(os.Stderr), mpb.WithWidth(40))
		bar = progress.AddBar(int64(len(names)),
			mpb.PrependDecorators(
				decor.Name("scoring", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("[%d / %d]", decor.WCSyncWidth),
				decor.Percentage(decor.WCSyncSpace),
				decor.OnComplete(
					decor.EwmaETA(decor.ET_STYLE_GO, 30, decor.WCSyncSpace), "done",
				),
			),
		)
	}

	results := application.Analyzer().AnalyzeBatchFunc(ctx, names, func(int, domain.DomainAnalysis) {
		if bar != nil {
			bar.Increment()
		}
	})
	if progress != nil {
		if bar != nil && !bar.Completed() {
			bar.Abort(false)
		}
		progress.Wait()
	}

	return writeJSON(os.Stdout, results)
}

type heuristicCommand struct {
	Args struct {
		Domains []string `positional-arg-name:"domain" required:"1"`
	} `positional-args:"yes"`
}

func (c *heuristicCommand) Execute([]string) error {
	out := make([]scoring.HeuristicBreakdown, 0, len(c.Args.Domains))
	for _, raw := range c.Args.Domains {
		name, err := domain.Normalize(raw)
		if err != nil {
			return fmt.Errorf("%q: %w", raw, err)
		}
		out = append(out, scoring.Heuristic(name))
	}
	return writeJSON(os.Stdout, out)
}

type importCommand struct {
	File string `short:"f" long:"file" default:"-" description:"CSV file with a domain column, - for stdin"`
}

func (c *importCommand) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var in io.Reader = os.Stdin
	if c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return fmt.Errorf("open %s: %w", c.File, err)
		}
		defer f.Close()
		in = f
	}

	application, err := opts.application()
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Import(ctx, in)
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, report)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] <serve | analyze | heuristic | import>"

	must := func(_ *flags.Command, err error) {
		if err != nil {
			panic(err)
		}
	}
	must(parser.AddCommand("serve", "Run the HTTP API and scheduled scoring passes", "", &serveCommand{}))
	must(parser.AddCommand("analyze", "Score domains once and print the records as JSON", "", &analyzeCommand{}))
	must(parser.AddCommand("heuristic", "Print the name-only heuristic breakdown", "", &heuristicCommand{}))
	must(parser.AddCommand("import", "Queue domains from a CSV file for scoring", "", &importCommand{}))

	// flags.Default already prints parse and command errors
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		var ferr *flags.Error
		if errors.As(err, &ferr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

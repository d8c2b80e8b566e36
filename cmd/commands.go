package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"organized-data/internal/db"
	"organized-data/internal/helper"
	"organized-data/internal/models"
	"organized-data/internal/parser"
	"organized-data/internal/server"
)

func (c *ServeCmd) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	addr := cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}
	router := server.NewRouter(a.service, server.WithGatherer(a.metrics), server.WithFetcher(a.fetcher))
	return server.ListenAndServe(ctx, addr, router)
}

func (c *ExtractCmd) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schema, err := os.ReadFile(c.Schema)
	if err != nil {
		return fmt.Errorf("error reading schema: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	text, err := c.source(ctx, a.fetcher)
	if err != nil {
		return err
	}
	log.Info().Int("runes", len([]rune(text))).Str("model", c.Model).Bool("refine", c.Refine).Msg("Extracting")

	start := time.Now()
	var out json.RawMessage
	if c.Refine {
		out, err = a.service.ExtractWithSchemaAndRefine(ctx, text, c.Model, string(schema),
			models.RefineParams{ChunkSize: c.ChunkSize, Overlap: c.Overlap})
	} else {
		out, err = a.service.ExtractWithSchema(ctx, text, c.Model, string(schema))
	}
	if err != nil {
		return err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("Extraction done")

	return helper.PrettyPrint(os.Stdout, out)
}

// source returns the text named by exactly one of --file, --url and --text.
func (c *ExtractCmd) source(ctx context.Context, fetcher *parser.Fetcher) (string, error) {
	set := 0
	for _, s := range []string{c.File, c.URL, c.Text} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return "", errors.New("provide exactly one of --file, --url or --text")
	}

	switch {
	case c.File != "":
		return parser.ReadDocument(c.File)
	case c.URL != "":
		data, err := fetcher.FetchPDF(ctx, c.URL)
		if err != nil {
			return "", err
		}
		return parser.ExtractPDFText(data)
	default:
		return c.Text, nil
	}
}

func (c *ModelsCmd) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(cfg.LLMs))
	for _, l := range cfg.LLMs {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func (c *RunsCmd) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is not configured")
	}
	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, c.Model, c.Limit)
	if err != nil {
		return fmt.Errorf("error listing runs: %w", err)
	}
	printRuns(os.Stdout, runs)
	return nil
}

func printRuns(w io.Writer, runs []db.ExtractionRun) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tMODEL\tMODE\tCHUNKS\tSTATUS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Model, r.Mode, r.Chunks, r.Status,
			time.Duration(r.DurationMs)*time.Millisecond)
	}
	tw.Flush()
}

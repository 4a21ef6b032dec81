package commands

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/prospector/internal/output"
	"github.com/jmylchreest/prospector/pkg/prospect"
	"github.com/jmylchreest/prospector/pkg/prospector"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one prospect search and print the results",
	Long: `Search the configured engines in order until one returns results,
keep the relevant ones and enrich each with contact details from its page.

Interrupting the command (Ctrl-C) stops the search and prints whatever
was collected, marked as cancelled.

Examples:
  prospector search "web design" --industry retail --region manchester
  prospector search "accountants" --engines duck,mojeek --max-pages 2
  prospector search "solicitors" --browser static --format yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	flags := searchCmd.Flags()

	// Query
	flags.String("industry", "", "industry keyword results should mention")
	flags.String("region", "", "region keyword results should mention")

	// Engines
	flags.StringSlice("engines", nil, "engine order, e.g. bing,duck,brave")
	flags.Int("max-pages", 0, "result pages per engine")
	flags.Int("batch-size", 0, "pages enriched concurrently")

	// Output
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")
	flags.Bool("compact", false, "disable JSON pretty-printing")

	_ = viper.BindPFlag("engines.order", flags.Lookup("engines"))
	_ = viper.BindPFlag("engines.max_pages", flags.Lookup("max-pages"))
	_ = viper.BindPFlag("enrich.batch_size", flags.Lookup("batch-size"))
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	formatStr, _ := flags.GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		logError("%v", err)
		return err
	}

	q := prospect.SearchQuery{Text: strings.Join(args, " ")}
	q.Industry, _ = flags.GetString("industry")
	q.Region, _ = flags.GetString("region")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer a.Close()

	var outFile io.Writer = os.Stdout
	if path, _ := flags.GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			logError("creating output file: %v", err)
			return err
		}
		defer f.Close()
		outFile = f
	}

	compact, _ := flags.GetBool("compact")
	writer, err := output.NewWriter(outFile, format, output.WithPretty(!compact))
	if err != nil {
		logError("%v", err)
		return err
	}

	logInfo("Searching for %q across %s", q.Text, strings.Join(a.scraper.Engines(), ", "))
	start := time.Now()

	resp, err := a.scraper.Run(ctx, q)
	if err != nil {
		var failure *prospector.ScrapeFailure
		if errors.As(err, &failure) {
			logError("job %s failed: %v", failure.JobID, failure.Err)
		} else {
			logError("%v", err)
		}
		return err
	}

	if err := writer.Write(resp); err != nil {
		logError("writing output: %v", err)
		return err
	}
	if err := writer.Close(); err != nil {
		logError("writing output: %v", err)
		return err
	}

	engineUsed := "none"
	if resp.EngineUsed != nil {
		engineUsed = *resp.EngineUsed
	}
	logInfo("Found %s prospects via %s in %s (%s)",
		humanize.Comma(int64(resp.TotalFound)), engineUsed,
		time.Since(start).Round(time.Millisecond), resp.Status)
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scout-crawler/scout/internal/config"
	"github.com/scout-crawler/scout/internal/crawler"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url]",
		Short: "Discover the URL surface of a website",
		Long: `Crawl maps a website starting from a seed URL. Pages are fetched
breadth-first, links are extracted and followed up to the configured
depth, and script files are scanned for endpoint paths.

With --fuzz, every discovered directory is additionally probed with
paths from a wordlist; responses other than 404 and 403 confirm the
path exists.

Examples:
  # Crawl two levels deep
  scout crawl -d 2 https://example.com

  # Enable wordlist fuzzing with a custom list
  scout crawl --fuzz --wordlist paths.txt https://example.com

  # Slow down and disguise the client
  scout crawl --delay 3s --header "User-Agent=Mozilla/5.0" https://example.com

  # Persist the fetch cache between runs
  scout crawl --cache-path scout.db https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("depth", "d", 0, "Maximum crawl depth (0 = seed only)")
	cmd.Flags().IntP("max-urls", "n", 0, "Maximum number of URLs to accept")
	cmd.Flags().IntP("concurrency", "w", 0, "Number of concurrent workers")
	cmd.Flags().Duration("delay", 0, "Minimum delay between requests to the same host")
	cmd.Flags().Float64("rps", 0, "Global requests-per-second budget (0 = unlimited)")
	cmd.Flags().DurationP("timeout", "t", 0, "Per-request timeout")
	cmd.Flags().Int("retries", -1, "Retry attempts for transient failures")
	cmd.Flags().String("user-agent", "", "User-Agent header value")
	cmd.Flags().Bool("no-robots", false, "Ignore robots.txt")
	cmd.Flags().Bool("fuzz", false, "Probe discovered directories with wordlist paths")
	cmd.Flags().String("wordlist", "", "Wordlist file for fuzzing (default: built-in list)")
	cmd.Flags().StringSlice("ext", nil, "File extensions to append to wordlist entries")
	cmd.Flags().String("cache-path", "", "SQLite file for the fetch cache (default: in-memory)")
	cmd.Flags().Duration("cache-ttl", 0, "Fetch cache time-to-live")
	cmd.Flags().StringSlice("proxy", nil, "Proxy URL(s), rotated per request")
	cmd.Flags().StringSliceP("header", "H", nil, "Custom header as Name=Value (repeatable)")
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .scout.yaml or .scout.json in current directory)")
	cmd.Flags().BoolP("json", "j", false, "Emit discovery events and summary as JSON lines")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	return runCrawl(ctx, cmd, cfg, logger, asJSON)
}

// runCrawl executes the crawl and streams discovery events to stdout.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, asJSON bool) error {
	c, err := crawler.New(cfg, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range c.Events() {
			if asJSON {
				enc.Encode(ev)
				continue
			}
			switch {
			case ev.Denied:
				fmt.Fprintf(out, "DENY  %-6s depth=%d %s\n", ev.Origin, ev.Depth, ev.URL)
			case ev.Error != "":
				fmt.Fprintf(out, "ERR   %-6s depth=%d %s (%s)\n", ev.Origin, ev.Depth, ev.URL, ev.Error)
			default:
				cached := ""
				if ev.FromCache {
					cached = " (cached)"
				}
				fmt.Fprintf(out, "%-5d %-6s depth=%d %s%s\n", ev.Status, ev.Origin, ev.Depth, ev.URL, cached)
			}
		}
	}()

	summary, err := c.Run(ctx)
	wg.Wait()
	if err != nil {
		return err
	}

	if asJSON {
		return enc.Encode(summary)
	}
	fmt.Fprintf(out, "\n%s in %s\n", summary.State, summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  fetched:    %d (%d cache hits)\n", summary.Fetched, summary.CacheHits)
	fmt.Fprintf(out, "  succeeded:  %d\n", summary.Succeeded)
	fmt.Fprintf(out, "  failed:     %d\n", summary.Failed)
	fmt.Fprintf(out, "  denied:     %d\n", summary.Denied)
	fmt.Fprintf(out, "  discovered: %d (%d skipped)\n", summary.Discovered, summary.Skipped)
	if cfg.Fuzzing.Enabled {
		fmt.Fprintf(out, "  confirmed:  %d fuzzed paths\n", summary.Confirmed)
	}
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig assembles a Config from the config file and command flags.
// Flags that were set explicitly override file values.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	explicit := configPath != ""
	found := config.FindConfigFile(configPath)

	var cfg *config.Config
	switch {
	case found != "":
		cfg, err = config.Load(found)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", found, err)
		}
	case explicit:
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	default:
		cfg = config.Default()
	}

	if len(args) > 0 {
		cfg.Seed = args[0]
	}
	if cfg.Seed == "" {
		return nil, errors.New("no seed URL provided (pass it as an argument or set it in the config file)")
	}

	flags := cmd.Flags()
	if flags.Changed("depth") {
		cfg.MaxDepth, _ = flags.GetInt("depth")
	}
	if flags.Changed("max-urls") {
		cfg.MaxURLs, _ = flags.GetInt("max-urls")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("delay") {
		cfg.Delay, _ = flags.GetDuration("delay")
	}
	if flags.Changed("rps") {
		cfg.RequestsPerSecond, _ = flags.GetFloat64("rps")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("retries") {
		cfg.MaxRetries, _ = flags.GetInt("retries")
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent, _ = flags.GetString("user-agent")
	}
	if flags.Changed("no-robots") {
		noRobots, _ := flags.GetBool("no-robots")
		cfg.RespectRobots = !noRobots
	}
	if flags.Changed("fuzz") {
		cfg.Fuzzing.Enabled, _ = flags.GetBool("fuzz")
	}
	if flags.Changed("wordlist") {
		cfg.Fuzzing.WordlistPath, _ = flags.GetString("wordlist")
	}
	if flags.Changed("ext") {
		cfg.Fuzzing.Extensions, _ = flags.GetStringSlice("ext")
	}
	if flags.Changed("cache-path") {
		cfg.CachePath, _ = flags.GetString("cache-path")
	}
	if flags.Changed("cache-ttl") {
		cfg.CacheTTL, _ = flags.GetDuration("cache-ttl")
	}
	if flags.Changed("proxy") {
		cfg.Proxies, _ = flags.GetStringSlice("proxy")
	}
	if flags.Changed("header") {
		headers, _ := flags.GetStringSlice("header")
		if cfg.CustomHeaders == nil {
			cfg.CustomHeaders = make(map[string]string, len(headers))
		}
		for _, h := range headers {
			name, value, ok := strings.Cut(h, "=")
			if !ok {
				return nil, fmt.Errorf("invalid header %q (expected Name=Value)", h)
			}
			cfg.CustomHeaders[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	return cfg, nil
}

// setupLogger creates a structured logger based on verbosity setting.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

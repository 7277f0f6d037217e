// Command aeronet downloads AERONET version 3 observations and writes them
// to stdout as CSV or JSON.
//
//	aeronet -utc site=Cart_Site year=2000 month=6 day=1 year2=2000 month2=6 day2=14 AOD20
//	aeronet -profile queries.yaml -query june-aod -format json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aerosolkit/aeronet/internal/api/models"
	"github.com/aerosolkit/aeronet/internal/config"
	"github.com/aerosolkit/aeronet/internal/provider/resilience"
	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "aeronet:", err)
		os.Exit(1)
	}
}

// errUsage marks command line mistakes already reported by the flag set.
var errUsage = errors.New("usage")

type cliFlags struct {
	profile  string
	query    string
	cache    string
	utc      bool
	lst      bool
	format   string
	baseURL  string
	printURL bool
	verbose  bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("aeronet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: aeronet [flags] key=value ...")
		fs.PrintDefaults()
	}

	var f cliFlags
	fs.StringVar(&f.profile, "profile", "", "YAML query profile")
	fs.StringVar(&f.query, "query", "", "query name in the profile")
	fs.StringVar(&f.cache, "cache", "", "raw response cache file (read if present, written otherwise)")
	fs.BoolVar(&f.utc, "utc", false, "add a time_utc column")
	fs.BoolVar(&f.lst, "lst", false, "add a time_lst column (local standard time)")
	fs.StringVar(&f.format, "format", "csv", "output format: csv or json")
	fs.StringVar(&f.baseURL, "base-url", "", "service URL (default $AERONET_BASE_URL)")
	fs.BoolVar(&f.printURL, "print-url", false, "print the request URL and exit")
	fs.BoolVar(&f.verbose, "v", false, "debug logging (overrides $LOG_LEVEL)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	if f.format != "csv" && f.format != "json" {
		fmt.Fprintf(stderr, "invalid -format %q: must be csv or json\n", f.format)
		return errUsage
	}
	if f.query != "" && f.profile == "" {
		fmt.Fprintln(stderr, "-query needs -profile")
		return errUsage
	}

	overrides, err := parseOptionArgs(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if f.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()

	baseURL := cfg.AERONET.BaseURL
	var defaults aeronet.Options
	opts := aeronet.Options{}
	params := aeronet.TableParams{}

	if f.profile != "" {
		profile, err := config.LoadProfile(f.profile)
		if err != nil {
			return err
		}
		if profile.BaseURL != "" {
			baseURL = profile.BaseURL
		}
		defaults = profile.Defaults
		if f.query != "" {
			q, err := profile.Query(f.query)
			if err != nil {
				return err
			}
			opts = q.Options.Clone()
			params = q.TableParams()
		}
	}

	for k, v := range overrides {
		opts[k] = v
	}
	if f.baseURL != "" {
		baseURL = f.baseURL
	}
	if f.cache != "" {
		params.CachePath = f.cache
	}
	params.AddUTC = params.AddUTC || f.utc
	params.AddLST = params.AddLST || f.lst

	client, err := aeronet.NewClient(aeronet.ClientConfig{
		BaseURL:  baseURL,
		Defaults: defaults,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:       aeronet.ProviderName,
			Timeout:    cfg.AERONET.Timeout,
			MaxRetries: cfg.AERONET.MaxRetries,
		}),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	if f.printURL {
		url, err := client.RequestURL(opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, url)
		return err
	}

	table, err := client.ToTable(ctx, opts, params)
	if err != nil {
		return err
	}
	logger.Debug().Int("rows", table.Len()).Int("columns", len(table.Columns())).Msg("table ready")

	if f.format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models.Observations{
			Columns: table.Columns(),
			Count:   table.Len(),
			Rows:    table.Records(),
		})
	}
	return table.WriteCSV(stdout)
}

// parseOptionArgs reads key=value arguments. A bare key such as AOD20 is a
// flag and becomes AOD20=1.
func parseOptionArgs(args []string) (aeronet.Options, error) {
	opts := aeronet.Options{}
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid argument %q: want key=value", arg)
		}
		if !found {
			value = "1"
		}
		opts[key] = strings.TrimSpace(value)
	}
	return opts, nil
}

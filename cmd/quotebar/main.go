// quotebar is the headless market-data backend for a menu-bar portfolio
// ticker: one process invocation per request, machine-readable output on
// stdout, diagnostics on stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stockbar/quotebar/internal/app"
	"github.com/stockbar/quotebar/internal/common"
	"github.com/stockbar/quotebar/internal/format"
	"github.com/stockbar/quotebar/internal/models"
)

const usage = `Usage: quotebar [-version] <command> [flags] SYM[,SYM...]

Commands:
  quote     real-time quotes, one line per symbol
  history   daily close series
  ohlc      OHLC candles as JSON envelopes
  keytest   verify configured provider API keys

Common flags (before symbols):
  -config path   config file (default: quotebar.toml next to the binary)
  -sources csv   provider order for this request, e.g. yahoo,stooq
  -json          emit canonical JSON instead of text lines

history flags:
  -from YYYY-MM-DD   range start (default: 30 days before -to)
  -to YYYY-MM-DD     range end, inclusive (default: today)

ohlc flags:
  -period p      window: 1d 5d 1mo 3mo 6mo 1y 5y max (default 1mo)
  -interval i    bar size: 1m 5m 15m 30m 1h 1d 1wk 1mo (default 1d)
`

// cliRequest is one parsed invocation: the feed request descriptor plus the
// flags that shape process behavior rather than the request itself.
type cliRequest struct {
	req        models.Request
	configPath string
	asJSON     bool
}

func parseArgs(args []string) (*cliRequest, error) {
	cmd, rest := args[0], args[1:]

	var cli cliRequest
	switch cmd {
	case "quote":
		cli.req.Kind = models.RequestQuote
	case "history":
		cli.req.Kind = models.RequestHistorical
	case "ohlc":
		cli.req.Kind = models.RequestOHLC
	case "keytest":
		cli.req.Kind = models.RequestKeyTest
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cli.configPath, "config", "", "config file path")
	sources := fs.String("sources", "", "comma-separated provider override")
	fs.BoolVar(&cli.asJSON, "json", false, "emit canonical JSON")

	var from, to string
	switch cli.req.Kind {
	case models.RequestHistorical:
		fs.StringVar(&from, "from", "", "range start (YYYY-MM-DD)")
		fs.StringVar(&to, "to", "", "range end (YYYY-MM-DD)")
	case models.RequestOHLC:
		fs.StringVar(&cli.req.Period, "period", "", "candle window")
		fs.StringVar(&cli.req.Interval, "interval", "", "bar size")
	}

	if err := fs.Parse(rest); err != nil {
		return nil, err
	}

	cli.req.ProviderOverride = common.SplitList(*sources)
	for _, arg := range fs.Args() {
		cli.req.Symbols = append(cli.req.Symbols, common.SplitList(arg)...)
	}
	if cli.req.Kind != models.RequestKeyTest && len(cli.req.Symbols) == 0 {
		return nil, errors.New("no symbols provided")
	}

	if from != "" {
		day, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, fmt.Errorf("invalid -from date %q, want YYYY-MM-DD", from)
		}
		cli.req.StartDate = day
	}
	if to != "" {
		day, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, fmt.Errorf("invalid -to date %q, want YYYY-MM-DD", to)
		}
		// -to names a calendar day; the range covers the whole day
		cli.req.EndDate = day.Add(24*time.Hour - time.Second)
	}

	return &cli, nil
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	switch args[0] {
	case "version", "-version", "--version":
		common.LoadVersionFromFile()
		fmt.Println(common.GetFullVersion())
		return 0
	case "help", "-h", "--help":
		fmt.Fprint(os.Stderr, usage)
		return 0
	}

	cli, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(os.Stderr, usage)
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s", err, usage)
		return 2
	}

	a, err := app.NewApp(cli.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := a.Feed.Handle(ctx, cli.req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	out, err := format.Render(resp, cli.asJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if out != "" {
		fmt.Println(out)
	}

	if resp.Failed() {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:]))
}

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/app"
	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/internal/pipeline"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
)

const dateLayout = "2006-01-02"

const usage = `Usage: parser <command> [flags]

Commands:
  cases     [-infile file] [case numbers...]   parse the given cases
  filings   -after YYYY-MM-DD -before YYYY-MM-DD   parse every case filed in the range
  settings  -after YYYY-MM-DD [-before YYYY-MM-DD] record calendar settings in the range
  active                                       re-parse every stored case that is still active

Common flags:
  -html file       also write the report as HTML
  -show-browser    run the browser with a visible window
`

// job runs one command against a runner.
type job func(ctx context.Context, r *pipeline.Runner) (*pipeline.Report, error)

type common struct {
	htmlPath    string
	showBrowser bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.htmlPath, "html", "", "write the report as HTML to this file")
	fs.BoolVar(&c.showBrowser, "show-browser", false, "run the browser with a visible window")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	opts, run, err := parseCommand(os.Args[1], os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if opts.showBrowser {
		cfg.HeadlessMode = false
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize", "error", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := a.NewRunner()
	go handleSignals(log, runner, cancel)

	report, runErr := run(ctx, runner)
	if report != nil {
		fmt.Print(report.Markdown())
		if opts.htmlPath != "" {
			if err := writeHTML(report, opts.htmlPath); err != nil {
				log.Error("Failed to write HTML report", "path", opts.htmlPath, "error", err)
			}
		}
	}
	if runErr != nil {
		log.Error("Run halted", "error", runErr)
		a.Close()
		os.Exit(1)
	}
}

// handleSignals drains the runner on the first interrupt and cancels in-flight
// work on the second.
func handleSignals(log *logger.Logger, runner *pipeline.Runner, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	<-sigs
	log.Warn("Interrupted: finishing in-flight cases, interrupt again to abort")
	runner.Drain()

	<-sigs
	log.Warn("Interrupted again: aborting")
	cancel()
}

func parseCommand(name string, args []string) (*common, job, error) {
	opts := &common{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	opts.register(fs)

	switch name {
	case "cases":
		infile := fs.String("infile", "", "file with one case number per line")
		if err := fs.Parse(args); err != nil {
			return nil, nil, err
		}
		numbers := fs.Args()
		if *infile != "" {
			fromFile, err := readCaseNumbers(*infile)
			if err != nil {
				return nil, nil, err
			}
			numbers = append(numbers, fromFile...)
		}
		if len(numbers) == 0 {
			return nil, nil, errors.New("cases: no case numbers given")
		}
		return opts, func(ctx context.Context, r *pipeline.Runner) (*pipeline.Report, error) {
			return r.Run(ctx, numbers)
		}, nil

	case "filings", "settings":
		afterFlag := fs.String("after", "", "first day, YYYY-MM-DD")
		beforeFlag := fs.String("before", "", "last day, YYYY-MM-DD")
		if err := fs.Parse(args); err != nil {
			return nil, nil, err
		}
		if *beforeFlag == "" && name == "settings" {
			*beforeFlag = *afterFlag
		}
		after, before, err := parseRange(*afterFlag, *beforeFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
		if name == "filings" {
			return opts, func(ctx context.Context, r *pipeline.Runner) (*pipeline.Report, error) {
				return r.RunFilings(ctx, after, before)
			}, nil
		}
		return opts, func(ctx context.Context, r *pipeline.Runner) (*pipeline.Report, error) {
			return r.RunSettings(ctx, after, before)
		}, nil

	case "active":
		if err := fs.Parse(args); err != nil {
			return nil, nil, err
		}
		return opts, func(ctx context.Context, r *pipeline.Runner) (*pipeline.Report, error) {
			return r.RefreshActive(ctx)
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown command %q", name)
	}
}

func readCaseNumbers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open case list: %w", err)
	}
	defer f.Close()

	var numbers []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		numbers = append(numbers, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read case list: %w", err)
	}
	return numbers, nil
}

func parseRange(after, before string) (time.Time, time.Time, error) {
	if after == "" || before == "" {
		return time.Time{}, time.Time{}, errors.New("-after and -before are required")
	}
	a, err := time.Parse(dateLayout, after)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -after: %w", err)
	}
	b, err := time.Parse(dateLayout, before)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -before: %w", err)
	}
	if b.Before(a) {
		return time.Time{}, time.Time{}, errors.New("-before is earlier than -after")
	}
	return a, b, nil
}

func writeHTML(report *pipeline.Report, path string) error {
	html, err := report.HTML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(html), 0644)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"socialfeed/internal/cmdlog"
	"socialfeed/internal/config"
	"socialfeed/internal/jobs"
	"socialfeed/internal/logging"
	"socialfeed/internal/metrics"
	"socialfeed/internal/model"
	"socialfeed/internal/notify"
	"socialfeed/internal/objstore"
	"socialfeed/internal/s3uri"
	"socialfeed/internal/store/ledger"
	"socialfeed/internal/theme"
	"socialfeed/internal/xclient"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "run":
		cmdRun()
	case "init":
		cmdInit()
	case "runs":
		cmdRuns()
	case "parse-uri":
		cmdParseURI()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner(os.Stdout)
	fmt.Println("Usage: socialfeed <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  run         Pull author timelines for an upstream dataset")
	fmt.Println("  init        Write a params file skeleton to ./socialfeed.yaml")
	fmt.Println("  runs        List recent runs from the ledger")
	fmt.Println("  parse-uri   Split an s3:// URI into bucket, path and directory")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// loadConfig reads .env and the params file and configures logging.
func loadConfig(envPath, paramsPath string) (config.Config, error) {
	if err := config.LoadDotEnv(envPath); err != nil {
		return config.Config{}, err
	}
	var (
		cfg config.Config
		err error
	)
	if paramsPath == "" {
		cfg = config.Default()
		cfg.ResolveEnv()
	} else if cfg, err = config.Load(paramsPath); err != nil {
		return cfg, err
	}
	logging.Init(os.Stderr, cfg.LogLevel)
	return cfg, nil
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	paramsPath := fs.String("params", "./socialfeed.yaml", "job params file (YAML or JSON)")
	envPath := fs.String("env", ".env", "dotenv file loaded before reading the environment")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*envPath, *paramsPath)
	if err != nil {
		fail(err)
	}
	metrics.StartServer(cfg.Metrics.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var desc *model.Descriptor
	err = cmdlog.Run("run", func() error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		runner, closeFn, err := newRunner(cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		d, err := runner.RunOnce(ctx, cfg)
		if err != nil {
			return err
		}
		desc = d
		return nil
	})
	if perr := metrics.Push(cfg.Metrics.PushgatewayURL, "socialfeed"); perr != nil {
		logging.Warn("metrics_push_failed", map[string]any{"error": perr.Error()})
	}
	if err != nil {
		fail(err)
	}
	if desc == nil {
		return
	}
	b, _ := json.MarshalIndent(desc, "", "  ")
	fmt.Println(string(b))
}

// newRunner wires storage, the X API client, the optional ledger and the
// optional result notifier from cfg.
func newRunner(cfg config.Config) (*jobs.Runner, func(), error) {
	opts := objstore.Options{
		Backend:   cfg.Storage.Backend,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	}
	r := &jobs.Runner{
		OpenStore: func(ctx context.Context) (objstore.Store, error) {
			return objstore.Open(ctx, opts)
		},
		NewClient: func(token string) xclient.TimelineClient {
			return xclient.NewHTTPClient(token).WithMaxPages(cfg.Fetch.MaxPages)
		},
	}
	closeFn := func() {}
	if cfg.Ledger.Path != "" {
		db, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open ledger: %w", err)
		}
		r.Ledger = db
		closeFn = func() { _ = db.Close() }
	}
	if cfg.Notify.AMQPURL != "" {
		r.Notifier = notify.NewAMQPNotifier(cfg.Notify.AMQPURL, cfg.Notify.Queue)
	}
	return r, closeFn, nil
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./socialfeed.yaml", "path to write params file")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Sample()); err != nil {
		fail(err)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner(os.Stdout)
	fmt.Println("Params written to:", abs)
}

func cmdRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	paramsPath := fs.String("params", "", "params file (optional; only the ledger path is used)")
	ledgerPath := fs.String("ledger", "", "ledger database path (overrides LEDGER_PATH)")
	limit := fs.Int("limit", 20, "number of runs to show")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(".env", *paramsPath)
	if err != nil {
		fail(err)
	}
	if *ledgerPath != "" {
		cfg.Ledger.Path = *ledgerPath
	}
	err = cmdlog.Run("runs", func() error {
		if cfg.Ledger.Path == "" {
			return errors.New("no ledger configured: set LEDGER_PATH or -ledger")
		}
		db, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		runs, err := db.ListRuns(context.Background(), *limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s state=%s users=%d records=%d api_errors=%d started=%s",
				r.ID, r.State, r.Users, r.Records, r.APIErrors, r.StartedAt.Format(time.RFC3339))
			if r.Error != "" {
				fmt.Printf(" error=%q", r.Error)
			}
			fmt.Println()
		}
		return nil
	})
	if err != nil {
		fail(err)
	}
}

func cmdParseURI() {
	fs := flag.NewFlagSet("parse-uri", flag.ExitOnError)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fail(errors.New("usage: socialfeed parse-uri s3://bucket/path"))
	}
	bucket, path, dir, err := s3uri.Parse(fs.Arg(0))
	if err != nil {
		fail(err)
	}
	fmt.Printf("bucket=%s\npath=%s\ndir=%s\n", bucket, path, dir)
}

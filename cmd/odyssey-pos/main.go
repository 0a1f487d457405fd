package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/cmd/odyssey-pos/cli"
	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/fx"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/pricing"
	"github.com/odyssey-erp/odyssey-pos/internal/sale"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/transfer"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

const usage = `usage: odyssey-pos [serve]
       odyssey-pos fx convert --amount N --from CUR --to CUR [--json]
       odyssey-pos fx validate [--currencies USD,EUR] [--json]
       odyssey-pos jobs trigger NAME
       odyssey-pos jobs stats [--queue NAME]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "serve" {
		if err := serve(ctx, stop, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}
	switch args[0] {
	case "fx":
		os.Exit(runFX(ctx, cfg, logger, args[1:]))
	case "jobs":
		os.Exit(runJobs(ctx, cfg, args[1:]))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.DBOptions())
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	converter := fx.NewConverter(cfg.FXPolicy())
	rateProvider := fx.NewProvider(fx.NewHTTPRateSource(cfg.RatesURL), fx.NewCache(redisClient, cfg.FXRatesTTL), logger)
	catalog := pricing.NewCatalogClient(cfg.CatalogURL)
	idempotency := shared.NewIdempotencyStore(pool)

	var submitter sale.Submitter = sale.NewRepository(pool)
	if cfg.SaleSubmitURL != "" {
		submitter = sale.NewRemoteSubmitter(cfg.SaleSubmitURL)
	}

	accounts := transfer.NewRepository(pool)
	var ledger transfer.Ledger = accounts
	if cfg.MovementsURL != "" {
		ledger = transfer.NewRemoteLedger(cfg.MovementsURL)
	}

	redisOpts := cfg.AsynqRedisOpt()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	var retry transfer.RetryScheduler
	if cfg.TransferRetry {
		retry = jobClient
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		Sales: sale.Deps{
			Registry:    sale.NewRegistry(cfg.SaleSessionTTL),
			Catalog:     catalog,
			Rates:       rateProvider,
			Submitter:   submitter,
			Idempotency: idempotency,
			Config: sale.ServiceConfig{
				Tolerance: cfg.SaleTolerance,
				Converter: converter,
				Metrics:   metrics,
			},
			Logger: logger,
		},
		Transfers: transfer.Deps{
			Accounts:  accounts,
			Ledger:    ledger,
			Rates:     rateProvider,
			Converter: converter,
			Retry:     retry,
			Metrics:   metrics,
			Logger:    logger,
		},
		FXHandler:  fx.NewHandler(logger, rateProvider, converter),
		JobHandler: jobs.NewHandler(inspector, logger),
		Metrics:    metrics,
	})

	if _, err := jobClient.EnqueueFXRefresh(ctx, "startup"); err != nil {
		logger.Warn("enqueue fx refresh", slog.Any("error", err))
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func runFX(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	// The CLI reads rates straight from the rate service; the shared cache is
	// only consulted by the long-running processes.
	source := fx.NewHTTPRateSource(cfg.RatesURL)
	ops, err := cli.NewFXOpsCLI(sourceRates{source: source}, fx.NewConverter(cfg.FXPolicy()))
	if err != nil {
		logger.Error("fx cli", slog.Any("error", err))
		return 1
	}

	switch args[0] {
	case "convert":
		fs := flag.NewFlagSet("fx convert", flag.ContinueOnError)
		amount := fs.String("amount", "", "amount to convert")
		from := fs.String("from", "", "source currency (TRY, USD, EUR)")
		to := fs.String("to", "TRY", "target currency (TRY, USD, EUR)")
		jsonOut := fs.Bool("json", false, "emit JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return ops.ConvertCommand(ctx, cli.FXConvertOptions{Amount: *amount, From: *from, To: *to, JSONOutput: *jsonOut})
	case "validate":
		fs := flag.NewFlagSet("fx validate", flag.ContinueOnError)
		currencies := fs.String("currencies", "", "comma separated currencies to check (default all)")
		jsonOut := fs.Bool("json", false, "emit JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		var list []string
		if *currencies != "" {
			list = strings.Split(*currencies, ",")
		}
		return ops.ValidateCommand(ctx, cli.FXValidateOptions{Currencies: list, JSONOutput: *jsonOut})
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	ops, err := cli.NewJobsCLI(cfg.AsynqRedisOpt())
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() { _ = ops.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, usage)
			return 2
		}
		info, err := ops.Trigger(ctx, args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		fs := flag.NewFlagSet("jobs stats", flag.ContinueOnError)
		queue := fs.String("queue", jobs.QueueDefault, "queue name")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		stats, err := ops.InspectQueue(ctx, *queue)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		if err := json.NewEncoder(os.Stdout).Encode(stats); err != nil {
			return 1
		}
		return 0
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}

type sourceRates struct {
	source fx.Source
}

func (s sourceRates) Rates(ctx context.Context) (fx.RateSet, error) {
	return s.source.Fetch(ctx)
}

package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/academics"
	"github.com/Spok95/school-erp/internal/api"
	"github.com/Spok95/school-erp/internal/config"
	"github.com/Spok95/school-erp/internal/ctxutil"
	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/fees"
	"github.com/Spok95/school-erp/internal/jobs"
	"github.com/Spok95/school-erp/internal/logging"
	"github.com/Spok95/school-erp/internal/notify"
	"github.com/Spok95/school-erp/internal/observability"
	"github.com/Spok95/school-erp/internal/results"
	"github.com/Spok95/school-erp/internal/tg"
)

var release = "dev"

type adminNotifier interface {
	notify.Notifier
	jobs.AdminNotifier
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, release)
	if err != nil {
		lg.Base.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctxutil.DefaultDBTimeout = cfg.DBTimeout

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		lg.Base.Fatal("db connect failed", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	if err := db.Migrate(ctx, database); err != nil {
		lg.Base.Fatal("migrations failed", zap.Error(err))
	}

	notifier := newNotifier(cfg, database, lg.Base)
	dispatcher := notify.NewDispatcher(notifier, lg.Base, cfg.NotifyWorkers, cfg.NotifyQueue)
	defer dispatcher.Close()

	academicSvc := academics.New(database, lg.Base, cfg.Location)
	resultSvc := results.New(database, lg.Base, dispatcher)
	feeSvc := fees.New(database, lg.Base, cfg.Location, dispatcher)

	runner := jobs.New(ctx, lg.Base, cfg.Location)
	if err := jobs.ScheduleFeeJobs(runner, feeSvc, notifier, cfg.OverdueInterval, cfg.ReminderCron); err != nil {
		lg.Base.Fatal("schedule jobs failed", zap.Error(err))
	}
	if err := jobs.ScheduleSessionRollover(runner, notifier); err != nil {
		lg.Base.Fatal("schedule jobs failed", zap.Error(err))
	}
	runner.Start()

	srv := api.NewServer(api.Deps{
		Log:       lg.Base,
		Secret:    []byte(cfg.JWTSecret),
		DB:        api.PingFunc(func(ctx context.Context) error { return db.Ping(ctx, database) }),
		Academics: academicSvc,
		Results:   resultSvc,
		Fees:      feeSvc,
	})
	httpSrv, err := api.StartHTTP(ctx, lg.Base, cfg.HTTPAddr, srv.Router())
	if err != nil {
		lg.Base.Fatal("http listen failed", zap.Error(err))
	}
	lg.Base.Info("erp started", zap.String("addr", httpSrv.Addr()), zap.String("release", release))

	<-ctx.Done()
	lg.Base.Info("shutting down")
	httpSrv.Wait()
}

// newNotifier falls back to logging when there is no bot token or the bot cannot start.
func newNotifier(cfg *config.Config, database *sql.DB, log *zap.Logger) adminNotifier {
	if cfg.BotToken == "" {
		return notify.LogNotifier{Log: log}
	}
	client, err := tg.NewClient(cfg.BotToken)
	if err != nil {
		log.Warn("telegram unavailable, logging notifications instead", zap.Error(err))
		return notify.LogNotifier{Log: log}
	}
	return notify.NewTelegram(client, database, log, cfg.AdminIDs)
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/app"
	"github.com/Spok95/group-grader/internal/config"
	"github.com/Spok95/group-grader/internal/ctxutil"
	"github.com/Spok95/group-grader/internal/db"
	"github.com/Spok95/group-grader/internal/jobs"
	"github.com/Spok95/group-grader/internal/logging"
	"github.com/Spok95/group-grader/internal/observability"
	"github.com/Spok95/group-grader/internal/service"
	"github.com/Spok95/group-grader/internal/tg"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		log.Println("Не удалось загрузить .env файл, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	zlog := lg.Base

	ctxutil.DefaultDBTimeout = cfg.DBTimeout

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, os.Getenv("RELEASE"))
	if err != nil {
		zlog.Warn("sentry init failed", zap.Error(err))
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTelEndpoint, "group-grader")
	if err != nil {
		zlog.Warn("tracing init failed", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	dialect := db.Dialect(cfg.DBDriver)
	database, err := db.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("db open", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	if err := db.Migrate(ctx, database, dialect, lg.Named("migrate")); err != nil {
		zlog.Fatal("migrate", zap.Error(err))
	}
	if cfg.Seed {
		if err := db.Seed(ctx, database); err != nil {
			zlog.Fatal("seed", zap.Error(err))
		}
		zlog.Info("demo seed applied")
	}

	rule, err := service.ParseEligibilityRule(cfg.EligibilityRule)
	if err != nil {
		zlog.Fatal("eligibility rule", zap.Error(err))
	}
	notifier, err := tg.Connect(cfg.BotToken, cfg.AdminChatIDs, lg.Named("tg"))
	if err != nil {
		// без уведомлений движок работает
		zlog.Warn("telegram notifier disabled", zap.Error(err))
	}

	svc := service.New(db.New(database, dialect), lg.Named("service"), service.Options{
		Rule:     rule,
		Notifier: notifier,
	})

	api := app.NewAPI(svc, lg.Named("http"), app.APIConfig{
		Auth:     app.NewAuth(cfg.JWTSecret),
		Location: cfg.Location,
		TeamSize: cfg.TeamSize,
	})
	srv := app.StartHTTP(ctx, cfg.HTTPAddr, api.Router(database, cfg.CORSOrigins), zlog)
	zlog.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("rule", string(rule)))

	runner := jobs.New(ctx, lg.Named("jobs"))
	runner.Every(cfg.PeriodSweepInterval, "period_sweep", jobs.PeriodSweep(svc.Periods, lg.Named("jobs")))

	<-ctx.Done()
	zlog.Info("shutting down")
	<-srv.Done()
}

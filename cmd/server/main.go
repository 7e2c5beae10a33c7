package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	api "github.com/quiz-note/quiznote/internal/api/http"
	"github.com/quiz-note/quiznote/internal/auth"
	"github.com/quiz-note/quiznote/internal/config"
	"github.com/quiz-note/quiznote/internal/db"
	"github.com/quiz-note/quiznote/internal/logger"
	"github.com/quiz-note/quiznote/internal/quiz"
	"github.com/quiz-note/quiznote/internal/storage"
	syncx "github.com/quiz-note/quiznote/internal/sync"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		zlog.Fatal("db open failed", zap.Error(err))
	}

	events := syncx.NewEventRepo(dbh)
	store := quiz.NewSQLStore(dbh, cfg.DBDriver, events)
	engine := quiz.NewEngine(store, store, zlog)
	sessions := quiz.NewRegistry(engine, cfg.SessionTTL)

	var mailer auth.Mailer
	if cfg.SMTP.Host != "" {
		mailer = &auth.SMTPMailer{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}
	} else {
		mailer = &auth.LogMailer{Log: zlog}
	}
	authSvc := auth.NewService(auth.NewSQLStore(dbh), mailer, cfg.AuthSecret, cfg.PublicURL,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.MagicLinkTTL)

	snapshots, err := storage.NewSnapshotStore(cfg.SnapshotDir)
	if err != nil {
		zlog.Fatal("snapshot store", zap.Error(err))
	}

	handler := api.NewRouter(api.Deps{
		Log:         zlog,
		Auth:        authSvc,
		Store:       store,
		Sessions:    sessions,
		Snapshots:   snapshots,
		Events:      events,
		CORSOrigins: cfg.CORSOrigins,
	})

	zlog.Info("listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("env", cfg.Env),
		zap.String("db", cfg.DBDriver))
	if err := http.ListenAndServe(cfg.HTTPAddr, handler); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

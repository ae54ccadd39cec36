package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askhatbv/circulation-service/config"
	"github.com/askhatbv/circulation-service/internal/handler"
	"github.com/askhatbv/circulation-service/internal/repository"
	"github.com/askhatbv/circulation-service/internal/server"
	"github.com/askhatbv/circulation-service/internal/service"
	"github.com/askhatbv/circulation-service/migrations"
	"github.com/askhatbv/circulation-service/pkg/logger"
	"github.com/askhatbv/circulation-service/pkg/postgres"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "circulation")

	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}
	svc := service.NewService(repo, cfg.Circulation, log)

	h := handler.New(svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	g, gCtx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if err := srv.Run(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	select {
	case termSig := <-sig:
		log.Debug("Graceful shutdown", zap.Any("signal", termSig))
	case <-gCtx.Done():
		log.Error("server stopped", zap.Error(gCtx.Err()))
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	if err = g.Wait(); err != nil {
		log.Error("server run", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
}

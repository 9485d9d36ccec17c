// launching the server, job store, dispatch queue and in-process workers
package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	"github.com/ds124wfegd/facesvg/internal/service"
	"github.com/ds124wfegd/facesvg/internal/transport"
	"github.com/ds124wfegd/facesvg/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(new(logrus.JSONFormatter))

	var resources closers
	defer resources.Close()

	repo, repoCloser, err := NewRepository(cfg)
	if err != nil {
		logrus.Fatalf("error occured while opening job store: %s", err.Error())
	}
	resources = append(resources, repoCloser)

	q, queueCloser, err := NewQueue(cfg)
	if err != nil {
		logrus.Fatalf("error occured while connecting dispatch queue: %s", err.Error())
	}
	resources = append(resources, queueCloser)

	jobService := service.NewJobService(repo, q.Dispatcher, cfg.Jobs.Dedup)
	jobHandler := transport.NewJobHandler(jobService)

	// the memory queue lives in this process, so its workers do too; remote
	// queues are drained by cmd/processor
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	if q.Driver == queue.DriverMemory {
		faceProcessor, err := NewProcessor(cfg)
		if err != nil {
			logrus.Fatalf("error occured while building pipeline: %s", err.Error())
		}
		w := worker.NewWorker(repo, faceProcessor, cfg.Worker)
		go func() {
			defer close(workersDone)
			w.Run(workersCtx, q.Consumer, cfg.Worker.Concurrency)
		}()
	} else {
		close(workersDone)
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(jobHandler, cfg.Server.Timeout)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithFields(logrus.Fields{
		"port":  cfg.Server.Port,
		"store": cfg.Store.Driver,
		"queue": q.Driver,
	}).Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	stopWorkers()
	<-workersDone
}

// Package main provides the teamchat server executable: the WebSocket
// messaging endpoint backed by a relational or in-memory message store.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/coregx/teamchat"
	"github.com/coregx/teamchat/adapters/memory"
	storerelica "github.com/coregx/teamchat/adapters/relica"
	"github.com/coregx/teamchat/cmd/teamchat-server/internal/config"
)

// LogrusLogger adapts logrus to the teamchat.Logger interface.
type LogrusLogger struct {
	logger logrus.FieldLogger
}

func (l *LogrusLogger) Debugf(format string, args ...interface{}) { l.logger.Debugf(format, args...) }
func (l *LogrusLogger) Infof(format string, args ...interface{})  { l.logger.Infof(format, args...) }
func (l *LogrusLogger) Warnf(format string, args ...interface{})  { l.logger.Warnf(format, args...) }
func (l *LogrusLogger) Errorf(format string, args ...interface{}) { l.logger.Errorf(format, args...) }
func (l *LogrusLogger) Info(message string)                       { l.logger.Info(message) }

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger := &LogrusLogger{logger: log}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	log.Infof("starting teamchat server on %s", cfg.Server.Addr())

	var store teamchat.MessageStore
	var db *sql.DB
	if cfg.Database.Driver == "" {
		log.Warn("no DB_DRIVER configured, using in-memory message store")
		store = memory.NewMessageStore()
	} else {
		db, err = sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		log.Infof("database connection established (%s)", cfg.Database.Driver)
		store = storerelica.NewMessageStoreWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)
	}

	server, err := teamchat.NewServer(
		teamchat.WithStore(store),
		teamchat.WithServerLogger(logger),
		teamchat.WithAllowedOrigins(cfg.Chat.AllowedOrigins...),
		teamchat.WithHistoryLimit(cfg.Chat.HistoryLimit),
		teamchat.WithIdleTimeout(cfg.Chat.IdleTimeout),
	)
	if err != nil {
		log.Fatalf("failed to create messaging server: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Infof("websocket endpoint ready at ws://%s/ws", cfg.Server.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http server forced to shut down: %v", err)
	}

	// Sessions first, store last: no session may be left mid-delivery
	// against a closed store.
	_ = server.Close()
	if db != nil {
		if err := db.Close(); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}

	log.Info("server stopped")
}

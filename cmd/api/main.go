package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"folionest.org/internal/audit"
	"folionest.org/internal/auth"
	"folionest.org/internal/httpapi"
	"folionest.org/internal/notification"
	"folionest.org/internal/obs"
	"folionest.org/internal/project"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("FOLIONEST_PG_DSN")

	var (
		users         auth.UserStore
		notifications notification.Store
		audits        audit.Store
		projects      project.Store
		db            *sql.DB
		wsDB          *sql.DB
	)
	if dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		// Separate small pool for live notification sessions; each session
		// pins one connection, so its size bounds concurrent streams
		// without starving the request pool.
		wsDB, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open ws db: %v", err)
		}
		wsDB.SetMaxOpenConns(envInt("FOLIONEST_WS_POOL", 10))
		wsDB.SetMaxIdleConns(5)
		wsDB.SetConnMaxLifetime(30 * time.Minute)

		users = auth.NewPGStore(db)
		notifications = notification.NewPGStore(db)
		audits = audit.NewPGStore(db)
		projects = project.NewPGStore(db)
	} else {
		log.Println("FOLIONEST_PG_DSN not set, using in-memory stores")
		users = auth.NewMemStore()
		notifications = notification.NewMemStore()
		audits = audit.NewMemStore()
		projects = project.NewMemStore()
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version,
		users, notifications, audits, projects, wsDB)
	if interval := envDuration("FOLIONEST_POLL_INTERVAL", 5*time.Second); interval > 0 {
		api.SetPollInterval(interval)
	}

	addr := os.Getenv("FOLIONEST_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Long-lived websocket streams flow through this server too, so
		// no WriteTimeout; per-message deadlines live in the ws handler.
		IdleTimeout: 60 * time.Second,
	}

	log.Printf("Starting folionest-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	if wsDB != nil {
		_ = wsDB.Close()
	}
	log.Println("Stopped")
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("invalid %s=%q, using %d", name, raw, def)
		return def
	}
	return v
}

func envDuration(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", name, raw, def)
		return def
	}
	return d
}

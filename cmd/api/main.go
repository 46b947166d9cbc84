package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"clinsalud.org/internal/audit"
	"clinsalud.org/internal/auth"
	"clinsalud.org/internal/config"
	"clinsalud.org/internal/httpapi"
	"clinsalud.org/internal/obs"
	"clinsalud.org/internal/ratelimit"
	"clinsalud.org/internal/records"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsDevelopment() {
		log.Println("running with development defaults; do not expose this instance")
	}

	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if db == nil {
		log.Fatal("missing DSN: set CLINSALUD_PG_DSN")
	}

	codecOpts := []auth.CodecOption{auth.WithTTL(cfg.TokenTTL)}
	var denylist auth.Denylist
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		denylist = auth.NewRedisDenylist(rdb)
		codecOpts = append(codecOpts, auth.WithDenylist(denylist))
	}

	codec, err := auth.NewCodec(cfg.TokenSecret, codecOpts...)
	if err != nil {
		log.Fatalf("auth codec: %v", err)
	}

	users := auth.NewPGUserStore(db)
	resolver, err := auth.NewResolver(codec, users)
	if err != nil {
		log.Fatalf("auth resolver: %v", err)
	}

	svcOpts := []auth.ServiceOption{auth.WithSessionTTL(cfg.SessionTTL)}
	if denylist != nil {
		svcOpts = append(svcOpts, auth.WithServiceDenylist(denylist))
	}
	authSvc, err := auth.NewService(users, codec, svcOpts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	recordStore := records.NewPGStore(db)
	engine, err := auth.NewEngine(auth.DefaultCatalog(), recordStore)
	if err != nil {
		log.Fatalf("access engine: %v", err)
	}
	recordSvc, err := records.NewService(recordStore, engine)
	if err != nil {
		log.Fatalf("records service: %v", err)
	}

	limiter := ratelimit.New()
	defer limiter.Close()

	security, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		log.Fatalf("security log: %v", err)
	}
	defer security.Close()

	api := httpapi.New(httpapi.Deps{
		Ready:    httpapi.ReadyProbe{DB: db},
		Version:  version,
		Auth:     authSvc,
		Resolver: resolver,
		Engine:   engine,
		Records:  recordSvc,
		Limiter:  limiter,
		Security: security,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting clinsalud-api %s on %s", version, srv.Addr)

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
	_ = db.Close()
	log.Println("Stopped")
}

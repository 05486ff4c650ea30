// Command orgauditd is the orgaudit service. It serves the REST API over
// run history and stored reports, the run trigger endpoint, and a health
// check.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orgaudit/orgaudit/internal/api"
	"github.com/orgaudit/orgaudit/internal/history"
	"github.com/orgaudit/orgaudit/internal/ingestion"
	"github.com/orgaudit/orgaudit/internal/logging"
	pkgconfig "github.com/orgaudit/orgaudit/pkg/config"
)

type config struct {
	Port       string
	ConfigPath string
	Org        string
	APIKey     string
	LogLevel   string
	LogFormat  string
}

func loadConfig() config {
	return config{
		Port:       envOrDefault("PORT", "8080"),
		ConfigPath: os.Getenv("ORGAUDIT_CONFIG"),
		Org:        os.Getenv("ORGAUDIT_ORG"),
		APIKey:     os.Getenv("ORGAUDIT_API_KEY"),
		LogLevel:   envOrDefault("LOG_LEVEL", "info"),
		LogFormat:  envOrDefault("LOG_FORMAT", "json"),
	}
}

func main() {
	cfg := loadConfig()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}

	appCfg, err := pkgconfig.Load(cfg.ConfigPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := appCfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if appCfg.Database.URL == "" {
		log.Fatal("database.url or ORGAUDIT_DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := history.Open(ctx, appCfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if appCfg.Database.AutoMigrate {
		if err := history.AutoMigrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	storage, err := ingestion.NewStorage(ctx, appCfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	store := history.NewStore(db)
	runSvc := ingestion.NewService(storage, store, appCfg, log)
	handler := api.NewHandler(cfg.Org, store, runSvc, storage, nil, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newMux(handler, db, cfg.APIKey, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("starting orgauditd on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}

// pinger is the part of *sql.DB the health check needs.
type pinger interface {
	PingContext(ctx context.Context) error
}

var _ pinger = (*sql.DB)(nil)

func newMux(handler *api.Handler, db pinger, apiKey string, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, apiKey)
	mux.HandleFunc("GET /healthz", healthHandler(db))
	return api.RequestLogger(log)(api.CORS(mux))
}

func healthHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "database unreachable"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

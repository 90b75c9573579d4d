package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"beatvault/config"
	"beatvault/logger"
	"beatvault/repository"
	"beatvault/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server. The database connection is
// not established here: the first request that needs the store opens it.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	if err := storage.Init(cfg); err != nil {
		// The URL-reference create variant works without object storage,
		// so a missing MinIO only disables file uploads.
		logger.Warn("object storage unavailable, file uploads disabled", logger.ErrorField(err))
	}
	if err := cfg.ValidateDSN(); err != nil {
		logger.Warn("database connection string not configured, store operations will fail", logger.ErrorField(err))
	}

	trackRepo := repository.NewMySQLTrackRepository(cfg)
	api := NewAPIHandler(trackRepo, cfg)
	router := newRouter(api)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

func newRouter(api *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, requestLogMiddleware)

	router.HandleFunc("/records", api.ListRecordsHandler).Methods(http.MethodGet)
	router.HandleFunc("/records", api.CreateRecordHandler).Methods(http.MethodPost)
	router.HandleFunc("/records/{id}", api.GetRecordHandler).Methods(http.MethodGet)
	router.HandleFunc("/records/{id}", api.UpdateRecordHandler).Methods(http.MethodPatch)
	router.HandleFunc("/records/{id}", api.DeleteRecordHandler).Methods(http.MethodDelete)
	router.PathPrefix("/files/").HandlerFunc(api.FileHandler).Methods(http.MethodGet)
	router.HandleFunc("/healthz", api.HealthzHandler).Methods(http.MethodGet)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request handled",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Duration("elapsed", time.Since(start)))
	})
}

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stylekeep/wardrobe-pipeline/internal/model"
	"github.com/stylekeep/wardrobe-pipeline/internal/pipeline"
	"github.com/stylekeep/wardrobe-pipeline/internal/reconcile"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction API server and reconciliation scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background reconciliation sweeps run for the lifetime of the server.
		scheduler := reconcile.NewScheduler(env.Reconciler, cfg.Reconcile.TickInterval())
		go scheduler.Run(ctx)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/v1/items", func(w http.ResponseWriter, req *http.Request) {
			handleRegisterItems(w, req, env)
		})

		r.Post("/v1/extract", func(w http.ResponseWriter, req *http.Request) {
			handleExtract(w, req, env)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type itemsRequest struct {
	UserID    string   `json:"user_id"`
	ImageURLs []string `json:"image_urls"`
}

// handleRegisterItems records newly uploaded wardrobe photos as pending items
// and touches the user's activity marker so reconciliation can find them
// later if extraction never completes.
func handleRegisterItems(w http.ResponseWriter, r *http.Request, env *pipelineEnv) {
	var req itemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.ImageURLs) == 0 {
		writeError(w, http.StatusBadRequest, "image_urls is required")
		return
	}

	items := make([]model.WardrobeItem, 0, len(req.ImageURLs))
	for _, url := range req.ImageURLs {
		if url == "" {
			writeError(w, http.StatusBadRequest, "image_urls must not contain empty entries")
			return
		}
		item, err := env.Store.CreateItem(r.Context(), req.UserID, url)
		if err != nil {
			zap.L().Error("failed to register item",
				zap.String("user_id", req.UserID),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "failed to register items")
			return
		}
		items = append(items, *item)
	}

	if err := env.Store.TouchUserActivity(r.Context(), req.UserID, time.Now()); err != nil {
		zap.L().Error("failed to touch user activity",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusCreated, map[string]any{"items": items})
}

// handleExtract runs one synchronous extraction over the submitted references.
func handleExtract(w http.ResponseWriter, r *http.Request, env *pipelineEnv) {
	var req itemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := env.Pipeline.Run(r.Context(), model.ExtractionRequest{
		UserID:    req.UserID,
		ImageURLs: req.ImageURLs,
	})
	if err != nil {
		zap.L().Warn("extraction failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		writeError(w, pipeline.HTTPStatus(err), err.Error())
		return
	}

	// Persist accepted features for items already registered with these URLs.
	for _, fs := range result.Features {
		if err := env.Store.UpdateItemFeatures(r.Context(), fs.SourceImage, fs); err != nil {
			zap.L().Error("failed to persist features",
				zap.String("image_url", fs.SourceImage),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

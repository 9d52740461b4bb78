package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/monitor"
	"github.com/sells-group/covenant-monitor/internal/refresh"
	"github.com/sells-group/covenant-monitor/internal/report"
	"github.com/sells-group/covenant-monitor/internal/store"
)

const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the refresh scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Service, env.Scheduler, cfg.Server.AllowedOrigins, cfg.Alerts.SummaryWindowDays),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if env.Scheduler != nil && cfg.Refresh.Enabled {
			env.Scheduler.Start(ctx)
			zap.L().Info("refresh scheduler started", zap.String("schedule", cfg.Refresh.Schedule))
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			err := srv.Shutdown(shutdownCtx)
			if env.Scheduler != nil {
				env.Scheduler.Stop()
			}
			return eris.Wrap(err, "server shutdown")
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter wires the HTTP API. sched may be nil when no metric source
// is configured.
func buildRouter(svc *monitor.Service, sched *refresh.Scheduler, origins []string, summaryDays int) http.Handler {
	h := &apiHandler{svc: svc, sched: sched, summaryDays: summaryDays}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/projects", h.createProject)
	r.Get("/projects", h.listProjects)
	r.Get("/projects/{id}", h.getProject)
	r.Delete("/projects/{id}", h.deleteProject)

	r.Post("/documents", h.extractDocument)
	r.Get("/documents/{id}", h.getDocument)
	r.Delete("/documents/{id}", h.deleteDocument)

	r.Get("/covenants", h.listCovenants)
	r.Get("/covenants/{id}", h.getCovenant)
	r.Get("/covenants/{id}/status", h.getStatus)
	r.Put("/covenants/{id}/value", h.setValue)
	r.Get("/covenants/{id}/history", h.history)
	r.Post("/covenants/{id}/analyze", h.analyzeCovenant)
	r.Delete("/covenants/{id}", h.deleteCovenant)

	r.Get("/alerts", h.listAlerts)
	r.Get("/alerts/summary", h.alertSummary)
	r.Post("/alerts/{id}/dismiss", h.dismissAlert)
	r.Get("/alerts/{id}/recommendations", h.recommendations)

	r.Get("/report.xlsx", h.downloadReport)
	r.Post("/refresh", h.runRefresh)

	return r
}

type apiHandler struct {
	svc         *monitor.Service
	sched       *refresh.Scheduler
	summaryDays int
}

func (h *apiHandler) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.CreateProject(r.Context(), req.UserID, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

func (h *apiHandler) listProjects(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "user_id is required")
		return
	}
	projects, err := h.svc.ListProjects(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSONStatus(w, http.StatusOK, projects)
}

func (h *apiHandler) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, p)
}

func (h *apiHandler) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) extractDocument(w http.ResponseWriter, r *http.Request) {
	var in monitor.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.UserID == "" || in.Text == "" {
		writeErrorMessage(w, http.StatusBadRequest, "user_id and text are required")
		return
	}
	out, err := h.svc.ExtractAndStore(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, out)
}

func (h *apiHandler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, doc)
}

func (h *apiHandler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) listCovenants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	covenants, err := h.svc.ListCovenants(r.Context(), store.CovenantFilter{
		UserID:     q.Get("user_id"),
		DocumentID: q.Get("document_id"),
		Status:     model.ComplianceStatus(q.Get("status")),
		Limit:      queryInt(q.Get("limit"), 0),
		Offset:     queryInt(q.Get("offset"), 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, covenants)
}

func (h *apiHandler) getCovenant(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCovenant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, c)
}

func (h *apiHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := h.svc.GetComplianceStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"covenant_id": id, "compliance_status": string(status)})
}

func (h *apiHandler) setValue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeErrorMessage(w, http.StatusBadRequest, "value is required")
		return
	}
	c, tr, err := h.svc.SetCurrentValue(r.Context(), chi.URLParam(r, "id"), *req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{"covenant": c, "alert": tr})
}

func (h *apiHandler) history(w http.ResponseWriter, r *http.Request) {
	points, err := h.svc.CovenantHistory(r.Context(), chi.URLParam(r, "id"), queryInt(r.URL.Query().Get("days"), 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, points)
}

func (h *apiHandler) analyzeCovenant(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.AnalyzeCovenant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, a)
}

func (h *apiHandler) deleteCovenant(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCovenant(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	alerts, err := h.svc.ListAlerts(r.Context(), store.AlertFilter{
		UserID:     q.Get("user_id"),
		CovenantID: q.Get("covenant_id"),
		Status:     model.AlertStatus(q.Get("status")),
		Limit:      queryInt(q.Get("limit"), 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, alerts)
}

func (h *apiHandler) alertSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "user_id is required")
		return
	}
	summary, err := h.svc.GetAlertSummary(r.Context(), userID, queryInt(q.Get("days"), h.summaryDays))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, summary)
}

func (h *apiHandler) dismissAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	a, err := h.svc.DismissAlert(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, a)
}

func (h *apiHandler) recommendations(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.svc.Recommendations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, analysis)
}

func (h *apiHandler) downloadReport(w http.ResponseWriter, r *http.Request) {
	data, err := loadReport(r.Context(), h.svc, r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="covenants.xlsx"`)
	if err := report.Write(w, data); err != nil {
		zap.L().Error("write report", zap.Error(err))
	}
}

func (h *apiHandler) runRefresh(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "no metrics source configured")
		return
	}
	rep, err := h.sched.RunOnce(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, rep)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeErrorMessage(w, code, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, code int, msg string) {
	writeJSONStatus(w, code, map[string]string{"error": msg})
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/specialistvlad/scriptdeck/internal/ctxlog"
)

// response is the envelope of every status API answer.
type response struct {
	Data  any        `json:"data,omitempty"`
	Error *errorInfo `json:"error,omitempty"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	errNotFound   = "NOT_FOUND"
	errBadRequest = "BAD_REQUEST"
	errBackend    = "BACKEND_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Error: &errorInfo{Code: code, Message: message}})
}

// Handler returns the status API.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", a.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/apps", a.listApps).Methods(http.MethodGet)
	r.HandleFunc("/apps/{appId}", a.getApp).Methods(http.MethodGet)
	r.HandleFunc("/apps/{appId}/logs", a.getLogs).Methods(http.MethodGet)
	r.HandleFunc("/apps/{appId}/connect", a.connectApp).Methods(http.MethodPost)
	r.HandleFunc("/apps/{appId}/disconnect", a.disconnectApp).Methods(http.MethodPost)
	r.HandleFunc("/apps/{appId}/stop", a.stopApp).Methods(http.MethodPost)
	r.HandleFunc("/apps/{appId}/install", a.installDeps).Methods(http.MethodPost)
	r.HandleFunc("/apps/{appId}/clear", a.clearLogs).Methods(http.MethodPost)
	r.HandleFunc("/apps/{appId}/dismiss", a.dismissNotSupported).Methods(http.MethodPost)
	r.HandleFunc("/notifications", a.listNotifications).Methods(http.MethodGet)
	return r
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (a *App) listApps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.store.ActiveApps())
}

func (a *App) getApp(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appId"]
	snap, ok := a.store.Snapshot(appID)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound, "unknown app")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *App) getLogs(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appId"]
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errBadRequest, "since must be a sequence number")
			return
		}
		since = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appId":      appID,
		"lines":      a.store.LogsSince(appID, since),
		"deleteLogs": a.store.DeleteLogs(appID),
	})
}

func (a *App) connectApp(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appId"]
	q := r.URL.Query()
	port := a.settings.BackendPort
	if raw := q.Get("port"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errBadRequest, "port must be a number")
			return
		}
		port = n
	}
	local := q.Get("local") == "true"

	// The session outlives the request.
	s, err := a.manager.Connect(context.WithoutCancel(r.Context()), appID, local, port)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appId":     s.AppID,
		"instance":  s.InstanceID,
		"connected": s.Connected(),
	})
}

func (a *App) disconnectApp(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appId"]
	writeJSON(w, http.StatusOK, map[string]any{"appId": appID, "disconnected": a.manager.Disconnect(appID)})
}

func (a *App) stopApp(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appId"]
	if err := a.manager.StopApp(r.Context(), appID); err != nil {
		writeError(w, http.StatusBadGateway, errBackend, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appId": appID})
}

func (a *App) installDeps(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appId"]
	var body struct {
		Dependencies []string `json:"dependencies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest, "invalid JSON body")
		return
	}
	if err := a.manager.InstallDependencies(r.Context(), appID, body.Dependencies); err != nil {
		writeError(w, http.StatusBadGateway, errBackend, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"appId": appID, "dependencies": body.Dependencies})
}

func (a *App) clearLogs(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appId"]
	a.manager.ClearLogs(appID)
	writeJSON(w, http.StatusOK, map[string]any{"appId": appID})
}

func (a *App) dismissNotSupported(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appId"]
	a.manager.DismissNotSupported(appID)
	writeJSON(w, http.StatusOK, map[string]any{"appId": appID})
}

func (a *App) listNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": a.recorder.Notifications(),
		"toasts":        a.recorder.Toasts(),
		"reveals":       a.recorder.Reveals(),
	})
}

// startStatusServer binds the status port and serves in the background. A
// zero port disables the server.
func (a *App) startStatusServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if a.settings.StatusPort <= 0 {
		logger.Debug("Status server not started: disabled")
		return nil
	}

	addr := fmt.Sprintf(":%d", a.settings.StatusPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind status server on %s: %w", addr, err)
	}
	a.httpServer = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
	return nil
}

func (a *App) closeStatusServer() {
	if a.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.logger.Info("🩺 Shutting down status server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Status server shutdown failed", "error", err)
	}
}

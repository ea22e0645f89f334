package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jghoshh/taskvibe/backend/engine"
	"github.com/jghoshh/taskvibe/backend/models"
	"github.com/jghoshh/taskvibe/backend/server/auth"
)

const defaultDailyStatDays = 7

type errorBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type loginRequest struct {
	Passphrase string `json:"passphrase"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user,omitempty"`
}

type themeRequest struct {
	Theme models.Theme `json:"theme"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

// writeError maps engine and auth errors onto status codes. Anything unexpected is
// logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: verr.Message, Field: verr.Field})
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Message: "Not found"})
	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
	default:
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Internal server error"})
	}
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Invalid request body"})
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) issueTokens(w http.ResponseWriter, r *http.Request, userID string, user *models.User) {
	token, refreshToken, err := s.auth.CreateTokens(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, RefreshToken: refreshToken, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.auth.CheckPassphrase(req.Passphrase); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.svc.EnsureUser(r.Context(), auth.OfflineUser())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.issueTokens(w, r, user.ID, user)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	token, refreshToken, err := s.auth.Refresh(req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, RefreshToken: refreshToken})
}

// handleLogout has nothing to revoke; tokens are stateless and the client drops them.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.GetUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var fields engine.UserFields
	if !decode(w, r, &fields) {
		return
	}
	user, err := s.svc.UpsertUser(r.Context(), userIDFrom(r.Context()), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	var in engine.OnboardingInput
	if !decode(w, r, &in) {
		return
	}
	user, err := s.svc.CompleteOnboarding(r.Context(), userIDFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := s.svc.UpdateUserTheme(r.Context(), userIDFrom(r.Context()), req.Theme)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request, completed bool) {
	tasks, err := s.svc.ListTasks(r.Context(), userIDFrom(r.Context()), completed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	completed := false
	if raw := r.URL.Query().Get("completed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, &engine.ValidationError{Field: "completed", Message: "completed must be true or false"})
			return
		}
		completed = v
	}
	s.listTasks(w, r, completed)
}

func (s *Server) handleListCompleted(w http.ResponseWriter, r *http.Request) {
	s.listTasks(w, r, true)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in engine.CreateTaskInput
	if !decode(w, r, &in) {
		return
	}
	task, err := s.svc.CreateTask(r.Context(), userIDFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch engine.TaskPatch
	if !decode(w, r, &patch) {
		return
	}
	task, err := s.svc.UpdateTask(r.Context(), userIDFrom(r.Context()), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTask(r.Context(), userIDFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.CompleteTask(r.Context(), userIDFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUncomplete(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.UncompleteTask(r.Context(), userIDFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.GetUserStats(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	days := defaultDailyStatDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, &engine.ValidationError{Field: "days", Message: "days must be a number"})
			return
		}
		days = v
	}
	rows, err := s.svc.GetDailyStats(r.Context(), userIDFrom(r.Context()), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := s.svc.ListAchievements(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, achievements)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Drain(userIDFrom(r.Context())))
}

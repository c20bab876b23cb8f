package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/tuneline/tuneline/internal/store"
)

const dateLayout = "2006-01-02"

type userResponse struct {
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toUserResponse(u store.User) userResponse {
	return userResponse{
		Username:    u.Name,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	users, err := s.store.ListUsers(skip, limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"lastfm_username"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "lastfm_username is required")
		return
	}

	user := strings.ToLower(req.Username)
	if err := s.store.CreateUser(user); err != nil {
		s.serverError(w, err)
		return
	}
	if req.Email != "" || req.DisplayName != "" {
		if err := s.store.UpdateUser(user, req.Email, req.DisplayName); err != nil {
			s.serverError(w, err)
			return
		}
	}

	u, err := s.store.GetUser(user)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// urlUser canonicalizes the username path parameter the same way the write
// paths do, so reads and writes agree on the key.
func urlUser(r *http.Request) string {
	return strings.ToLower(chi.URLParam(r, "username"))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(urlUser(r))
	if errors.Is(err, store.ErrUserNotFound) {
		s.writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteUser(urlUser(r))
	if errors.Is(err, store.ErrUserNotFound) {
		s.writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type scrobbleResponse struct {
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	Track      string `json:"track"`
	ListenedAt string `json:"listened_at"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

func (s *Server) handleListScrobbles(w http.ResponseWriter, r *http.Request) {
	user := urlUser(r)
	if _, err := s.store.GetUser(user); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.serverError(w, err)
		return
	}

	start, end, err := dateRange(r)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	skip, limit := pagination(r)

	scrobbles, err := s.store.ScrobblesInRange(user, start, endOfDay(end), skip, limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	total, err := s.store.CountScrobbles(user, start, endOfDay(end))
	if err != nil {
		s.serverError(w, err)
		return
	}

	out := make([]scrobbleResponse, 0, len(scrobbles))
	for _, sc := range scrobbles {
		out = append(out, scrobbleResponse{
			Artist:     sc.Artist,
			Album:      sc.Album,
			Track:      sc.Track,
			ListenedAt: sc.ListenedAt.Format(time.RFC3339),
			ArtworkURL: sc.ArtworkURL,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"scrobbles": out,
		"total":     total,
	})
}

func (s *Server) handleFetchScrobbles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"lastfm_username"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "lastfm_username is required")
		return
	}
	start, end, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ingested, runID, err := s.pipeline.Ingest(r.Context(), req.Username, start, endOfDay(end))
	if err != nil {
		s.serverError(w, err)
		return
	}

	resp := map[string]interface{}{
		"message":  fmt.Sprintf("Fetched scrobbles for %s", req.Username),
		"ingested": ingested,
	}
	if runID != "" {
		resp["continuation_id"] = runID
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"lastfm_username"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "lastfm_username is required")
		return
	}
	start, end, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	summary, err := s.reports.Summarize(r.Context(), req.Username, start, end)
	if errors.Is(err, store.ErrNoListens) {
		s.writeError(w, http.StatusNotFound, "No listening data found for user")
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleArtistTrends(w http.ResponseWriter, r *http.Request) {
	user := urlUser(r)
	if _, err := s.store.GetUser(user); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.serverError(w, err)
		return
	}

	period := r.URL.Query().Get("period")
	skip, limit := pagination(r)

	trends, err := s.store.Trends(user, period, skip, limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	total, err := s.store.CountTrends(user, period)
	if err != nil {
		s.serverError(w, err)
		return
	}

	type trendResponse struct {
		Period         string `json:"period"`
		Artist         string `json:"artist"`
		PlayCount      int    `json:"play_count"`
		IsNewDiscovery bool   `json:"is_new_discovery"`
	}
	out := make([]trendResponse, 0, len(trends))
	for _, t := range trends {
		out = append(out, trendResponse{
			Period:         t.Period,
			Artist:         t.Artist,
			PlayCount:      t.PlayCount,
			IsNewDiscovery: t.IsNewDiscovery,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trends": out,
		"total":  total,
	})
}

func (s *Server) handleListeningActivity(w http.ResponseWriter, r *http.Request) {
	user := urlUser(r)
	if _, err := s.store.GetUser(user); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.serverError(w, err)
		return
	}

	start, end, err := dateRange(r)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	skip, limit := pagination(r)

	activities, err := s.store.Activities(user, start, end, skip, limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	total, err := s.store.CountActivities(user, start, end)
	if err != nil {
		s.serverError(w, err)
		return
	}

	type activityResponse struct {
		Date       string `json:"date"`
		TrackCount int    `json:"track_count"`
	}
	out := make([]activityResponse, 0, len(activities))
	for _, a := range activities {
		out = append(out, activityResponse{
			Date:       a.Date.Format(dateLayout),
			TrackCount: a.TrackCount,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"activities": out,
		"total":      total,
	})
}

func (s *Server) handleContinuation(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Continuation(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "Continuation run not found")
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}

	resp := map[string]interface{}{
		"id":           run.ID,
		"user":         run.User,
		"start_page":   run.StartPage,
		"status":       run.Status,
		"pages_done":   run.PagesDone,
		"failed_pages": run.FailedPages,
	}
	if !run.StartedAt.IsZero() {
		resp["started_at"] = run.StartedAt.Format(time.RFC3339)
	}
	if !run.FinishedAt.IsZero() {
		resp["finished_at"] = run.FinishedAt.Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("request failed")
	s.writeError(w, http.StatusInternalServerError, "Internal server error")
}

func pagination(r *http.Request) (skip, limit int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 100
	}
	return skip, limit
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	return parseDates(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
}

func parseDates(startStr, endStr string) (start, end time.Time, err error) {
	if startStr != "" {
		start, err = time.Parse(dateLayout, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q", startStr)
		}
	}
	if endStr != "" {
		end, err = time.Parse(dateLayout, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q", endStr)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date before start_date")
	}
	return start, end, nil
}

func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

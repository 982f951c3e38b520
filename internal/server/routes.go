package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/icebox-app/icebox/internal/engine"
	"github.com/icebox-app/icebox/internal/payment"
	"github.com/icebox-app/icebox/internal/premium"
	"github.com/icebox-app/icebox/internal/session"
	"github.com/icebox-app/icebox/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors onto the API taxonomy: bad input 400,
// entitlement 402, everything else 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNeedsPremium):
		writeError(w, http.StatusPaymentRequired, "this feature requires a premium subscription")
	case errors.Is(err, engine.ErrEmptyContent),
		errors.Is(err, engine.ErrEmptyQuery),
		errors.Is(err, engine.ErrInvalidFreezeDays):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

func noteIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
}

// noteSummary is the resurfacing list view: enough to decide whether to open.
type noteSummary struct {
	ID          int64  `json:"id"`
	Preview     string `json:"preview"`
	Type        string `json:"type"`
	Temperature string `json:"temperature"`
	OpenedCount int    `json:"opened_count"`
	IsValuable  bool   `json:"is_valuable"`
	CreatedAt   int64  `json:"created_at"`
	DayOfWeek   string `json:"day_of_week"`
	TimeOfDay   string `json:"time_of_day"`
	Weather     string `json:"weather,omitempty"`
}

const previewRunes = 80

func summarize(idea store.Idea) noteSummary {
	preview := idea.Content
	if runes := []rune(preview); len(runes) > previewRunes {
		preview = string(runes[:previewRunes]) + "..."
	}
	return noteSummary{
		ID:          idea.ID,
		Preview:     preview,
		Type:        idea.IdeaType,
		Temperature: engine.Temperature(idea.OpenedCount),
		OpenedCount: idea.OpenedCount,
		IsValuable:  idea.IsValuable,
		CreatedAt:   idea.CreatedAt,
		DayOfWeek:   idea.DayOfWeek,
		TimeOfDay:   idea.TimeOfDay,
		Weather:     idea.Weather,
	}
}

func summarizeAll(ideas []store.Idea) []noteSummary {
	out := make([]noteSummary, 0, len(ideas))
	for _, idea := range ideas {
		out = append(out, summarize(idea))
	}
	return out
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	// confirm=1 commits the staged duplicate candidate instead of capturing.
	if r.URL.Query().Get("confirm") == "1" {
		idea, err := s.engine.ConfirmSave(userID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if idea == nil {
			writeError(w, http.StatusNotFound, "nothing staged; the candidate may have expired")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"note": idea})
		return
	}

	var req struct {
		Content  string `json:"content"`
		Type     string `json:"type"`
		FileID   string `json:"file_id"`
		FilePath string `json:"file_path"`
		Source   string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Type == "" {
		req.Type = store.TypeText
	}

	var result *engine.CaptureResult
	switch req.Type {
	case store.TypeText:
		result, err = s.engine.CaptureText(r.Context(), userID, req.Content, req.Source)
	case store.TypePhoto:
		if req.FileID == "" {
			writeError(w, http.StatusBadRequest, "file_id required for photo notes")
			return
		}
		result, err = s.engine.CapturePhoto(r.Context(), userID, req.FileID, req.Content, req.Source)
	case store.TypeVoice:
		if req.FileID == "" {
			writeError(w, http.StatusBadRequest, "file_id required for voice notes")
			return
		}
		result, err = s.engine.CaptureVoice(r.Context(), userID, req.FileID, req.FilePath, req.Source)
	default:
		writeError(w, http.StatusBadRequest, "type must be text, voice or photo")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if result.Duplicate != nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"duplicate": result.Duplicate,
			"hint":      "similar note already frozen; POST again with ?confirm=1 to save anyway",
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"note": result.Idea})
}

// handlePrompt arms the user's next free-form input for a prompt, mirroring
// the conversational front-end's "now send me X" step.
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		Await string `json:"await"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	var mode session.Mode
	switch req.Await {
	case "search":
		mode = session.AwaitingSearchQuery
	case "days":
		mode = session.AwaitingCustomDays
	case "city":
		mode = session.AwaitingCity
	default:
		writeError(w, http.StatusBadRequest, `await must be "search", "days" or "city"`)
		return
	}
	s.engine.PromptFor(userID, mode)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "awaiting": mode.String()})
}

// handleInput routes one free-form input through the session FSM: a pending
// prompt consumes it, otherwise it is captured as a new note.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := s.engine.HandleInput(r.Context(), userID, req.Text)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if result.Kind == "captured" && result.Capture.Duplicate != nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"duplicate": result.Capture.Duplicate,
			"hint":      "similar note already frozen; POST notes?confirm=1 to save anyway",
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleThawed(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	ideas, err := s.engine.Thawed(userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": summarizeAll(ideas)})
}

func (s *Server) handleOld(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	ideas, err := s.engine.OldForCleanup(userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": summarizeAll(ideas)})
}

func (s *Server) handleOpenNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	noteID, err := noteIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}
	idea, err := s.engine.Open(noteID, userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if idea == nil {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"note":        idea,
		"temperature": engine.Temperature(idea.OpenedCount),
	})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	noteID, err := noteIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}
	deleted, err := s.engine.Delete(noteID, userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRefreeze(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	noteID, err := noteIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}
	var req struct {
		From string `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	switch req.From {
	case "thaw":
		err = s.engine.RefreezeFromThaw(noteID, userID)
	case "dump":
		err = s.engine.RefreezeFromDump(noteID, userID)
	default:
		writeError(w, http.StatusBadRequest, `from must be "thaw" or "dump"`)
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refrozen"})
}

func (s *Server) handleMarkValuable(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	noteID, err := noteIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}
	if err := s.engine.MarkValuable(noteID, userID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "valuable"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	matches, err := s.engine.Search(userID, r.URL.Query().Get("q"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	stats, err := s.engine.Stats(userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	idea, err := s.engine.Echo(userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if idea == nil {
		writeError(w, http.StatusNotFound, "no old notes yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"note": summarize(*idea)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "all"
	}
	if scope != "all" && scope != "valuable" {
		writeError(w, http.StatusBadRequest, `scope must be "all" or "valuable"`)
		return
	}

	doc, err := s.engine.Export(userID, scope == "valuable")
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(doc))
}

func (s *Server) handleSetFreeze(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.engine.SetFreezePreference(userID, req.Days); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "days": req.Days})
}

func (s *Server) handleSetCity(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		City string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	conditions, err := s.engine.SetCity(r.Context(), userID, req.City)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"city":       req.City,
		"conditions": conditions,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.db.GetOrCreateUser(userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       user.UserID,
		"freeze_days":   user.FreezeDays,
		"is_premium":    user.IsPremium,
		"premium_until": user.PremiumUntil,
		"ideas_count":   user.IdeasCount,
		"city":          user.City,
		"created_at":    user.CreatedAt,
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.premium == nil {
		writeError(w, http.StatusServiceUnavailable, "payments not configured")
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	co, err := s.premium.StartCheckout(r.Context(), userID, req.Plan)
	if err != nil {
		if _, ok := premium.PlanByTag(req.Plan); !ok {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "payment gateway unavailable, try again")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"payment_id": co.PaymentID,
		"url":        co.ConfirmationURL,
		"plan":       co.Plan.Tag,
		"price":      co.Plan.Price,
	})
}

func (s *Server) handleCheckPayment(w http.ResponseWriter, r *http.Request) {
	if s.premium == nil {
		writeError(w, http.StatusServiceUnavailable, "payments not configured")
		return
	}
	paymentID := chi.URLParam(r, "paymentID")

	res, err := s.premium.CheckPayment(r.Context(), paymentID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "payment check failed, try again")
		return
	}
	if res.Status == premium.CheckNotFound {
		writeError(w, http.StatusNotFound, "payment not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePaymentQR(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	p, err := s.db.GetPayment(paymentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil || p.ConfirmationURL == "" {
		writeError(w, http.StatusNotFound, "payment not found")
		return
	}

	png, err := payment.CheckoutQR(p.ConfirmationURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

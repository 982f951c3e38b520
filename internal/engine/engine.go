// Package engine implements the core capture, freeze, and resurfacing logic
// over the store. Handlers call one Engine method per user-visible action.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/icebox-app/icebox/internal/session"
	"github.com/icebox-app/icebox/internal/staging"
	"github.com/icebox-app/icebox/internal/store"
)

// voicePlaceholder stands in for untranscribed voice content.
const voicePlaceholder = "[voice note]"

// WeatherClient attaches ambient context to captures. Failures are silent:
// the capture simply goes without a weather snapshot.
type WeatherClient interface {
	Current(ctx context.Context, city string) (string, error)
}

// Transcriber converts a staged local audio file to text. The feature may be
// absent entirely; absence degrades to the placeholder content.
type Transcriber interface {
	Available() bool
	Transcribe(ctx context.Context, path string) (string, error)
}

// Engine orchestrates captures, dedup staging, and resurfacing queries.
type Engine struct {
	DB          *store.DB
	Staging     *staging.Cache
	Sessions    *session.FSM
	Weather     WeatherClient
	Transcriber Transcriber
}

// New wires an Engine. Staged voice files are deleted whenever their cache
// entry is dropped without being consumed.
func New(db *store.DB, weather WeatherClient, transcriber Transcriber) *Engine {
	cache := staging.New(staging.DefaultTTL)
	cache.OnEvict = func(e staging.Entry) {
		removeLocalFile(e.FilePath)
	}
	return &Engine{
		DB:          db,
		Staging:     cache,
		Sessions:    session.New(),
		Weather:     weather,
		Transcriber: transcriber,
	}
}

// Start launches background maintenance (staging janitor).
func (e *Engine) Start() {
	e.Staging.StartJanitor(time.Minute)
}

// Stop shuts down background goroutines.
func (e *Engine) Stop() {
	e.Staging.Stop()
}

// Duplicate describes the prior idea a new capture collided with.
type Duplicate struct {
	IdeaID    int64  `json:"idea_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// CaptureResult is the outcome of a capture attempt: either a stored idea or
// a staged duplicate candidate awaiting confirmation.
type CaptureResult struct {
	Idea      *store.Idea `json:"idea,omitempty"`
	Duplicate *Duplicate  `json:"duplicate,omitempty"`
}

// CaptureText stores a text idea, or stages it when the similarity gate
// finds a recent near-duplicate.
func (e *Engine) CaptureText(ctx context.Context, userID int64, text, source string) (*CaptureResult, error) {
	// A direct capture supersedes any pending input prompt.
	e.Sessions.Cancel(userID)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}
	user, err := e.checkCaptureAllowed(userID)
	if err != nil {
		return nil, err
	}
	weather := e.lookupWeather(ctx, user.City)

	similar, err := e.FindSimilar(userID, text)
	if err != nil {
		return nil, err
	}
	if similar != nil {
		e.Staging.Put(userID, staging.Entry{
			Kind:    store.TypeText,
			Content: text,
			Weather: weather,
		})
		return &CaptureResult{Duplicate: dup(similar)}, nil
	}

	idea, err := e.save(user, store.Idea{
		UserID: userID, Content: text, IdeaType: store.TypeText,
		Source: source, Weather: weather,
	})
	if err != nil {
		return nil, err
	}
	return &CaptureResult{Idea: idea}, nil
}

// CapturePhoto stores a photo idea by its opaque media reference; the caption
// runs through the duplicate gate.
func (e *Engine) CapturePhoto(ctx context.Context, userID int64, fileID, caption, source string) (*CaptureResult, error) {
	e.Sessions.Cancel(userID)
	user, err := e.checkCaptureAllowed(userID)
	if err != nil {
		return nil, err
	}
	weather := e.lookupWeather(ctx, user.City)

	similar, err := e.FindSimilar(userID, caption)
	if err != nil {
		return nil, err
	}
	if similar != nil {
		e.Staging.Put(userID, staging.Entry{
			Kind:    store.TypePhoto,
			Content: caption,
			FileID:  fileID,
			Weather: weather,
		})
		return &CaptureResult{Duplicate: dup(similar)}, nil
	}

	idea, err := e.save(user, store.Idea{
		UserID: userID, Content: caption, IdeaType: store.TypePhoto,
		FileID: fileID, Source: source, Weather: weather,
	})
	if err != nil {
		return nil, err
	}
	return &CaptureResult{Idea: idea}, nil
}

// CaptureVoice stores a voice idea. Premium users get the staged local file
// transcribed; the transcription then runs through the duplicate gate. The
// local copy is always removed once the capture settles, unless it is parked
// in staging for a possible "save as new".
func (e *Engine) CaptureVoice(ctx context.Context, userID int64, fileID, localPath, source string) (*CaptureResult, error) {
	e.Sessions.Cancel(userID)
	user, err := e.checkCaptureAllowed(userID)
	if err != nil {
		removeLocalFile(localPath)
		return nil, err
	}
	weather := e.lookupWeather(ctx, user.City)

	content := voicePlaceholder
	if user.IsPremium && e.Transcriber != nil && e.Transcriber.Available() {
		text, err := e.Transcriber.Transcribe(ctx, localPath)
		if err != nil {
			log.Printf("transcribe: %v", err)
		} else if text != "" {
			content = text
			similar, err := e.FindSimilar(userID, text)
			if err != nil {
				removeLocalFile(localPath)
				return nil, err
			}
			if similar != nil {
				e.Staging.Put(userID, staging.Entry{
					Kind:     store.TypeVoice,
					Content:  text,
					FileID:   fileID,
					FilePath: localPath,
					Weather:  weather,
				})
				return &CaptureResult{Duplicate: dup(similar)}, nil
			}
		}
	}

	idea, err := e.save(user, store.Idea{
		UserID: userID, Content: content, IdeaType: store.TypeVoice,
		FileID: fileID, Source: source, Weather: weather,
	})
	removeLocalFile(localPath)
	if err != nil {
		return nil, err
	}
	return &CaptureResult{Idea: idea}, nil
}

// ConfirmSave commits the user's staged duplicate candidate as a new idea.
// Returns nil when nothing is staged (expired or already consumed).
func (e *Engine) ConfirmSave(userID int64) (*store.Idea, error) {
	entry, ok := e.Staging.Consume(userID)
	if !ok {
		return nil, nil
	}
	defer removeLocalFile(entry.FilePath)

	user, err := e.DB.GetOrCreateUser(userID)
	if err != nil {
		return nil, err
	}
	return e.save(user, store.Idea{
		UserID: userID, Content: entry.Content, IdeaType: entry.Kind,
		FileID: entry.FileID, Weather: entry.Weather,
	})
}

// Open returns the full idea and bumps its open counter. Nil for unknown ids
// and for ideas the user does not own.
func (e *Engine) Open(ideaID, userID int64) (*store.Idea, error) {
	return e.DB.OpenIdea(ideaID, userID)
}

// Delete removes an idea and records the deletion in the audit ledger.
func (e *Engine) Delete(ideaID, userID int64) (bool, error) {
	return e.DB.DeleteIdea(ideaID, userID)
}

// RefreezeFromThaw extends an idea by the fixed thaw-view window (30 days).
func (e *Engine) RefreezeFromThaw(ideaID, userID int64) error {
	until := time.Now().Add(RefreezeThawDays * 24 * time.Hour).UnixMilli()
	return e.DB.Refreeze(ideaID, userID, until)
}

// RefreezeFromDump extends an idea by the fixed cleanup-view window (90 days).
func (e *Engine) RefreezeFromDump(ideaID, userID int64) error {
	until := time.Now().Add(RefreezeDumpDays * 24 * time.Hour).UnixMilli()
	return e.DB.Refreeze(ideaID, userID, until)
}

// MarkValuable flags an idea as worth keeping. Owner-scoped like the other
// per-note mutations.
func (e *Engine) MarkValuable(ideaID, userID int64) error {
	return e.DB.MarkValuable(ideaID, userID)
}

// Thawed lists the user's currently visible ideas, newest first.
func (e *Engine) Thawed(userID int64) ([]store.Idea, error) {
	return e.DB.Thawed(userID)
}

// OldForCleanup lists ideas older than 30 days for the bulk-cleanup view,
// oldest first, capped to a preview.
func (e *Engine) OldForCleanup(userID int64) ([]store.Idea, error) {
	cutoff := time.Now().Add(-OldCutoffDays * 24 * time.Hour).UnixMilli()
	return e.DB.Old(userID, cutoff, OldPreviewCap)
}

// Echo resurfaces one random idea older than 30 days, or nil when none exist.
func (e *Engine) Echo(userID int64) (*store.Idea, error) {
	cutoff := time.Now().Add(-OldCutoffDays * 24 * time.Hour).UnixMilli()
	return e.DB.RandomOld(userID, cutoff)
}

// UserStats is the stats block with the derived survival percentage.
type UserStats struct {
	Total       int `json:"total"`
	Alive       int `json:"alive"`
	Deleted     int `json:"deleted"`
	Valuable    int `json:"valuable"`
	SurvivalPct int `json:"survival_pct"`
}

// Stats aggregates a user's capture history.
func (e *Engine) Stats(userID int64) (UserStats, error) {
	s, err := e.DB.UserStats(userID)
	if err != nil {
		return UserStats{}, err
	}
	total := s.Total
	if total < 1 {
		total = 1
	}
	return UserStats{
		Total:       s.Total,
		Alive:       s.Alive,
		Deleted:     s.Deleted,
		Valuable:    s.Valuable,
		SurvivalPct: s.Alive * 100 / total,
	}, nil
}

// SetFreezePreference updates the user's freeze duration after the ceiling
// check. Rejected selections leave the preference unchanged.
func (e *Engine) SetFreezePreference(userID int64, days int) error {
	user, err := e.DB.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	if err := ValidateFreezeDays(days, user.IsPremium); err != nil {
		return err
	}
	return e.DB.SetFreezeDays(userID, days)
}

// SetCity validates the city against the weather service before storing it,
// and returns the current conditions there.
func (e *Engine) SetCity(ctx context.Context, userID int64, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is empty")
	}
	if e.Weather == nil {
		return "", fmt.Errorf("weather service not configured")
	}
	conditions, err := e.Weather.Current(ctx, city)
	if err != nil || conditions == "" {
		return "", fmt.Errorf("city %q not recognized", city)
	}
	if err := e.DB.SetCity(userID, city); err != nil {
		return "", err
	}
	return conditions, nil
}

// Export renders the user's ideas into a markdown document. Premium only.
func (e *Engine) Export(userID int64, valuableOnly bool) (string, error) {
	user, err := e.DB.GetOrCreateUser(userID)
	if err != nil {
		return "", err
	}
	if !user.IsPremium {
		return "", ErrNeedsPremium
	}

	ideas, err := e.DB.ForExport(userID, valuableOnly)
	if err != nil {
		return "", err
	}
	title := "IceBox — All ideas"
	if valuableOnly {
		title = "IceBox — Valuable ideas"
	}
	return ExportMarkdown(ideas, title, time.Now()), nil
}

// checkCaptureAllowed resolves the user and enforces the free-tier lifetime
// idea limit.
func (e *Engine) checkCaptureAllowed(userID int64) (*store.User, error) {
	user, err := e.DB.GetOrCreateUser(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsPremium && user.IdeasCount >= FreeIdeaLimit {
		return nil, ErrNeedsPremium
	}
	return user, nil
}

// save computes the freeze window from the user's preference and persists.
func (e *Engine) save(user *store.User, idea store.Idea) (*store.Idea, error) {
	idea.FrozenUntil = FreezeUntil(time.Now(), user.FreezeDays)
	if err := e.DB.CreateIdea(&idea); err != nil {
		return nil, err
	}
	return &idea, nil
}

// lookupWeather snapshots current conditions for the user's city. Failures
// are logged and the capture proceeds without the field.
func (e *Engine) lookupWeather(ctx context.Context, city string) string {
	if city == "" || e.Weather == nil {
		return ""
	}
	conditions, err := e.Weather.Current(ctx, city)
	if err != nil {
		log.Printf("weather: %v", err)
		return ""
	}
	return conditions
}

func dup(idea *store.Idea) *Duplicate {
	return &Duplicate{IdeaID: idea.ID, Content: idea.Content, CreatedAt: idea.CreatedAt}
}

func removeLocalFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("remove staged file %s: %v", path, err)
	}
}

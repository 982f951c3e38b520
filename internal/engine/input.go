package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/icebox-app/icebox/internal/session"
)

// InputResult is the outcome of routing one free-form input through the
// user's session mode. Exactly one of the payload fields is set, per Kind.
type InputResult struct {
	Kind       string         `json:"kind"` // captured, search, freeze, city
	Capture    *CaptureResult `json:"capture,omitempty"`
	Matches    []SearchMatch  `json:"matches,omitempty"`
	Days       int            `json:"days,omitempty"`
	City       string         `json:"city,omitempty"`
	Conditions string         `json:"conditions,omitempty"`
}

// PromptFor arms the user's next free-form input for the given wait mode.
func (e *Engine) PromptFor(userID int64, mode session.Mode) {
	e.Sessions.Await(userID, mode)
}

// HandleInput routes one free-form input through the session FSM. A pending
// wait consumes the input for its prompt; otherwise the text is captured as
// a new idea. The wait is cleared either way.
func (e *Engine) HandleInput(ctx context.Context, userID int64, text string) (*InputResult, error) {
	switch e.Sessions.Resolve(userID) {
	case session.AwaitingSearchQuery:
		matches, err := e.Search(userID, text)
		if err != nil {
			return nil, err
		}
		return &InputResult{Kind: "search", Matches: matches}, nil

	case session.AwaitingCustomDays:
		days, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return nil, ErrInvalidFreezeDays
		}
		if err := e.SetFreezePreference(userID, days); err != nil {
			return nil, err
		}
		return &InputResult{Kind: "freeze", Days: days}, nil

	case session.AwaitingCity:
		conditions, err := e.SetCity(ctx, userID, text)
		if err != nil {
			return nil, err
		}
		return &InputResult{Kind: "city", City: strings.TrimSpace(text), Conditions: conditions}, nil

	default:
		result, err := e.CaptureText(ctx, userID, text, "input")
		if err != nil {
			return nil, err
		}
		return &InputResult{Kind: "captured", Capture: result}, nil
	}
}

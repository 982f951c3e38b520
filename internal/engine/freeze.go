package engine

import (
	"errors"
	"time"
)

// Freeze policy constants.
const (
	// IndefiniteDays is the sentinel freeze preference meaning "never thaw".
	IndefiniteDays = 999
	// indefiniteHorizonDays maps the sentinel to an effectively unreachable
	// unlock date, roughly 100 years out.
	indefiniteHorizonDays = 36500

	// NonPremiumMaxDays is the freeze ceiling without a subscription.
	NonPremiumMaxDays = 30
	// MaxCustomDays bounds the custom freeze input.
	MaxCustomDays = 365

	// RefreezeThawDays is the fixed extension from the thaw view.
	RefreezeThawDays = 30
	// RefreezeDumpDays is the fixed extension from the bulk-cleanup view.
	RefreezeDumpDays = 90

	// OldCutoffDays is the age at which ideas enter the bulk-cleanup view.
	OldCutoffDays = 30
	// OldPreviewCap bounds the bulk-cleanup preview.
	OldPreviewCap = 15

	// FreeIdeaLimit caps lifetime captures without a subscription.
	FreeIdeaLimit = 50
)

var (
	// ErrNeedsPremium gates entitled features: long freezes, transcription,
	// export, captures past the free limit.
	ErrNeedsPremium = errors.New("feature requires premium")
	// ErrInvalidFreezeDays rejects a custom freeze outside 1..365.
	ErrInvalidFreezeDays = errors.New("freeze days must be between 1 and 365")
	// ErrEmptyContent rejects captures with nothing to store.
	ErrEmptyContent = errors.New("content is empty")
	// ErrEmptyQuery rejects blank searches.
	ErrEmptyQuery = errors.New("search query is empty")
)

// FreezeUntil computes the unlock instant for a capture made now under the
// given preference. The indefinite sentinel maps to the 100-year horizon.
func FreezeUntil(now time.Time, freezeDays int) int64 {
	days := freezeDays
	if days >= IndefiniteDays {
		days = indefiniteHorizonDays
	}
	return now.Add(time.Duration(days) * 24 * time.Hour).UnixMilli()
}

// ValidateFreezeDays enforces the ceiling policy: selections above 30 days
// (90, indefinite, or custom) require premium and are rejected outright,
// never clamped.
func ValidateFreezeDays(days int, premium bool) error {
	if days < 1 || (days > MaxCustomDays && days != IndefiniteDays) {
		return ErrInvalidFreezeDays
	}
	if days > NonPremiumMaxDays && !premium {
		return ErrNeedsPremium
	}
	return nil
}

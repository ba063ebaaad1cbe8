package exchange

import (
	"time"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// AlwaysOpen is the calendar of a 24/7 crypto venue.
type AlwaysOpen struct{}

func (AlwaysOpen) Current(time.Time) domain.WorkMode { return domain.WorkModeFull }

// SessionHours models a venue with a daily trading session in UTC:
// pre-market for one hour before the open, post-market for one hour after
// the close, closed otherwise. Weekends are fully closed.
type SessionHours struct {
	OpenHour  int
	CloseHour int
}

func (h SessionHours) Current(now time.Time) domain.WorkMode {
	now = now.UTC()
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return domain.WorkModeClosed
	}

	hour := now.Hour()
	switch {
	case hour >= h.OpenHour && hour < h.CloseHour:
		return domain.WorkModeFull
	case hour == h.OpenHour-1:
		return domain.WorkModePreMarket
	case hour == h.CloseHour:
		return domain.WorkModePostMarket
	default:
		return domain.WorkModeClosed
	}
}

// StaticRegime is a fixed market-regime provider; the regime is operator
// supplied, not derived by the core.
type StaticRegime struct {
	Regime domain.MarketRegime
}

func (s StaticRegime) Current() domain.MarketRegime {
	if s.Regime == "" {
		return domain.RegimeNormal
	}
	return s.Regime
}

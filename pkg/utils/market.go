package utils

import (
	"time"
)

// TokyoLocation is the reference timezone for FX session windows.
var TokyoLocation *time.Location

func init() {
	var err error
	TokyoLocation, err = time.LoadLocation("Asia/Tokyo")
	if err != nil {
		// Fallback to UTC+9
		TokyoLocation = time.FixedZone("JST", 9*60*60)
	}
}

// Session names a major FX trading session.
type Session string

const (
	SessionTokyo   Session = "TOKYO"
	SessionLondon  Session = "LONDON"
	SessionNewYork Session = "NEW_YORK"
	SessionOff     Session = "OFF_HOURS"
)

// SessionAt returns the dominant trading session for the given instant.
// Windows are evaluated in JST: Tokyo 09-15, London 16-23, New York
// 00-06 (22-06 JST with the 22-23 overlap attributed to London).
func SessionAt(t time.Time) Session {
	hour := t.In(TokyoLocation).Hour()

	switch {
	case hour >= 9 && hour <= 15:
		return SessionTokyo
	case hour >= 16 && hour <= 23:
		return SessionLondon
	case hour <= 6:
		return SessionNewYork
	default:
		return SessionOff
	}
}

// SessionLiquidityScore grades session liquidity 0-5 for the given
// instant. New York hours carry the deepest FX liquidity, London next,
// Tokyo the thinnest of the three majors.
func SessionLiquidityScore(t time.Time) int {
	switch SessionAt(t) {
	case SessionNewYork:
		return 5
	case SessionLondon:
		return 3
	case SessionTokyo:
		return 2
	default:
		return 0
	}
}

// IsWeekend reports whether the instant falls on an FX weekend in JST.
func IsWeekend(t time.Time) bool {
	day := t.In(TokyoLocation).Weekday()
	return day == time.Saturday || day == time.Sunday
}

// Package quota computes the rolling weekly window against which meal
// swipes are counted. The week does not reset on Sunday: it resets at
// midnight on a fixed weekday (Thursday for the dining plan this was
// built for).
package quota

import "time"

// DefaultResetDay is the weekday on which the meal plan replenishes.
const DefaultResetDay = time.Thursday

// WeekStart returns midnight of the most recent occurrence of reset on
// or before now, in now's location. When now already falls on the
// reset weekday the result is midnight of that same day.
func WeekStart(now time.Time, reset time.Weekday) time.Time {
	daysBack := (int(now.Weekday()) - int(reset) + 7) % 7
	d := now.AddDate(0, 0, -daysBack)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// WeekEnd returns the exclusive upper bound of the window that begins
// at start.
func WeekEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, 7)
}

// InWindow reports whether t falls inside [start, WeekEnd(start)).
func InWindow(t, start time.Time) bool {
	return !t.Before(start) && t.Before(WeekEnd(start))
}

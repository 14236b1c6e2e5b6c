package scheduler

import (
	"fmt"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/robfig/cron/v3"
)

// quietWindow is the daily do-not-disturb window in its own timezone
type quietWindow struct {
	enabled  bool
	startMin int
	endMin   int
	loc      *time.Location
}

func newQuietWindow(cfg models.DoNotDisturbConfig) quietWindow {
	w := quietWindow{enabled: cfg.Enabled, loc: time.UTC}
	if !cfg.Enabled {
		return w
	}
	sh, sm, err1 := models.ParseClockTime(cfg.StartTime)
	eh, em, err2 := models.ParseClockTime(cfg.EndTime)
	if err1 != nil || err2 != nil {
		w.enabled = false
		return w
	}
	if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
		w.loc = loc
	}
	w.startMin = sh*60 + sm
	w.endMin = eh*60 + em
	if w.startMin == w.endMin {
		w.enabled = false
	}
	return w
}

// contains reports whether t falls inside the window. Windows may wrap past midnight.
func (w quietWindow) contains(t time.Time) bool {
	if !w.enabled {
		return false
	}
	local := t.In(w.loc)
	m := local.Hour()*60 + local.Minute()
	if w.startMin < w.endMin {
		return m >= w.startMin && m < w.endMin
	}
	return m >= w.startMin || m < w.endMin
}

// endAfter returns the first window end strictly after t
func (w quietWindow) endAfter(t time.Time) time.Time {
	local := t.In(w.loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), w.endMin/60, w.endMin%60, 0, 0, w.loc)
	if !end.After(local) {
		end = end.AddDate(0, 0, 1)
	}
	return end.UTC()
}

// pushOut moves t to the end of the window when it falls inside it
func (w quietWindow) pushOut(t time.Time) time.Time {
	if w.contains(t) {
		return w.endAfter(t)
	}
	return t
}

// midnightSchedule fires at 00:00 in loc
func midnightSchedule(loc *time.Location) (cron.Schedule, error) {
	return cron.ParseStandard(fmt.Sprintf("CRON_TZ=%s 0 0 * * *", loc.String()))
}

// nextMidnight returns the first local midnight strictly after t
func nextMidnight(sched cron.Schedule, loc *time.Location, t time.Time) time.Time {
	if sched != nil {
		if next := sched.Next(t); !next.IsZero() {
			return next.UTC()
		}
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc).UTC()
}

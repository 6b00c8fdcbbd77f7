package collector

import (
	"time"

	"github.com/nerrad567/sigenflux/internal/infrastructure/config"
)

// schedule decides dataset due-ness from the wall clock alone.
//
// Decisions are stateless on purpose: the collector may run as a
// short-lived process under cron, so "last run" bookkeeping in memory
// would not survive between ticks. As long as the caller ticks once per
// minute, clock-derived triggers fire exactly once per period.
type schedule struct {
	cfg config.ScheduleConfig
	loc *time.Location
}

// weatherDue reports whether the weather datasets run this tick.
func (s schedule) weatherDue(now time.Time) bool {
	if s.cfg.WeatherMinuteModulo <= 0 {
		return false
	}
	return now.In(s.loc).Minute()%s.cfg.WeatherMinuteModulo == s.cfg.WeatherTriggerMinute
}

// statsDue reports whether the consumption statistics datasets run this
// tick.
func (s schedule) statsDue(now time.Time) bool {
	if s.cfg.StatsHourModulo <= 0 {
		return false
	}
	local := now.In(s.loc)
	return local.Hour()%s.cfg.StatsHourModulo == 0 && local.Minute() == s.cfg.StatsTriggerMinute
}

// solarDue reports whether the sunrise/sunset dataset runs this tick.
func (s schedule) solarDue(now time.Time) bool {
	local := now.In(s.loc)
	return local.Hour() == s.cfg.SolarTriggerHour && local.Minute() == s.cfg.SolarTriggerMinute
}

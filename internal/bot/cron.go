package bot

import (
	"time"

	"github.com/robfig/cron/v3"
)

// reindexParser accepts standard 5-field cron expressions
// (minute, hour, dom, month, dow), no seconds field.
var reindexParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration reports how long until expr next fires. ok is false when
// the expression does not parse or the schedule never fires again.
func nextCronDuration(expr string) (time.Duration, bool) {
	sched, err := reindexParser.Parse(expr)
	if err != nil {
		return 0, false
	}
	d := time.Until(sched.Next(time.Now()))
	if d <= 0 {
		return 0, false
	}
	return d, true
}

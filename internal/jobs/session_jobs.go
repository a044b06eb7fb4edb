package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Spok95/school-erp/internal/db"
)

const (
	SessionRolloverJob  = "session-rollover"
	sessionRolloverCron = "0 7 * * *"
)

// sessionRollover tells admins once per process when a new academic session starts.
type sessionRollover struct {
	admins       AdminNotifier
	now          func() time.Time
	lastNotified atomic.Int64
}

// ScheduleSessionRollover checks every morning whether today opens a new session.
func ScheduleSessionRollover(r *Runner, admins AdminNotifier) error {
	j := &sessionRollover{admins: admins, now: func() time.Time { return time.Now().In(r.loc) }}
	return r.Cron(sessionRolloverCron, SessionRolloverJob, j.run)
}

func (j *sessionRollover) run(ctx context.Context) error {
	today := j.now()
	if today.Month() != db.SessionStartMonth || today.Day() != 1 {
		return nil
	}
	year := int64(db.SessionStartYear(today))
	if j.lastNotified.Swap(year) == year {
		return nil
	}
	text := fmt.Sprintf(
		"Academic session %s starts today.\n"+
			"Create and activate it for each school so new results and fee records land in it.",
		db.SessionLabel(int(year)))
	return j.admins.NotifyAdmins(ctx, text)
}

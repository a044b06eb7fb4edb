package jobs

import (
	"context"
	"fmt"
	"time"
)

const (
	OverdueJob   = "fees-overdue"
	RemindersJob = "fees-reminders"
)

// FeeLedger is the part of the fee service the background jobs drive.
type FeeLedger interface {
	MarkOverdue(ctx context.Context) (int64, error)
	SendReminders(ctx context.Context) (int, error)
}

// AdminNotifier receives short operational summaries.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string) error
}

// ScheduleFeeJobs registers overdue marking on a fixed interval and reminders on a cron
// schedule.
func ScheduleFeeJobs(r *Runner, fees FeeLedger, admins AdminNotifier, overdueEvery time.Duration, reminderCron string) error {
	r.Every(overdueEvery, OverdueJob, func(ctx context.Context) error {
		return markOverdue(ctx, fees, admins)
	})
	return r.Cron(reminderCron, RemindersJob, func(ctx context.Context) error {
		return sendReminders(ctx, fees, admins)
	})
}

func markOverdue(ctx context.Context, fees FeeLedger, admins AdminNotifier) error {
	n, err := fees.MarkOverdue(ctx)
	if err != nil {
		return err
	}
	if n > 0 && admins != nil {
		_ = admins.NotifyAdmins(ctx, fmt.Sprintf("%d fee records became overdue.", n))
	}
	return nil
}

func sendReminders(ctx context.Context, fees FeeLedger, admins AdminNotifier) error {
	n, err := fees.SendReminders(ctx)
	if err != nil {
		return err
	}
	if admins != nil {
		_ = admins.NotifyAdmins(ctx, fmt.Sprintf("Fee reminders queued for %d students.", n))
	}
	return nil
}

package jobs

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeLedger struct {
	overdue   int64
	reminded  int
	err       error
	overdueN  atomic.Int32
	remindedN atomic.Int32
}

func (f *fakeLedger) MarkOverdue(context.Context) (int64, error) {
	f.overdueN.Add(1)
	return f.overdue, f.err
}

func (f *fakeLedger) SendReminders(context.Context) (int, error) {
	f.remindedN.Add(1)
	return f.reminded, f.err
}

type fakeAdmins struct{ texts []string }

func (a *fakeAdmins) NotifyAdmins(_ context.Context, text string) error {
	a.texts = append(a.texts, text)
	return nil
}

func TestMarkOverdueNotifiesOnlyWhenSomethingChanged(t *testing.T) {
	admins := &fakeAdmins{}
	if err := markOverdue(context.Background(), &fakeLedger{}, admins); err != nil {
		t.Fatal(err)
	}
	if len(admins.texts) != 0 {
		t.Fatalf("unexpected notice: %v", admins.texts)
	}
	if err := markOverdue(context.Background(), &fakeLedger{overdue: 3}, admins); err != nil {
		t.Fatal(err)
	}
	if len(admins.texts) != 1 || !strings.HasPrefix(admins.texts[0], "3 fee records") {
		t.Fatalf("notices = %v", admins.texts)
	}
}

func TestSendRemindersPropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	if err := sendReminders(context.Background(), &fakeLedger{err: boom}, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunnerEveryRecoversPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(ctx, zap.NewNop(), time.UTC)

	var calls atomic.Int32
	r.Every(10*time.Millisecond, "panicky", func(context.Context) error {
		calls.Add(1)
		panic("boom")
	})
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() < 2 {
		t.Fatal("job did not keep running after a panic")
	}
}

func TestCronRejectsBadSpec(t *testing.T) {
	r := New(context.Background(), zap.NewNop(), time.UTC)
	if err := r.Cron("every monday", "bad", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected parse error")
	}
	if err := ScheduleFeeJobs(r, &fakeLedger{}, nil, time.Hour, "0 8 * * 1"); err != nil {
		t.Fatal(err)
	}
}

func TestSessionRolloverNotifiesOncePerYear(t *testing.T) {
	admins := &fakeAdmins{}
	day := time.Date(2025, time.September, 1, 7, 0, 0, 0, time.UTC)
	j := &sessionRollover{admins: admins, now: func() time.Time { return day }}

	for i := 0; i < 2; i++ {
		if err := j.run(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(admins.texts) != 1 || !strings.Contains(admins.texts[0], "2025/2026") {
		t.Fatalf("notices = %v", admins.texts)
	}

	day = time.Date(2025, time.September, 2, 7, 0, 0, 0, time.UTC)
	if err := j.run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(admins.texts) != 1 {
		t.Fatalf("notified outside the first day: %v", admins.texts)
	}
}

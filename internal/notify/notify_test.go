package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/models"
)

type recorder struct {
	mu        sync.Mutex
	published []int64
	reminded  []int64
	block     chan struct{}
	fail      bool
}

func (r *recorder) ResultPublished(_ context.Context, id int64) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, id)
	if r.fail {
		return errors.New("send failed")
	}
	return nil
}

func (r *recorder) FeeReminder(_ context.Context, studentID int64, _ []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminded = append(r.reminded, studentID)
	return nil
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, zap.NewNop(), 2, 16)
	for i := int64(1); i <= 5; i++ {
		if !d.ResultPublished(i) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	d.FeeReminder(42, []int64{7})
	d.Close()

	if len(rec.published) != 5 || len(rec.reminded) != 1 {
		t.Fatalf("delivered %d results, %d reminders", len(rec.published), len(rec.reminded))
	}
	if d.ResultPublished(6) {
		t.Fatal("enqueue after close must be rejected")
	}
	d.Close()
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	d := NewDispatcher(rec, zap.NewNop(), 1, 1)

	// The worker takes the first event and blocks; the second fills the queue.
	d.ResultPublished(1)
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !d.ResultPublished(2) {
		t.Fatal("second event should fit in the queue")
	}

	start := time.Now()
	if d.ResultPublished(3) {
		t.Fatal("third event should be dropped")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("enqueue blocked")
	}
	close(rec.block)
	d.Close()
	if len(rec.published) != 2 {
		t.Fatalf("delivered %v", rec.published)
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	rec := &recorder{fail: true}
	d := NewDispatcher(rec, zap.NewNop(), 1, 4)
	d.ResultPublished(9)
	d.Close()
	if len(rec.published) != 1 {
		t.Fatal("failed delivery not attempted")
	}
}

type sentMsg struct {
	chat int64
	text string
}

type fakeSender struct {
	sent []sentMsg
	err  error
}

func (f *fakeSender) SendText(chatID int64, text string) error {
	f.sent = append(f.sent, sentMsg{chatID, text})
	return f.err
}

func TestSendAllContinuesAfterError(t *testing.T) {
	s := &fakeSender{err: errors.New("502")}
	tg := NewTelegram(s, nil, zap.NewNop(), []int64{1, 2})
	if err := tg.NotifyAdmins(context.Background(), "overdue: 3"); err == nil {
		t.Fatal("expected first error to be returned")
	}
	if len(s.sent) != 2 {
		t.Fatalf("sent to %d chats, want 2", len(s.sent))
	}
}

func TestMessageTexts(t *testing.T) {
	pos := 2
	parent := int64(100)
	txt := resultText(db.PublishedSummary{
		Recipient:    db.Recipient{StudentName: "Ada Obi", ParentChatID: &parent},
		TermName:     "First Term",
		AverageScore: decimal.RequireFromString("71.5"),
		Position:     &pos,
		ClassSize:    30,
	})
	if !strings.Contains(txt, "Average: 71.50") || !strings.Contains(txt, "Position: 2 of 30") {
		t.Fatalf("result text = %q", txt)
	}

	rows := []models.FeeRecordRow{
		{FeeRecord: models.FeeRecord{AmountDue: decimal.NewFromInt(50000), AmountPaid: decimal.NewFromInt(20000),
			DueDate: time.Date(2024, 10, 9, 0, 0, 0, 0, time.UTC)}, FeeName: "Tuition", TermName: "First Term"},
		{FeeRecord: models.FeeRecord{AmountDue: decimal.NewFromInt(5000), AmountPaid: decimal.Zero,
			DueDate: time.Date(2024, 10, 9, 0, 0, 0, 0, time.UTC)}, FeeName: "Sports", TermName: "First Term"},
	}
	rt := reminderText("Ada Obi", rows)
	if !strings.Contains(rt, "Tuition (First Term): 30000.00 outstanding, due 09 Oct 2024") {
		t.Fatalf("reminder text = %q", rt)
	}
	if !strings.Contains(rt, "Total outstanding: 35000.00") {
		t.Fatalf("reminder total missing: %q", rt)
	}
}

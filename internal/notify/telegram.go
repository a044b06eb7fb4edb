package notify

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

// TextSender is satisfied by *tg.Client.
type TextSender interface {
	SendText(chatID int64, text string) error
}

// Telegram messages the parent and the student's own account. Students with no linked
// chat are skipped silently.
type Telegram struct {
	send     TextSender
	database *sql.DB
	log      *zap.Logger
	adminIDs []int64
}

func NewTelegram(send TextSender, database *sql.DB, log *zap.Logger, adminIDs []int64) *Telegram {
	return &Telegram{send: send, database: database, log: log, adminIDs: adminIDs}
}

func (t *Telegram) ResultPublished(ctx context.Context, summaryID int64) error {
	s, err := db.GetPublishedSummary(ctx, t.database, summaryID)
	if err != nil {
		return err
	}
	return t.sendAll(s.ChatIDs(), resultText(*s))
}

func (t *Telegram) FeeReminder(ctx context.Context, studentID int64, recordIDs []int64) error {
	r, err := db.GetStudentRecipient(ctx, t.database, studentID)
	if err != nil {
		return err
	}
	chats := r.ChatIDs()
	if len(chats) == 0 {
		t.log.Debug("no chat for fee reminder", zap.Int64("student_id", studentID))
		return nil
	}
	rows, err := db.ListFeeRecords(ctx, t.database, scope.System(), db.FeeFilter{StudentID: &studentID})
	if err != nil {
		return err
	}
	want := make(map[int64]bool, len(recordIDs))
	for _, id := range recordIDs {
		want[id] = true
	}
	var picked []models.FeeRecordRow
	for _, row := range rows {
		if want[row.ID] {
			picked = append(picked, row)
		}
	}
	if len(picked) == 0 {
		return nil
	}
	return t.sendAll(chats, reminderText(r.StudentName, picked))
}

// NotifyAdmins sends an operational message to the configured admin chats.
func (t *Telegram) NotifyAdmins(_ context.Context, text string) error {
	return t.sendAll(t.adminIDs, text)
}

func (t *Telegram) sendAll(chats []int64, text string) error {
	var firstErr error
	for _, chatID := range chats {
		if err := t.send.SendText(chatID, text); err != nil {
			t.log.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func resultText(s db.PublishedSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s results for %s are now available.\n", s.TermName, s.StudentName)
	fmt.Fprintf(&b, "Average: %s", s.AverageScore.StringFixed(2))
	if s.Position != nil {
		fmt.Fprintf(&b, "\nPosition: %d of %d", *s.Position, s.ClassSize)
	}
	return b.String()
}

func reminderText(student string, rows []models.FeeRecordRow) string {
	var b strings.Builder
	total := decimal.Zero
	fmt.Fprintf(&b, "Fee reminder for %s:\n", student)
	for _, r := range rows {
		bal := r.Balance()
		total = total.Add(bal)
		fmt.Fprintf(&b, "• %s (%s): %s outstanding, due %s\n", r.FeeName, r.TermName, bal.StringFixed(2), r.DueDate.Format("02 Jan 2006"))
	}
	fmt.Fprintf(&b, "Total outstanding: %s", total.StringFixed(2))
	return b.String()
}

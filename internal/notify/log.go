package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier stands in when no bot token is configured.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) ResultPublished(_ context.Context, summaryID int64) error {
	n.Log.Info("result published", zap.Int64("summary_id", summaryID))
	return nil
}

func (n LogNotifier) FeeReminder(_ context.Context, studentID int64, recordIDs []int64) error {
	n.Log.Info("fee reminder", zap.Int64("student_id", studentID), zap.Int64s("fee_record_ids", recordIDs))
	return nil
}

func (n LogNotifier) NotifyAdmins(_ context.Context, text string) error {
	n.Log.Info("admin notice", zap.String("text", text))
	return nil
}

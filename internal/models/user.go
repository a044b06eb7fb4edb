package models

type Role string

const (
	SuperAdmin    Role = "super_admin"
	SchoolOwner   Role = "school_owner"
	OfficeAccount Role = "office_account"
	Teacher       Role = "teacher"
	Student       Role = "student"
	Parent        Role = "parent"
)

func (r Role) Valid() bool {
	switch r {
	case SuperAdmin, SchoolOwner, OfficeAccount, Teacher, Student, Parent:
		return true
	}
	return false
}

type User struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Role       Role   `db:"role" json:"role"`
	SchoolID   *int64 `db:"school_id" json:"school_id,omitempty"`
	TelegramID *int64 `db:"telegram_id" json:"-"`
	IsActive   bool   `db:"is_active" json:"is_active"`
}

type School struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	OwnerID int64  `db:"owner_id" json:"owner_id"`
}

// StudentProfile is the enrolment row that results and fees hang off.
type StudentProfile struct {
	ID          int64  `db:"id" json:"id"`
	SchoolID    int64  `db:"school_id" json:"school_id"`
	UserID      *int64 `db:"user_id" json:"user_id,omitempty"`
	ParentID    *int64 `db:"parent_id" json:"parent_id,omitempty"`
	ClassID     *int64 `db:"class_id" json:"class_id,omitempty"`
	AdmissionNo string `db:"admission_no" json:"admission_no"`
	FullName    string `db:"full_name" json:"full_name"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}

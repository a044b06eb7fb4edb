//go:build testutil
// +build testutil

package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

// Fixture is one school with an active session and term, a class and its students.
type Fixture struct {
	SchoolID  int64
	OwnerID   int64
	OfficeID  int64
	TeacherID int64
	SessionID int64
	TermID    int64
	ClassID   int64
	SubjectID int64
	Students  []int64
}

func (f Fixture) Office() scope.Scope {
	id := f.SchoolID
	return scope.Resolve(scope.Principal{UserID: f.OfficeID, Role: models.OfficeAccount, SchoolID: &id})
}

func (f Fixture) Teacher() scope.Scope {
	id := f.SchoolID
	return scope.Resolve(scope.Principal{UserID: f.TeacherID, Role: models.Teacher, SchoolID: &id})
}

// Seed creates a fixture with n students. Names are suffixed with tag so several
// fixtures can share one database.
func Seed(t testing.TB, database *sql.DB, tag string, n int) Fixture {
	t.Helper()
	ctx := context.Background()
	var f Fixture
	must := func(id int64, err error) int64 {
		t.Helper()
		if err != nil {
			t.Fatalf("seed %s: %v", tag, err)
		}
		return id
	}

	f.OwnerID = must(db.CreateUser(ctx, database, models.User{Name: "Owner " + tag, Role: models.SchoolOwner, IsActive: true}))
	f.SchoolID = must(db.CreateSchool(ctx, database, models.School{Name: "School " + tag, OwnerID: f.OwnerID}))
	f.OfficeID = must(db.CreateUser(ctx, database, models.User{Name: "Office " + tag, Role: models.OfficeAccount, SchoolID: &f.SchoolID, IsActive: true}))
	f.TeacherID = must(db.CreateUser(ctx, database, models.User{Name: "Teacher " + tag, Role: models.Teacher, SchoolID: &f.SchoolID, IsActive: true}))

	start := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	f.SessionID = must(db.CreateSession(ctx, database, models.AcademicSession{
		SchoolID: f.SchoolID, Name: "2024/2025", StartDate: start, EndDate: start.AddDate(1, 0, -1),
	}))
	if err := db.ActivateSession(ctx, database, f.SchoolID, f.SessionID); err != nil {
		t.Fatal(err)
	}
	f.TermID = must(db.CreateTerm(ctx, database, models.Term{
		SessionID: f.SessionID, Name: "First Term", StartDate: start, EndDate: start.AddDate(0, 3, 0),
	}))
	if err := db.ActivateTerm(ctx, database, f.SessionID, f.TermID); err != nil {
		t.Fatal(err)
	}
	f.ClassID = must(db.CreateClass(ctx, database, models.Class{SchoolID: f.SchoolID, SessionID: f.SessionID, Name: "JSS1"}))
	f.SubjectID = must(db.CreateSubject(ctx, database, models.Subject{SchoolID: f.SchoolID, Name: "Mathematics", Code: "MTH"}))

	for i := 0; i < n; i++ {
		f.Students = append(f.Students, must(db.CreateStudent(ctx, database, models.StudentProfile{
			SchoolID:    f.SchoolID,
			ClassID:     &f.ClassID,
			AdmissionNo: fmt.Sprintf("%s-%03d", tag, i+1),
			FullName:    fmt.Sprintf("Student %d %s", i+1, tag),
			IsActive:    true,
		})))
	}
	return f
}

// FeeStructure adds an active termly structure for the fixture's class.
func (f Fixture) FeeStructure(t testing.TB, database *sql.DB, name, amount string) int64 {
	t.Helper()
	id, err := db.CreateFeeStructure(context.Background(), database, models.FeeStructure{
		SchoolID:    f.SchoolID,
		SessionID:   f.SessionID,
		ClassID:     &f.ClassID,
		Name:        name,
		Amount:      decimal.RequireFromString(amount),
		Frequency:   models.Termly,
		IsMandatory: true,
		IsActive:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// Package scope turns an authenticated principal into the set of students and schools
// it may see. It is resolved once per request; nothing below the HTTP layer looks at
// roles again.
package scope

import (
	"fmt"

	"github.com/Spok95/school-erp/internal/models"
)

type Principal struct {
	UserID   int64
	Role     models.Role
	SchoolID *int64
}

type kind uint8

const (
	none kind = iota
	global
	owner
	school
	self
	guardian
)

type Scope struct {
	kind     kind
	role     models.Role
	userID   int64
	schoolID int64
}

// Resolve maps a principal to its scope. Unknown roles and staff without a school
// resolve to an empty scope that matches nothing.
func Resolve(p Principal) Scope {
	s := Scope{role: p.Role, userID: p.UserID}
	switch p.Role {
	case models.SuperAdmin:
		s.kind = global
	case models.SchoolOwner:
		s.kind = owner
	case models.OfficeAccount, models.Teacher:
		if p.SchoolID == nil {
			return Scope{}
		}
		s.kind = school
		s.schoolID = *p.SchoolID
	case models.Student:
		s.kind = self
	case models.Parent:
		s.kind = guardian
	default:
		return Scope{}
	}
	return s
}

// System is the scope of background jobs.
func System() Scope { return Scope{kind: global, role: models.SuperAdmin} }

func (s Scope) UserID() int64     { return s.userID }
func (s Scope) Role() models.Role { return s.role }

// SchoolID is set for office and teacher scopes only.
func (s Scope) SchoolID() (int64, bool) { return s.schoolID, s.kind == school }

// CanManage gates ledger and academic mutations.
func (s Scope) CanManage() bool {
	return s.kind == global || s.kind == owner || (s.kind == school && s.role == models.OfficeAccount)
}

// CanSubmitResults additionally lets teachers write subject results and recompute summaries.
func (s Scope) CanSubmitResults() bool {
	return s.CanManage() || (s.kind == school && s.role == models.Teacher)
}

// StudentPredicate returns a SQL predicate over the students table aliased as alias.
// next is the number of the first free $n placeholder.
func (s Scope) StudentPredicate(alias string, next int) (string, []any) {
	switch s.kind {
	case global:
		return "TRUE", nil
	case owner:
		return fmt.Sprintf("%s.school_id IN (SELECT id FROM schools WHERE owner_id = $%d)", alias, next), []any{s.userID}
	case school:
		return fmt.Sprintf("%s.school_id = $%d", alias, next), []any{s.schoolID}
	case self:
		return fmt.Sprintf("%s.user_id = $%d", alias, next), []any{s.userID}
	case guardian:
		return fmt.Sprintf("%s.parent_id = $%d", alias, next), []any{s.userID}
	default:
		return "FALSE", nil
	}
}

// SchoolPredicate returns a SQL predicate over a school id column such as
// "s.school_id" or "fs.school_id".
func (s Scope) SchoolPredicate(column string, next int) (string, []any) {
	switch s.kind {
	case global:
		return "TRUE", nil
	case owner:
		return fmt.Sprintf("%s IN (SELECT id FROM schools WHERE owner_id = $%d)", column, next), []any{s.userID}
	case school:
		return fmt.Sprintf("%s = $%d", column, next), []any{s.schoolID}
	case self:
		return fmt.Sprintf("%s IN (SELECT school_id FROM students WHERE user_id = $%d)", column, next), []any{s.userID}
	case guardian:
		return fmt.Sprintf("%s IN (SELECT school_id FROM students WHERE parent_id = $%d)", column, next), []any{s.userID}
	default:
		return "FALSE", nil
	}
}

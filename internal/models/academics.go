package models

import "time"

type AcademicSession struct {
	ID        int64     `db:"id" json:"id"`
	SchoolID  int64     `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
}

type Term struct {
	ID        int64     `db:"id" json:"id"`
	SessionID int64     `db:"session_id" json:"session_id"`
	SchoolID  int64     `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
}

type Class struct {
	ID        int64  `db:"id" json:"id"`
	SchoolID  int64  `db:"school_id" json:"school_id"`
	SessionID int64  `db:"session_id" json:"session_id"`
	Name      string `db:"name" json:"name"`
	Level     string `db:"level" json:"level"`
}

type Subject struct {
	ID       int64  `db:"id" json:"id"`
	SchoolID int64  `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
	Code     string `db:"code" json:"code"`
}

package model

import (
	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor || r == RoleAdmin
}

// Principal is the authenticated caller as established by the token.
type Principal struct {
	SubjectID uuid.UUID `json:"subject_id"`
	Role      Role      `json:"role"`
}

func (p Principal) Is(role Role) bool {
	return p.Role == role
}

// User represents a system user
type User struct {
	Base
	Email               string     `json:"email" db:"email"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	Role                Role       `json:"role" db:"role"`
	DisplayName         string     `json:"display_name" db:"display_name"`
	DoctorID            *uuid.UUID `json:"doctor_id,omitempty" db:"doctor_id"`
	IsBannedFromReviews bool       `json:"is_banned_from_reviews" db:"is_banned_from_reviews"`
}

type UserFilters struct {
	ExcludeRole Role
}

type Doctor struct {
	Base
	FullName       string `json:"full_name" db:"full_name"`
	Specialization string `json:"specialization" db:"specialization"`
}

type CreateDoctorRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	FullName       string `json:"full_name" binding:"required,min=2"`
	Specialization string `json:"specialization" binding:"required,min=2"`
}

// DoctorAccount is the doctor profile together with its login.
type DoctorAccount struct {
	Doctor *Doctor `json:"doctor"`
	User   *User   `json:"user"`
}

type BanRequest struct {
	Banned bool `json:"is_banned_from_reviews"`
}

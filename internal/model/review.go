package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	Base
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AuthorID      uuid.UUID  `db:"author_id" json:"author_id"`
	Rating        int        `db:"rating" json:"rating"`
	Comment       *string    `db:"comment" json:"comment,omitempty"`
	DoctorReply   *string    `db:"doctor_reply" json:"doctor_reply,omitempty"`
	DoctorReplyAt *time.Time `db:"doctor_reply_at" json:"doctor_reply_at,omitempty"`
}

// ReviewView is a review with its author's display name.
type ReviewView struct {
	Review
	AuthorName string `db:"author_name" json:"author_name"`
}

type CreateReviewRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required"`
	Rating   int       `json:"rating" binding:"required,min=1,max=5"`
	Comment  *string   `json:"comment,omitempty" binding:"omitempty,max=2000"`
}

type ReplyRequest struct {
	Reply string `json:"reply" binding:"required,min=1,max=2000"`
}

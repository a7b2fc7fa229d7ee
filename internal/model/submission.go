package model

import "time"

// QuizSubmission is one entry of the LMS quiz_submissions listing.
type QuizSubmission struct {
	UserID     int64      `json:"user_id"`
	Score      *float64   `json:"score"`
	FinishedAt *time.Time `json:"finished_at"`
}

// QuizSubmissionPage is the body of a submissions listing response.
type QuizSubmissionPage struct {
	QuizSubmissions []QuizSubmission `json:"quiz_submissions"`
}

// User is the subset of the LMS user profile the digest needs.
type User struct {
	ID    int64   `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// SubmissionRecord is a submission joined with the submitter's profile.
// Name and Email are nil when the profile lookup degraded.
type SubmissionRecord struct {
	UserID     int64
	Name       *string
	Email      *string
	Score      *float64
	FinishedAt time.Time
	ReviewURL  string
}

package mq

import "time"

const RoutingKeyDigestCompleted = "quiz.digest.completed"

// DigestCompletedPayload is published once per run after the notify step.
type DigestCompletedPayload struct {
	TraceID         string     `json:"trace_id"`
	CourseID        string     `json:"course_id"`
	QuizID          string     `json:"quiz_id"`
	Since           *time.Time `json:"since,omitempty"`
	CheckpointAt    time.Time  `json:"checkpoint_at"`
	SubmissionCount int        `json:"submission_count"`
	UserIDs         []int64    `json:"user_ids"`
	Subject         string     `json:"subject"`
	EmailStatus     int        `json:"email_status,omitempty"`
	EmailError      string     `json:"email_error,omitempty"`
}

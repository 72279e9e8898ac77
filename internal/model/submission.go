package model

// Submission is the payload sent to the backend when a session ends.
type Submission struct {
	Answers   map[string]string `json:"answers"`
	TimeTaken int               `json:"time_taken"`
}

// SubmissionResult is the backend's acknowledgement of a submission.
type SubmissionResult struct {
	SubmissionID ID     `json:"submission_id"`
	Message      string `json:"message"`
}

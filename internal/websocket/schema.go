package websocket

import "github.com/stemsi/exstem-portal/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart   Action = "start"
	ActionAnswer  Action = "answer"
	ActionSubmit  Action = "submit"
	ActionConfirm Action = "confirm"
	ActionPing    Action = "ping"
)

// Request is every client message. Fields not used by an action are ignored.
type Request struct {
	Action Action `json:"action" validate:"required,oneof=start answer submit confirm ping"`

	// answer
	QID   string `json:"q_id" validate:"required_if=Action answer,max=64"`
	Pair  *int   `json:"pair" validate:"omitempty,min=0,max=25"`
	Value string `json:"value" validate:"max=20000"`

	// confirm
	OK bool `json:"ok"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventLoaded         Event = "loaded"
	EventState          Event = "state"
	EventTick           Event = "tick"
	EventSaved          Event = "saved"
	EventConfirmRequest Event = "confirm_request"
	EventSubmitted      Event = "submitted"
	EventFailed         Event = "failed"
	EventError          Event = "error"
	EventPong           Event = "pong"
)

// LoadedResponse carries the assessment once it is ready to start.
type LoadedResponse struct {
	Event      Event             `json:"event"`
	Assessment *model.Assessment `json:"assessment"`
	Duration   int               `json:"duration"`
	Remaining  int               `json:"remaining"`
}

// StateResponse is sent on every session transition.
type StateResponse struct {
	Event     Event  `json:"event"`
	State     string `json:"state"`
	Previous  string `json:"previous,omitempty"`
	Remaining int    `json:"remaining"`
	Answered  int    `json:"answered"`
	Total     int    `json:"total"`
	Trigger   string `json:"trigger,omitempty"`
}

type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining"`
}

// SavedResponse acknowledges an answer.
type SavedResponse struct {
	Event    Event  `json:"event"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Answered int    `json:"answered"`
	Total    int    `json:"total"`
}

// ConfirmRequestResponse asks the student to confirm a manual submission.
// The client answers with {"action": "confirm", "ok": true|false}.
type ConfirmRequestResponse struct {
	Event     Event `json:"event"`
	Answered  int   `json:"answered"`
	Total     int   `json:"total"`
	Remaining int   `json:"remaining"`
}

type SubmittedResponse struct {
	Event        Event    `json:"event"`
	SubmissionID model.ID `json:"submission_id"`
	Message      string   `json:"message"`
	Trigger      string   `json:"trigger"`
	TimeTaken    int      `json:"time_taken"`
	NavigateTo   string   `json:"navigate_to"`
}

// FailedResponse ends a session that could not be loaded or submitted.
// Answers holds the frozen answers after a failed submission, for display.
type FailedResponse struct {
	Event      Event             `json:"event"`
	Code       string            `json:"code"`
	Error      string            `json:"error"`
	NavigateTo string            `json:"navigate_to"`
	Answers    map[string]string `json:"answers,omitempty"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   string            `json:"code,omitempty"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

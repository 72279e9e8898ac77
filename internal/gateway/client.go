package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/validator"
)

// maxBodyBytes caps how much of a backend response is read.
const maxBodyBytes = 8 << 20

// StatusError is a non-2xx answer from the school backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: status %d", e.Code)
	}
	return fmt.Sprintf("gateway: status %d: %s", e.Code, e.Message)
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials CredentialSource
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the school backend's student assessment API.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialSource
	log     zerolog.Logger
}

// NewClient creates a new Client.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	creds := cfg.Credentials
	if creds == nil {
		creds = ContextCredential
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		creds:   creds,
		log:     cfg.Logger.With().Str("component", "gateway").Logger(),
	}
}

// FetchAssessments returns the assessments available to the student.
func (c *Client) FetchAssessments(ctx context.Context) ([]model.Assessment, error) {
	var list assessmentList
	if err := c.do(ctx, http.MethodGet, "/student/assessments", nil, &list); err != nil {
		return nil, fmt.Errorf("fetch assessments: %w", err)
	}

	// Entries are decoded one by one so a malformed one cannot hide the others.
	valid := make([]model.Assessment, 0, len(list.Assessments))
	for i, raw := range list.Assessments {
		var a model.Assessment
		if err := json.Unmarshal(raw, &a); err != nil {
			c.log.Warn().Err(err).Int("index", i).Msg("Skipping undecodable assessment")
			continue
		}
		if err := validator.Struct(&a); err != nil {
			c.log.Warn().
				Str("assessment_id", a.ID.String()).
				Interface("fields", validator.TranslateErrors(err)).
				Msg("Skipping malformed assessment")
			continue
		}
		valid = append(valid, a)
	}
	return valid, nil
}

// assessmentList is the envelope of the listing endpoint.
type assessmentList struct {
	Assessments []json.RawMessage `json:"assessments"`
}

// SubmitAssessment posts the student's answers for one assessment.
func (c *Client) SubmitAssessment(ctx context.Context, id model.ID, sub model.Submission) (*model.SubmissionResult, error) {
	if sub.Answers == nil {
		sub.Answers = map[string]string{}
	}

	var res model.SubmissionResult
	path := "/student/assessments/" + url.PathEscape(id.String()) + "/submit"
	if err := c.do(ctx, http.MethodPost, path, sub, &res); err != nil {
		return nil, fmt.Errorf("submit assessment %s: %w", id, err)
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst interface{}) error {
	token, err := c.creds.Credential(ctx)
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Gateway call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(raw)}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls a human message out of an error body. The backend
// answers either {"message": "..."} or {"error": {"message": "..."}}.
func errorMessage(raw []byte) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body.Error, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	var flat string
	if err := json.Unmarshal(body.Error, &flat); err == nil {
		return flat
	}
	return ""
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentAssessmentLockKey returns the key holding the live session lock of a
// student for one assessment
func (r *CacheKeyStruct) StudentAssessmentLockKey(assessmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assessment:%s:live_session", studentID, assessmentID)
}

// StudentSubmissionKey returns the key remembering a student's submission receipt
func (r *CacheKeyStruct) StudentSubmissionKey(assessmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assessment:%s:submission", studentID, assessmentID)
}

var CacheKey = NewCacheKeyStruct()

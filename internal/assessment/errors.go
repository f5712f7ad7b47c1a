package assessment

import (
	"errors"
	"strings"
)

var (
	ErrSectionNotFound    = errors.New("section not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrInvalidSectionType = errors.New("invalid section type")
	ErrInvalidAnswerKey   = errors.New("invalid answer key")
	ErrInvalidOption      = errors.New("invalid option")
	ErrQuestionLocked     = errors.New("question already answered")
	ErrSectionFinished    = errors.New("section already finished")
	ErrWrongSectionType   = errors.New("operation not supported for this section type")
	ErrSubmitRequired     = errors.New("coding section is finished by submitting code")
	ErrSubmitInFlight     = errors.New("submission already in progress")
	ErrAttemptClosed      = errors.New("attempt is closed")
	ErrJudgeUnavailable   = errors.New("judge run failed")
	ErrEmptyQuiz          = errors.New("quiz has no questions")
)

// FieldError 按分区定位的校验错误，SectionID 为空表示试卷级字段
type FieldError struct {
	SectionID string `json:"sectionId,omitempty"`
	Field     string `json:"field"`
	Message   string `json:"message"`
}

type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.SectionID != "" {
			parts = append(parts, "section "+fe.SectionID+": "+fe.Field+" "+fe.Message)
		} else {
			parts = append(parts, fe.Field+" "+fe.Message)
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ForSection 返回某个分区的全部错误
func (e *ValidationError) ForSection(id string) []FieldError {
	var out []FieldError
	for _, fe := range e.Errors {
		if fe.SectionID == id {
			out = append(out, fe)
		}
	}
	return out
}

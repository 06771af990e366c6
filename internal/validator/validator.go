package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a single failed validation rule
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule"`
}

// ValidationErrors is the accumulated set of validation failures for a request
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation passed"
	}

	messages := make([]string, len(ve))
	for i, err := range ve {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return strings.Join(messages, "; ")
}

// ToValidationErrors converts go-playground validator errors to our format
func ToValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{
			Field:   "request",
			Message: err.Error(),
			Rule:    "struct",
		}}
	}

	result := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		result = append(result, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: messageForTag(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return result
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed rule %s", fe.Tag())
	}
}

// Validator wraps go-playground validation plus request-level rules
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with all custom rules registered
func New() *Validator {
	v := &Validator{validate: validator.New()}
	v.registerRules()
	return v
}

// Validate validates struct tags for any request
func (v *Validator) Validate(s interface{}) ValidationErrors {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateAttemptCreate validates attempt creation rules. Exactly one
// question source must be given: an exam, a paper, or an explicit ID list.
func (v *Validator) ValidateAttemptCreate(req *AttemptCreateRequest) ValidationErrors {
	errs := v.Validate(req)

	sources := 0
	if req.ExamID != nil {
		sources++
	}
	if req.PaperID != nil {
		sources++
	}
	if len(req.QuestionIDs) > 0 {
		sources++
	}
	if sources != 1 {
		errs = append(errs, ValidationError{
			Field:   "exam_id",
			Message: "exactly one of exam_id, paper_id or question_ids is required",
			Rule:    "question_source",
		})
	}

	return errs
}

// ValidateAnswerSave validates a single answer save
func (v *Validator) ValidateAnswerSave(req *AnswerSaveRequest) ValidationErrors {
	errs := v.Validate(req)

	if req.Answer != nil && *req.Answer < 0 {
		errs = append(errs, ValidationError{
			Field:   "answer",
			Message: "must be a non-negative option index",
			Value:   *req.Answer,
			Rule:    "option_index",
		})
	}

	return errs
}

func (v *Validator) registerRules() {
	v.validate.RegisterValidation("sort_order", func(fl validator.FieldLevel) bool {
		order := strings.ToLower(fl.Field().String())
		return order == "" || order == "asc" || order == "desc"
	})
}

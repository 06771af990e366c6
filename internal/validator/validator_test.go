package validator

import (
	"testing"
)

func uintPtr(v uint) *uint { return &v }
func intPtr(v int) *int    { return &v }

func TestValidateAttemptCreate(t *testing.T) {
	v := New()

	cases := []struct {
		name  string
		req   AttemptCreateRequest
		valid bool
	}{
		{"ExamOnly", AttemptCreateRequest{ExamID: uintPtr(1)}, true},
		{"PaperOnly", AttemptCreateRequest{PaperID: uintPtr(2)}, true},
		{"QuestionIDsOnly", AttemptCreateRequest{QuestionIDs: []uint{1, 2}}, true},
		{"NoSource", AttemptCreateRequest{}, false},
		{"ExamAndPaper", AttemptCreateRequest{ExamID: uintPtr(1), PaperID: uintPtr(2)}, false},
		{"AllThree", AttemptCreateRequest{ExamID: uintPtr(1), PaperID: uintPtr(2), QuestionIDs: []uint{3}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := v.ValidateAttemptCreate(&tc.req)
			if tc.valid && len(errs) > 0 {
				t.Errorf("Expected valid, got %v", errs)
			}
			if !tc.valid && len(errs) == 0 {
				t.Error("Expected validation errors")
			}
		})
	}
}

func TestValidateAnswerSave(t *testing.T) {
	v := New()

	if errs := v.ValidateAnswerSave(&AnswerSaveRequest{Answer: intPtr(2)}); len(errs) > 0 {
		t.Errorf("Expected valid, got %v", errs)
	}
	if errs := v.ValidateAnswerSave(&AnswerSaveRequest{}); len(errs) > 0 {
		t.Errorf("Null answer should be valid, got %v", errs)
	}
	if errs := v.ValidateAnswerSave(&AnswerSaveRequest{Answer: intPtr(-3)}); len(errs) == 0 {
		t.Error("Negative answer should be rejected")
	}
}

func TestValidateAttemptListRequest(t *testing.T) {
	v := New()

	bad := "archived"
	if errs := v.Validate(&AttemptListRequest{Status: &bad}); len(errs) == 0 {
		t.Error("Unknown status should be rejected")
	}

	good := "submitted"
	if errs := v.Validate(&AttemptListRequest{Status: &good, Page: 1, Size: 20, SortBy: "score", SortOrder: "asc"}); len(errs) > 0 {
		t.Errorf("Expected valid, got %v", errs)
	}
}

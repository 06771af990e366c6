package validator

// AttemptCreateRequest represents the request structure for starting a test attempt
type AttemptCreateRequest struct {
	ExamID      *uint  `json:"exam_id"`
	PaperID     *uint  `json:"paper_id"`
	QuestionIDs []uint `json:"question_ids" validate:"omitempty,max=500,dive,min=1"`
}

// AnswerSaveRequest represents a single autosaved answer. A null answer
// clears the stored choice; flagged is only touched when present.
type AnswerSaveRequest struct {
	Answer  *int  `json:"answer"`
	Flagged *bool `json:"flagged"`
}

// AttemptListRequest represents listing filters for a caller's attempt history
type AttemptListRequest struct {
	Status    *string `json:"status" form:"status" validate:"omitempty,oneof=in_progress submitted"`
	Page      int     `json:"page" form:"page" validate:"omitempty,min=1"`
	Size      int     `json:"size" form:"size" validate:"omitempty,min=1,max=100"`
	SortBy    string  `json:"sort_by" form:"sort_by" validate:"omitempty,oneof=started_at submitted_at created_at score"`
	SortOrder string  `json:"sort_order" form:"sort_order" validate:"omitempty,sort_order"`
}

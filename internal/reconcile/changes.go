package reconcile

// TaskPatch holds the fields of one task edit. Nil fields are left alone.
// Times are raw wall-clock strings; an empty EndTime or StartTime clears it.
type TaskPatch struct {
	Content   *string
	Status    *bool
	StartTime *string
	EndTime   *string
}

func (p TaskPatch) empty() bool {
	return p.Content == nil && p.Status == nil && p.StartTime == nil && p.EndTime == nil
}

// NewTask is a task row to append. Empty times mean "not set".
type NewTask struct {
	Content   string
	StartTime string
	EndTime   string
}

// TaskChanges addresses tasks by their stable IDs.
type TaskChanges struct {
	Deleted []string
	Edited  map[string]TaskPatch
	Added   []NewTask
}

// QuestionPatch holds the fields of one question edit.
type QuestionPatch struct {
	Question *string
	Answer   *string
}

func (p QuestionPatch) empty() bool {
	return p.Question == nil && p.Answer == nil
}

// NewQuestion is a question row to append.
type NewQuestion struct {
	Question string
}

// QuestionChanges addresses questions by their stable IDs.
type QuestionChanges struct {
	Deleted []string
	Edited  map[string]QuestionPatch
	Added   []NewQuestion
}

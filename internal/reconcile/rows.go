package reconcile

import (
	"fmt"
	"sort"

	"care-planner/internal/model"
)

// RowEdit is the partial field map a list view sends for one edited row.
// Task views use Content, Status, StartTime and EndTime; question views use
// Question and Answer.
type RowEdit struct {
	Content   *string `json:"content,omitempty"`
	Status    *bool   `json:"status,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Question  *string `json:"question,omitempty"`
	Answer    *string `json:"answer,omitempty"`
}

// RowAdd is a new row typed into a list view.
type RowAdd struct {
	Content   string `json:"content,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Question  string `json:"question,omitempty"`
}

// RowBatch is what a list view reports after one edit interaction. Row numbers
// are 0-based positions in the list the view rendered.
type RowBatch struct {
	DeletedRows []int           `json:"deleted_rows"`
	EditedRows  map[int]RowEdit `json:"edited_rows"`
	AddedRows   []RowAdd        `json:"added_rows"`
}

// Empty reports whether the batch carries no change at all.
func (b RowBatch) Empty() bool {
	return len(b.DeletedRows) == 0 && len(b.EditedRows) == 0 && len(b.AddedRows) == 0
}

// TranslateTasks maps a row batch onto the stable IDs of current, the list the
// view rendered. When current is empty the view showed its empty state, and a
// content edit of that row is the first append rather than an edit.
func TranslateTasks(current []model.Task, batch RowBatch) (TaskChanges, error) {
	var changes TaskChanges
	if len(current) == 0 {
		for _, row := range sortedRows(batch.EditedRows) {
			if row != 0 {
				return changes, outOfRange(row, 0)
			}
			if edit := batch.EditedRows[row]; edit.Content != nil {
				changes.Added = append(changes.Added, NewTask{
					Content:   *edit.Content,
					StartTime: deref(edit.StartTime),
					EndTime:   deref(edit.EndTime),
				})
			}
		}
		if err := emptyStateDeletes(batch.DeletedRows); err != nil {
			return changes, err
		}
	} else {
		deleted, err := rowIDs(len(current), batch.DeletedRows, func(i int) string { return current[i].ID })
		if err != nil {
			return changes, err
		}
		changes.Deleted = deleted
		for _, row := range sortedRows(batch.EditedRows) {
			if row < 0 || row >= len(current) {
				return changes, outOfRange(row, len(current))
			}
			edit := batch.EditedRows[row]
			if changes.Edited == nil {
				changes.Edited = make(map[string]TaskPatch, len(batch.EditedRows))
			}
			changes.Edited[current[row].ID] = TaskPatch{
				Content:   edit.Content,
				Status:    edit.Status,
				StartTime: edit.StartTime,
				EndTime:   edit.EndTime,
			}
		}
	}
	for _, add := range batch.AddedRows {
		changes.Added = append(changes.Added, NewTask{Content: add.Content, StartTime: add.StartTime, EndTime: add.EndTime})
	}
	return changes, nil
}

// TranslateQuestions is TranslateTasks for the question list.
func TranslateQuestions(current []model.Question, batch RowBatch) (QuestionChanges, error) {
	var changes QuestionChanges
	if len(current) == 0 {
		for _, row := range sortedRows(batch.EditedRows) {
			if row != 0 {
				return changes, outOfRange(row, 0)
			}
			if edit := batch.EditedRows[row]; edit.Question != nil {
				changes.Added = append(changes.Added, NewQuestion{Question: *edit.Question})
			}
		}
		if err := emptyStateDeletes(batch.DeletedRows); err != nil {
			return changes, err
		}
	} else {
		deleted, err := rowIDs(len(current), batch.DeletedRows, func(i int) string { return current[i].ID })
		if err != nil {
			return changes, err
		}
		changes.Deleted = deleted
		for _, row := range sortedRows(batch.EditedRows) {
			if row < 0 || row >= len(current) {
				return changes, outOfRange(row, len(current))
			}
			edit := batch.EditedRows[row]
			if changes.Edited == nil {
				changes.Edited = make(map[string]QuestionPatch, len(batch.EditedRows))
			}
			changes.Edited[current[row].ID] = QuestionPatch{Question: edit.Question, Answer: edit.Answer}
		}
	}
	for _, add := range batch.AddedRows {
		changes.Added = append(changes.Added, NewQuestion{Question: add.Question})
	}
	return changes, nil
}

// rowIDs resolves deleted row numbers to IDs. Rows are de-duplicated and
// walked from the highest index down, so the result names exactly the rows the
// view showed no matter the order they were supplied in.
func rowIDs(n int, rows []int, id func(int) string) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	uniq := make([]int, 0, len(rows))
	seen := make(map[int]bool, len(rows))
	for _, row := range rows {
		if row < 0 || row >= n {
			return nil, outOfRange(row, n)
		}
		if !seen[row] {
			seen[row] = true
			uniq = append(uniq, row)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(uniq)))
	ids := make([]string, 0, len(uniq))
	for _, row := range uniq {
		ids = append(ids, id(row))
	}
	return ids, nil
}

// emptyStateDeletes accepts deletion of the empty-state row, which has nothing
// behind it.
func emptyStateDeletes(rows []int) error {
	for _, row := range rows {
		if row != 0 {
			return outOfRange(row, 0)
		}
	}
	return nil
}

func sortedRows(edits map[int]RowEdit) []int {
	rows := make([]int, 0, len(edits))
	for row := range edits {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	return rows
}

func outOfRange(row, n int) error {
	return &ValidationError{Reason: fmt.Sprintf("row %d does not exist (list has %d rows)", row, n)}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

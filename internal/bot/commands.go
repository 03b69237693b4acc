package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"care-planner/internal/reconcile"
)

var (
	errNoRows    = errors.New("give at least one row number, e.g. 2")
	errNoContent = errors.New("text is required")
)

// parseRowNumbers turns the 1-based row numbers users type into 0-based
// indices.
func parseRowNumbers(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, errNoRows
	}
	rows := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(strings.TrimSuffix(arg, ","))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%q is not a row number", arg)
		}
		rows = append(rows, n-1)
	}
	return rows, nil
}

// parseAddTask parses "/addtask [HH:MM[-HH:MM]] text". Times are passed on
// unchanged so that malformed values are reported by the reconciler.
func parseAddTask(args string) (reconcile.RowAdd, error) {
	fields := strings.Fields(args)
	var add reconcile.RowAdd
	if len(fields) > 0 && looksLikeTime(fields[0]) {
		start, end, _ := strings.Cut(fields[0], "-")
		add.StartTime = start
		add.EndTime = end
		fields = fields[1:]
	}
	add.Content = strings.Join(fields, " ")
	if add.Content == "" {
		return reconcile.RowAdd{}, errNoContent
	}
	return add, nil
}

// parseEditTask parses "/edittask <n> field=value ...". Recognised fields are
// content (or text), start and end; content runs until the next field.
// An empty start or end clears it.
func parseEditTask(args string) (reconcile.RowBatch, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return reconcile.RowBatch{}, errors.New("usage: /edittask <n> start=HH:MM end=HH:MM content=text")
	}
	rows, err := parseRowNumbers(fields[:1])
	if err != nil {
		return reconcile.RowBatch{}, err
	}

	var edit reconcile.RowEdit
	var content []string
	inContent := false
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok || !isEditKey(key) {
			if !inContent {
				return reconcile.RowBatch{}, fmt.Errorf("unknown field %q, use start=, end= or content=", field)
			}
			content = append(content, field)
			continue
		}
		inContent = false
		switch strings.ToLower(key) {
		case "start":
			edit.StartTime = &value
		case "end":
			edit.EndTime = &value
		case "content", "text":
			inContent = true
			content = content[:0]
			if value != "" {
				content = append(content, value)
			}
		}
		if inContent && edit.Content == nil {
			edit.Content = new(string)
		}
	}
	if edit.Content != nil {
		joined := strings.Join(content, " ")
		edit.Content = &joined
	}
	return reconcile.RowBatch{EditedRows: map[int]reconcile.RowEdit{rows[0]: edit}}, nil
}

// parseAnswer parses "/answer <n> [text]". An empty text means the answer
// follows as a voice message.
func parseAnswer(args string) (row int, text string, err error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, "", errors.New("usage: /answer <n> text, or /answer <n> and then a voice message")
	}
	rows, err := parseRowNumbers(fields[:1])
	if err != nil {
		return 0, "", err
	}
	return rows[0], strings.Join(fields[1:], " "), nil
}

// statusBatch marks one task row done or open.
func statusBatch(row int, done bool) reconcile.RowBatch {
	return reconcile.RowBatch{EditedRows: map[int]reconcile.RowEdit{row: {Status: &done}}}
}

// checkRows rejects rows past the end of a list of n rendered rows, in the
// numbering the user typed.
func checkRows(rows []int, n int) error {
	for _, row := range rows {
		if row >= n {
			if n == 0 {
				return errors.New("the list is empty")
			}
			return fmt.Errorf("there is no row %d, the list has %d", row+1, n)
		}
	}
	return nil
}

func isEditKey(key string) bool {
	switch strings.ToLower(key) {
	case "start", "end", "content", "text":
		return true
	}
	return false
}

func looksLikeTime(token string) bool {
	if !strings.Contains(token, ":") {
		return false
	}
	for _, r := range token {
		if (r < '0' || r > '9') && r != ':' && r != '-' {
			return false
		}
	}
	return true
}

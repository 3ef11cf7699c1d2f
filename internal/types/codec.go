package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"unicode/utf8"
)

// taskWire mirrors Task with every field optional so that missing required
// fields can be told apart from zero values.
type taskWire struct {
	ID          *string         `json:"id"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *TaskStatus     `json:"status"`
	Priority    *TaskPriority   `json:"priority"`
	AIInsights  json.RawMessage `json:"ai_insights"`
}

var (
	taskFields     = []string{"id", "title", "description", "status", "priority", "ai_insights"}
	insightsFields = []string{"complexity", "recommended_subtasks", "potential_blockers"}
)

type insightsWire struct {
	Complexity          *float64        `json:"complexity"`
	RecommendedSubtasks json.RawMessage `json:"recommended_subtasks"`
	PotentialBlockers   json.RawMessage `json:"potential_blockers"`
}

// MarshalTask encodes a task as self-describing JSON. Strings must be valid
// UTF-8; encoding/json would otherwise replace bad bytes and the task would
// not decode back to itself.
func MarshalTask(t Task) ([]byte, error) {
	if err := checkUTF8(t); err != nil {
		return nil, fmt.Errorf("failed to encode task %q: %w", t.ID, err)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task %q: %w", t.ID, err)
	}
	return data, nil
}

func checkUTF8(t Task) error {
	if !utf8.ValidString(t.ID) {
		return fmt.Errorf("id is not valid UTF-8")
	}
	if !utf8.ValidString(t.Title) {
		return fmt.Errorf("title is not valid UTF-8")
	}
	if t.Description != nil && !utf8.ValidString(*t.Description) {
		return fmt.Errorf("description is not valid UTF-8")
	}
	if t.AIInsights == nil {
		return nil
	}
	for i, s := range t.AIInsights.RecommendedSubtasks {
		if !utf8.ValidString(s) {
			return fmt.Errorf("ai_insights.recommended_subtasks[%d] is not valid UTF-8", i)
		}
	}
	for i, s := range t.AIInsights.PotentialBlockers {
		if !utf8.ValidString(s) {
			return fmt.Errorf("ai_insights.potential_blockers[%d] is not valid UTF-8", i)
		}
	}
	return nil
}

// UnmarshalTask decodes a payload produced by MarshalTask. Any deviation from
// the schema yields an error wrapping ErrMalformedData.
func UnmarshalTask(data []byte) (Task, error) {
	if err := checkKeys(data, taskFields); err != nil {
		return Task{}, malformed(err)
	}
	var w taskWire
	if err := decodeStrict(data, &w); err != nil {
		return Task{}, malformed(err)
	}

	switch {
	case w.ID == nil:
		return Task{}, malformed(fmt.Errorf("missing field %q", "id"))
	case w.Title == nil:
		return Task{}, malformed(fmt.Errorf("missing field %q", "title"))
	case w.Status == nil:
		return Task{}, malformed(fmt.Errorf("missing field %q", "status"))
	case w.Priority == nil:
		return Task{}, malformed(fmt.Errorf("missing field %q", "priority"))
	}

	t := Task{
		ID:          *w.ID,
		Title:       *w.Title,
		Description: w.Description,
		Status:      *w.Status,
		Priority:    *w.Priority,
	}

	if !isNull(w.AIInsights) {
		ai, err := unmarshalInsights(w.AIInsights)
		if err != nil {
			return Task{}, err
		}
		t.AIInsights = &ai
	}

	return t, nil
}

// MarshalTasks encodes a batch of tasks as a JSON array.
func MarshalTasks(tasks []Task) ([]byte, error) {
	if tasks == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, t := range tasks {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := MarshalTask(t)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalTasks decodes a batch produced by MarshalTasks.
func UnmarshalTasks(data []byte) ([]Task, error) {
	var raws []json.RawMessage
	if err := decodeStrict(data, &raws); err != nil {
		return nil, malformed(err)
	}
	if raws == nil {
		return nil, nil
	}

	tasks := make([]Task, 0, len(raws))
	for i, raw := range raws {
		t, err := UnmarshalTask(raw)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func unmarshalInsights(data []byte) (AIInsights, error) {
	if err := checkKeys(data, insightsFields); err != nil {
		return AIInsights{}, malformed(fmt.Errorf("ai_insights: %w", err))
	}
	var w insightsWire
	if err := decodeStrict(data, &w); err != nil {
		return AIInsights{}, malformed(fmt.Errorf("ai_insights: %w", err))
	}
	if w.Complexity == nil {
		return AIInsights{}, malformed(fmt.Errorf("missing field %q", "ai_insights.complexity"))
	}

	subtasks, err := decodeStringList("ai_insights.recommended_subtasks", w.RecommendedSubtasks)
	if err != nil {
		return AIInsights{}, err
	}
	blockers, err := decodeStringList("ai_insights.potential_blockers", w.PotentialBlockers)
	if err != nil {
		return AIInsights{}, err
	}

	return AIInsights{
		Complexity:          *w.Complexity,
		RecommendedSubtasks: subtasks,
		PotentialBlockers:   blockers,
	}, nil
}

// decodeStringList keeps the distinction between a null and an empty list and
// rejects null elements rather than turning them into empty strings.
func decodeStringList(field string, raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, malformed(fmt.Errorf("missing field %q", field))
	}
	if isNull(raw) {
		return nil, nil
	}

	var items []*string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed(fmt.Errorf("%s: %w", field, err))
	}
	out := make([]string, len(items))
	for i, item := range items {
		if item == nil {
			return nil, malformed(fmt.Errorf("%s[%d]: null element", field, i))
		}
		out[i] = *item
	}
	return out, nil
}

// decodeStrict decodes exactly one JSON value with no unknown fields.
func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// checkKeys walks the keys of a top-level object. encoding/json matches field
// names case-insensitively and lets the last duplicate win, so both are
// rejected here. Non-object input is left to decodeStrict.
func checkKeys(data []byte, fields []string) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	seen := make(map[string]bool, len(fields))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("invalid object key %v", tok)
		}
		if !slices.Contains(fields, key) {
			return fmt.Errorf("unknown field %q", key)
		}
		if seen[key] {
			return fmt.Errorf("duplicate field %q", key)
		}
		seen[key] = true

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedData, err)
}

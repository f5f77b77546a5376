package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotSuitable is returned when the model judged the chunk unfit for
// question generation (valid: false). It is not a failure of the response.
var ErrNotSuitable = errors.New("chunk judged unsuitable for question generation")

// GeneratedQuestion is the parsed, structurally-checked model output for one
// question.
type GeneratedQuestion struct {
	Question     string   `json:"question"`
	Type         string   `json:"type"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_answer_index"`
	Explanation  string   `json:"explanation"`
}

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// ExtractJSON pulls the first JSON payload out of free-form model output:
// everything from the first '{' or '[' through the matching last '}' or ']'.
// The bool result reports whether a candidate span was found at all.
func ExtractJSON(raw string) (string, bool) {
	startObj := strings.Index(raw, "{")
	startArr := strings.Index(raw, "[")

	start := -1
	closer := "}"
	switch {
	case startObj != -1 && (startArr == -1 || startObj < startArr):
		start = startObj
	case startArr != -1:
		start = startArr
		closer = "]"
	}

	end := strings.LastIndex(raw, closer)
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// rawQuestion mirrors the JSON schema the prompt demands. Valid defaults to
// true when the field is absent.
type rawQuestion struct {
	Valid        *bool  `json:"valid"`
	Question     string `json:"question"`
	Type         string `json:"type"`
	RawOptions   []any  `json:"options"`
	CorrectIndex *int   `json:"correct_answer_index"`
	Explanation  string `json:"explanation"`
}

var optionPrefixPattern = regexp.MustCompile(`^[A-DＡ-Ｄ]\s*[\.．、]\s*`)

// ParseQuestion extracts and validates one question from raw model output.
// A response the model marked invalid returns ErrNotSuitable; malformed
// structure returns a descriptive error.
func ParseQuestion(raw string) (*GeneratedQuestion, error) {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON payload in response")
	}

	// A list response contributes its first element.
	if strings.HasPrefix(strings.TrimSpace(payload), "[") {
		var list []json.RawMessage
		if err := json.Unmarshal([]byte(payload), &list); err != nil {
			return nil, fmt.Errorf("parse JSON list: %w", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("empty JSON list in response")
		}
		payload = string(list[0])
	}

	var rq rawQuestion
	if err := json.Unmarshal([]byte(payload), &rq); err != nil {
		return nil, fmt.Errorf("parse JSON object: %w", err)
	}

	if rq.Valid != nil && !*rq.Valid {
		return nil, ErrNotSuitable
	}

	if len(rq.RawOptions) < 2 {
		return nil, fmt.Errorf("question has %d options, need at least 2", len(rq.RawOptions))
	}
	if rq.CorrectIndex == nil || *rq.CorrectIndex < 0 || *rq.CorrectIndex >= len(rq.RawOptions) {
		return nil, fmt.Errorf("correct_answer_index out of range")
	}

	qType := rq.Type
	if qType == "" {
		qType = "choice"
	}

	options := make([]string, len(rq.RawOptions))
	for i, o := range rq.RawOptions {
		options[i] = cleanOption(fmt.Sprintf("%v", o))
	}

	return &GeneratedQuestion{
		Question:     strings.TrimSpace(rq.Question),
		Type:         qType,
		Options:      options,
		CorrectIndex: *rq.CorrectIndex,
		Explanation:  strings.TrimSpace(rq.Explanation),
	}, nil
}

// cleanOption strips an enumeration prefix ("A. ", "Ｂ．", "c、") the model
// sometimes adds despite instructions.
func cleanOption(opt string) string {
	opt = strings.TrimSpace(opt)
	opt = optionPrefixPattern.ReplaceAllString(opt, "")
	return strings.TrimSpace(opt)
}

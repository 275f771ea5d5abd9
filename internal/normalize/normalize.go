// Package normalize converts raw completion-service output of unknown shape
// into typed records. Both entry points are total: any input, including the
// empty string, yields a well-formed result. An ordered cascade of extraction
// strategies is applied, stopping at the first that produces a non-empty,
// well-typed value, and falling back to built-in defaults when none does.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"nag/internal/domain"
)

// Policy holds the soft normalization switches.
type Policy struct {
	// RejectLatinOnly treats an all-ASCII message as low confidence (used
	// when a non-Latin locale is expected) and swaps in a default pick. It
	// is a heuristic, not validation, and is off by default.
	RejectLatinOnly bool
}

const (
	maxMessageLen  = 150
	truncateLen    = 147
	ellipsis       = "..."
	minSalvageLen  = 10
	maxSalvageLen  = 150
	maxSalvaged    = 3
	maxSentences   = 3
	maxBareTaskLen = 200

	blameField     = "blameMessages"
	detectionField = "detectedTasks"
)

// DefaultBlameMessages is the built-in reminder set returned when every
// extraction strategy comes up empty.
var DefaultBlameMessages = []string{
	"Time's up. That task is still sitting there.",
	"Still not done? The deadline came and went.",
	"Your task expired. Future you is not impressed.",
}

var blameSynonyms = []string{blameField, "blame_messages", "trollReminders", "reminders", "messages"}

var detectionSynonyms = []string{detectionField, "detected_tasks", "tasks", "task"}

// element keys checked when coercing an object into a message or task shape.
var textKeys = []string{"message", "text", "content", "task", "name", "description"}

var (
	fenceRe        = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.+?)\\s*```")
	missingCommaRe = regexp.MustCompile(`"(\s+)"`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]?`)
	quotedRe       = regexp.MustCompile(`"([^"\n]+)"`)
)

// taskVocabulary marks text that reads like a single blame message even
// though no structure survived.
var taskVocabulary = []string{"task", "deadline", "todo", "overdue", "procrastin", "hurry", "finish"}

// BlameMessages normalizes a reminder-generation response. The result always
// carries at least one message.
func BlameMessages(raw string, pol Policy) domain.BlameMessageResult {
	candidates := extractBlameCandidates(raw)
	msgs := sanitize(candidates, blameField, pol)
	if len(msgs) == 0 {
		msgs = append([]string(nil), DefaultBlameMessages...)
	}
	return domain.BlameMessageResult{Messages: msgs}
}

// TaskDetection normalizes a task-detection response. Category is never
// empty; DetectedTasks may be.
func TaskDetection(raw string, pol Policy) domain.TaskDetectionResult {
	res := extractDetection(raw, pol)
	if strings.TrimSpace(res.Category) == "" {
		res.Category = "general"
	}
	if res.DetectedTasks == nil {
		res.DetectedTasks = []domain.DetectedTask{}
	}
	return res
}

// --- blame cascade ---

func extractBlameCandidates(raw string) []string {
	text := unfence(raw)
	repaired := repair(text)

	// strict structural parse, canonical name then synonyms then any array
	if obj := parseObject(repaired); obj != nil {
		for _, key := range blameSynonyms {
			if msgs := coerceStrings(obj[key]); len(msgs) > 0 {
				return msgs
			}
		}
		if msgs := scanAnyArray(obj); len(msgs) > 0 {
			return msgs
		}
	}
	// a bare JSON array is close enough to the contract to honor directly
	if arr := parseArray(repaired); len(arr) > 0 {
		if msgs := coerceStrings(arr); len(msgs) > 0 {
			return msgs
		}
	}

	// direct-text heuristic: reads like a blame message, no structure at all
	if looksLikeBlameText(text) {
		if msgs := splitSentences(text); len(msgs) > 0 {
			return msgs
		}
	}

	// regex salvage: field literal first, then any plausible quoted strings
	if msgs := salvageFieldArray(raw, blameSynonyms); len(msgs) > 0 {
		return msgs
	}
	return salvageQuoted(raw)
}

func looksLikeBlameText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.ContainsAny(trimmed, "{}") {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, word := range taskVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func splitSentences(text string) []string {
	var out []string
	for _, m := range sentenceRe.FindAllString(text, -1) {
		s := strings.TrimSpace(m)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxSentences {
			break
		}
	}
	return out
}

// --- detection cascade ---

func extractDetection(raw string, pol Policy) domain.TaskDetectionResult {
	text := unfence(raw)
	repaired := repair(text)

	if obj := parseObject(repaired); obj != nil {
		res := domain.TaskDetectionResult{Category: stringField(obj, "category")}
		for _, key := range detectionSynonyms {
			if tasks := coerceTasks(obj[key], pol); len(tasks) > 0 {
				res.DetectedTasks = tasks
				return res
			}
		}
		for _, v := range obj {
			if tasks := coerceTasks(v, pol); len(tasks) > 0 {
				res.DetectedTasks = tasks
				return res
			}
		}
		// a parsed object with no task-shaped field is an explicit "nothing
		// detected", not a failure
		return res
	}
	if arr := parseArray(repaired); len(arr) > 0 {
		if tasks := coerceTasks(arr, pol); len(tasks) > 0 {
			return domain.TaskDetectionResult{Category: "general", DetectedTasks: tasks}
		}
	}

	// direct-text heuristic: short prose with no paragraph break is a single
	// task label
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && len(trimmed) <= maxBareTaskLen && !strings.Contains(trimmed, "\n\n") && !strings.ContainsAny(trimmed, "{}") {
		return domain.TaskDetectionResult{
			Category:      "general",
			DetectedTasks: []domain.DetectedTask{{Text: truncate(trimmed)}},
		}
	}

	// regex salvage
	if texts := salvageFieldArray(raw, detectionSynonyms); len(texts) > 0 {
		return domain.TaskDetectionResult{Category: "general", DetectedTasks: toTasks(texts, pol)}
	}
	return domain.TaskDetectionResult{Category: "general"}
}

func toTasks(texts []string, pol Policy) []domain.DetectedTask {
	sanitized := sanitize(texts, detectionField, pol)
	tasks := make([]domain.DetectedTask, 0, len(sanitized))
	for _, s := range sanitized {
		tasks = append(tasks, domain.DetectedTask{Text: s})
	}
	return tasks
}

func coerceTasks(v any, pol Policy) []domain.DetectedTask {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var tasks []domain.DetectedTask
	for _, el := range arr {
		switch e := el.(type) {
		case string:
			if s := strings.TrimSpace(e); s != "" && s != detectionField {
				tasks = append(tasks, domain.DetectedTask{Text: truncate(s)})
			}
		case map[string]any:
			text := ""
			for _, key := range textKeys {
				if text = stringField(e, key); text != "" {
					break
				}
			}
			if text == "" {
				continue
			}
			t := domain.DetectedTask{Text: truncate(text)}
			for _, key := range []string{"deadline", "dueDate", "due_date"} {
				if due := stringField(e, key); due != "" {
					t.DueDate = &due
					break
				}
			}
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// --- shared stages ---

// unfence returns the interior of the first fenced block, or the input.
func unfence(raw string) string {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// repair trims to the outermost braces, restores commas between adjacent
// quoted tokens, and strips trailing commas before a closing bracket.
func repair(text string) string {
	s := strings.TrimSpace(text)
	if start := strings.IndexAny(s, "{["); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexAny(s, "}]"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	s = missingCommaRe.ReplaceAllString(s, `",$1"`)
	s = trailingComma.ReplaceAllString(s, "$1")
	return s
}

func parseObject(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil
	}
	return obj
}

func parseArray(s string) []any {
	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return nil
	}
	return arr
}

// coerceStrings turns a decoded JSON value into a list of message strings,
// accepting bare strings and objects exposing a known text field.
func coerceStrings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, el := range arr {
		switch e := el.(type) {
		case string:
			if strings.TrimSpace(e) != "" {
				out = append(out, e)
			}
		case map[string]any:
			for _, key := range textKeys {
				if s := stringField(e, key); s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

// scanAnyArray is the last strict-parse resort: every field whose value is a
// sequence gets a coercion attempt.
func scanAnyArray(obj map[string]any) []string {
	for _, v := range obj {
		if _, ok := v.([]any); !ok {
			continue
		}
		if msgs := coerceStrings(v); len(msgs) > 0 {
			return msgs
		}
	}
	return nil
}

// salvageFieldArray pulls a known field's array-of-strings literal straight
// out of unparseable text.
func salvageFieldArray(raw string, fields []string) []string {
	for _, field := range fields {
		re := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*\[([^\]]*)\]`)
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		var out []string
		for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
			if s := strings.TrimSpace(q[1]); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// salvageQuoted extracts every quoted substring of plausible message length
// and keeps up to the first three.
func salvageQuoted(raw string) []string {
	var out []string
	for _, q := range quotedRe.FindAllStringSubmatch(raw, -1) {
		s := strings.TrimSpace(q[1])
		if len(s) < minSalvageLen || len(s) > maxSalvageLen {
			continue
		}
		out = append(out, s)
		if len(out) == maxSalvaged {
			break
		}
	}
	return out
}

// sanitize applies the uniform message policy: field-name echoes are
// rejected, overlong messages are truncated, and all-ASCII messages are
// replaced with a default pick when the policy demands it.
func sanitize(msgs []string, field string, pol Policy) []string {
	var out []string
	for i, m := range msgs {
		m = strings.TrimSpace(m)
		if m == "" || m == field {
			continue
		}
		m = truncate(m)
		if pol.RejectLatinOnly && latinOnly(m) {
			m = DefaultBlameMessages[i%len(DefaultBlameMessages)]
		}
		out = append(out, m)
	}
	return out
}

func truncate(m string) string {
	runes := []rune(m)
	if len(runes) <= maxMessageLen {
		return m
	}
	return string(runes[:truncateLen]) + ellipsis
}

// latinOnly reports whether the message is pure ASCII letters, digits,
// punctuation, and spaces.
func latinOnly(m string) bool {
	for _, r := range m {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

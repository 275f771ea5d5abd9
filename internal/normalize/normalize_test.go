package normalize

import (
	"strings"
	"testing"
)

func TestBlameMessagesStrictJSON(t *testing.T) {
	res := BlameMessages(`{"blameMessages":["Do it now!","Hurry up!"]}`, Policy{})
	if len(res.Messages) != 2 || res.Messages[0] != "Do it now!" || res.Messages[1] != "Hurry up!" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesFencedJSON(t *testing.T) {
	raw := "Here you go:\n```json\n{\"blameMessages\":[\"Do it now!\",\"Hurry up!\"]}\n```\nHope that helps!"
	res := BlameMessages(raw, Policy{})
	if len(res.Messages) != 2 || res.Messages[0] != "Do it now!" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesSynonymField(t *testing.T) {
	res := BlameMessages(`{"reminders":["You said today. It is not today anymore."]}`, Policy{})
	if len(res.Messages) != 1 || res.Messages[0] != "You said today. It is not today anymore." {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesAnyArrayFallback(t *testing.T) {
	res := BlameMessages(`{"category":"x","stuff":["Back to work with you"]}`, Policy{})
	if len(res.Messages) != 1 || res.Messages[0] != "Back to work with you" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesBareArray(t *testing.T) {
	res := BlameMessages(`["First nudge","Second nudge"]`, Policy{})
	if len(res.Messages) != 2 || res.Messages[1] != "Second nudge" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesObjectElements(t *testing.T) {
	res := BlameMessages(`{"blameMessages":[{"message":"Wrapped in an object"},{"text":"Another wrapper"}]}`, Policy{})
	if len(res.Messages) != 2 || res.Messages[0] != "Wrapped in an object" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesRepairsMissingCommas(t *testing.T) {
	res := BlameMessages(`{"blameMessages":["Do it now!" "Hurry up!"]}`, Policy{})
	if len(res.Messages) != 2 || res.Messages[1] != "Hurry up!" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesRepairsTrailingCommaAndProse(t *testing.T) {
	raw := `Sure thing! {"blameMessages":["Still waiting on you",],} `
	res := BlameMessages(raw, Policy{})
	if len(res.Messages) != 1 || res.Messages[0] != "Still waiting on you" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesDirectText(t *testing.T) {
	res := BlameMessages("Just do your leetcode task already, come on!", Policy{})
	if len(res.Messages) != 1 || res.Messages[0] != "Just do your leetcode task already, come on!" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesDirectTextSentenceSplit(t *testing.T) {
	res := BlameMessages("The deadline came and went. You did nothing. Shameful! And a fourth sentence.", Policy{})
	if len(res.Messages) != 3 {
		t.Fatalf("sentence split should cap at 3, got %+v", res.Messages)
	}
	if res.Messages[0] != "The deadline came and went." {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesFieldSalvage(t *testing.T) {
	raw := `I produced {{invalid json but "blameMessages": ["Salvaged from the wreck"] is in here`
	res := BlameMessages(raw, Policy{})
	if len(res.Messages) != 1 || res.Messages[0] != "Salvaged from the wreck" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesQuotedSalvage(t *testing.T) {
	raw := `Sure! Some ideas: "Get moving before it is too late" and "The clock ran out on you" maybe?`
	res := BlameMessages(raw, Policy{})
	if len(res.Messages) != 2 || res.Messages[0] != "Get moving before it is too late" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesEmptyInputYieldsDefaults(t *testing.T) {
	for _, raw := range []string{"", "   ", "{}", "null"} {
		res := BlameMessages(raw, Policy{})
		if len(res.Messages) != len(DefaultBlameMessages) {
			t.Fatalf("input %q: got %+v", raw, res.Messages)
		}
		if res.Messages[0] != DefaultBlameMessages[0] {
			t.Fatalf("input %q: got %+v", raw, res.Messages)
		}
	}
}

func TestBlameMessagesNeverEmpty(t *testing.T) {
	inputs := []string{
		"",
		"complete garbage %%%",
		`{"blameMessages":[]}`,
		`{"blameMessages":["blameMessages"]}`, // field-name echo is rejected
		"```\n\n```",
	}
	for _, raw := range inputs {
		res := BlameMessages(raw, Policy{})
		if len(res.Messages) == 0 {
			t.Fatalf("input %q produced no messages", raw)
		}
	}
}

func TestBlameMessagesTruncation(t *testing.T) {
	long := strings.Repeat("a", 200)
	res := BlameMessages(`{"blameMessages":["`+long+`"]}`, Policy{})
	if len(res.Messages) != 1 {
		t.Fatalf("got %+v", res.Messages)
	}
	m := res.Messages[0]
	if len([]rune(m)) != 150 {
		t.Fatalf("truncated length = %d", len([]rune(m)))
	}
	if !strings.HasSuffix(m, "...") || !strings.HasPrefix(m, strings.Repeat("a", 147)) {
		t.Fatalf("got %q", m)
	}
}

func TestBlameMessagesTruncationPreservesRunes(t *testing.T) {
	long := strings.Repeat("å", 200)
	res := BlameMessages(`{"blameMessages":["`+long+`"]}`, Policy{})
	m := res.Messages[0]
	if strings.ContainsRune(m, '�') {
		t.Fatalf("truncation split a rune: %q", m)
	}
	if len([]rune(m)) != 150 {
		t.Fatalf("truncated rune length = %d", len([]rune(m)))
	}
}

func TestBlameMessagesRejectLatinOnly(t *testing.T) {
	res := BlameMessages(`{"blameMessages":["Do it now!"]}`, Policy{RejectLatinOnly: true})
	if len(res.Messages) != 1 || res.Messages[0] != DefaultBlameMessages[0] {
		t.Fatalf("got %+v", res.Messages)
	}
	// non-ASCII text survives the policy
	res = BlameMessages(`{"blameMessages":["Сделай это сейчас!"]}`, Policy{RejectLatinOnly: true})
	if res.Messages[0] != "Сделай это сейчас!" {
		t.Fatalf("got %+v", res.Messages)
	}
}

func TestBlameMessagesIdempotent(t *testing.T) {
	first := BlameMessages(`{"blameMessages":["Do it now!","Hurry up!"]}`, Policy{})
	rewrapped := `{"blameMessages":["` + strings.Join(first.Messages, `","`) + `"]}`
	second := BlameMessages(rewrapped, Policy{})
	if len(first.Messages) != len(second.Messages) {
		t.Fatalf("first %+v second %+v", first.Messages, second.Messages)
	}
	for i := range first.Messages {
		if first.Messages[i] != second.Messages[i] {
			t.Fatalf("message %d changed: %q -> %q", i, first.Messages[i], second.Messages[i])
		}
	}
}

func TestTaskDetectionStrictJSON(t *testing.T) {
	raw := `{"category":"chores","detectedTasks":[{"text":"Buy milk","deadline":"2026-01-01T00:00:00Z"},{"text":"Walk the dog"}]}`
	res := TaskDetection(raw, Policy{})
	if res.Category != "chores" {
		t.Fatalf("category = %q", res.Category)
	}
	if len(res.DetectedTasks) != 2 || res.DetectedTasks[0].Text != "Buy milk" {
		t.Fatalf("got %+v", res.DetectedTasks)
	}
	if res.DetectedTasks[0].DueDate == nil || *res.DetectedTasks[0].DueDate != "2026-01-01T00:00:00Z" {
		t.Fatalf("deadline lost: %+v", res.DetectedTasks[0])
	}
	if res.DetectedTasks[1].DueDate != nil {
		t.Fatalf("phantom deadline: %+v", res.DetectedTasks[1])
	}
}

func TestTaskDetectionSynonymAndStringElements(t *testing.T) {
	res := TaskDetection(`{"tasks":["Buy milk","Walk the dog"]}`, Policy{})
	if len(res.DetectedTasks) != 2 || res.DetectedTasks[1].Text != "Walk the dog" {
		t.Fatalf("got %+v", res.DetectedTasks)
	}
}

func TestTaskDetectionFenced(t *testing.T) {
	raw := "```json\n{\"category\":\"work\",\"detectedTasks\":[{\"text\":\"Ship the report\"}]}\n```"
	res := TaskDetection(raw, Policy{})
	if res.Category != "work" || len(res.DetectedTasks) != 1 {
		t.Fatalf("got %+v", res)
	}
}

func TestTaskDetectionParsedObjectWithoutTasksIsEmpty(t *testing.T) {
	res := TaskDetection(`{"category":"work","note":"nothing actionable"}`, Policy{})
	if res.Category != "work" {
		t.Fatalf("category = %q", res.Category)
	}
	if len(res.DetectedTasks) != 0 {
		t.Fatalf("expected no tasks, got %+v", res.DetectedTasks)
	}
	if res.DetectedTasks == nil {
		t.Fatal("DetectedTasks should be an empty slice, not nil")
	}
}

func TestTaskDetectionDirectText(t *testing.T) {
	res := TaskDetection("Buy groceries tomorrow", Policy{})
	if res.Category != "general" {
		t.Fatalf("category = %q", res.Category)
	}
	if len(res.DetectedTasks) != 1 || res.DetectedTasks[0].Text != "Buy groceries tomorrow" {
		t.Fatalf("got %+v", res.DetectedTasks)
	}
}

func TestTaskDetectionEmptyInput(t *testing.T) {
	res := TaskDetection("", Policy{})
	if res.Category != "general" || len(res.DetectedTasks) != 0 {
		t.Fatalf("got %+v", res)
	}
	if res.DetectedTasks == nil {
		t.Fatal("DetectedTasks should be an empty slice, not nil")
	}
}

func TestTaskDetectionFieldSalvage(t *testing.T) {
	raw := `broken {{{ "detectedTasks": ["Fix the leaking faucet"] trailing junk`
	res := TaskDetection(raw, Policy{})
	if len(res.DetectedTasks) != 1 || res.DetectedTasks[0].Text != "Fix the leaking faucet" {
		t.Fatalf("got %+v", res.DetectedTasks)
	}
}

package extract

import "testing"

func TestTagGreedy(t *testing.T) {
	content, end := Tag("foo <a>baz</a> bar", "a", true)
	if content != "baz" {
		t.Fatalf("content = %q", content)
	}
	if end != 10 {
		t.Fatalf("end = %d", end)
	}
}

func TestTagGreedySpansDuplicateClosers(t *testing.T) {
	content, end := Tag("<a>one</a> mid <a>two</a>", "a", true)
	if content != "one</a> mid <a>two" {
		t.Fatalf("content = %q", content)
	}
	if end < 0 {
		t.Fatalf("end = %d", end)
	}
}

func TestTagNonGreedy(t *testing.T) {
	content, _ := Tag("<a>one</a> mid <a>two</a>", "a", false)
	if content != "one" {
		t.Fatalf("content = %q", content)
	}
}

func TestTagMiss(t *testing.T) {
	content, end := Tag("no tags here", "a", true)
	if content != "" || end != -1 {
		t.Fatalf("Tag() = (%q, %d)", content, end)
	}
}

func TestTagSpansNewlines(t *testing.T) {
	content, _ := Tag("<label>\nEASY\n</label>", "label", true)
	if content != "EASY" {
		t.Fatalf("content = %q", content)
	}
}

func TestSQLWellFormedFence(t *testing.T) {
	sql, ok := SQL("```sql SELECT 1 ```")
	if !ok {
		t.Fatal("SQL() ok = false")
	}
	if sql != "SELECT 1" {
		t.Fatalf("sql = %q", sql)
	}
}

func TestSQLMissingOpeningFence(t *testing.T) {
	// Assistant-prefix priming puts the opening fence in the prompt, so
	// output may begin mid-statement and only carry the closing fence.
	sql, ok := SQL("SELECT name FROM users\n``` trailing prose")
	if !ok {
		t.Fatal("SQL() ok = false")
	}
	if sql != "SELECT name FROM users" {
		t.Fatalf("sql = %q", sql)
	}
}

func TestSQLUsesLastOpeningFence(t *testing.T) {
	sql, ok := SQL("```sql SELECT 1 ```\nrevised:\n```sql SELECT 2 ```")
	if !ok {
		t.Fatal("SQL() ok = false")
	}
	if sql != "SELECT 2" {
		t.Fatalf("sql = %q", sql)
	}
}

func TestSQLEmptyPayload(t *testing.T) {
	if _, ok := SQL("```sql\n```"); ok {
		t.Fatal("SQL() ok = true for empty payload")
	}
}

func TestSubQuestions(t *testing.T) {
	payload := `NESTED questions = ["How many heads are older than 56?"]`
	sub, ok := SubQuestions(payload)
	if !ok {
		t.Fatal("SubQuestions() ok = false")
	}
	if sub != "How many heads are older than 56?" {
		t.Fatalf("sub = %q", sub)
	}
}

func TestSubQuestionsMarkerAbsent(t *testing.T) {
	if _, ok := SubQuestions("NESTED"); ok {
		t.Fatal("SubQuestions() ok = true without marker")
	}
}

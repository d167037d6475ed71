// Package extract pulls delimiter-bounded payloads out of free-form model
// output. All fence and tag handling in the pipeline goes through here so the
// first/last tie-break rules live in one place.
package extract

import (
	"regexp"
	"strings"
)

const (
	// SQLFenceStart and SQLFenceEnd bound generated SQL inside model output.
	SQLFenceStart = "```sql"
	SQLFenceEnd   = "```"

	subQuestionsStart = `questions = ["`
	subQuestionsEnd   = `"]`
)

// Tag returns the text between <name> and </name> along with the end offset
// of the matched content. Greedy matching spans from the first opening tag to
// the last closing tag; non-greedy stops at the first close. A miss returns
// ("", -1), which callers must treat as a signaled absence rather than an
// error.
func Tag(text, name string, greedy bool) (string, int) {
	quoted := regexp.QuoteMeta(name)
	pattern := "(?s)<" + quoted + ">(.*)</" + quoted + ">"
	if !greedy {
		pattern = "(?s)<" + quoted + ">(.*?)</" + quoted + ">"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", -1
	}
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", -1
	}
	return strings.TrimSpace(text[loc[2]:loc[3]]), loc[3]
}

// SQL extracts a fenced SQL payload: everything after the last ```sql marker
// (or the whole text when the opening fence is absent), cut at the next
// closing fence. This is first-fence-pair splitting, not balanced parsing; a
// fence-looking substring inside the SQL itself corrupts the result. The
// second return is false when nothing usable remains.
func SQL(text string) (string, bool) {
	rest := text
	if i := strings.LastIndex(rest, SQLFenceStart); i >= 0 {
		rest = rest[i+len(SQLFenceStart):]
	}
	if j := strings.Index(rest, SQLFenceEnd); j >= 0 {
		rest = rest[:j]
	}
	out := strings.TrimSpace(rest)
	return out, out != ""
}

// SubQuestions extracts the quoted sub-question text a NESTED classification
// payload may embed. The marker pattern is literal; absence means the caller
// should fall back to non-nested handling.
func SubQuestions(classification string) (string, bool) {
	start := strings.Index(classification, subQuestionsStart)
	if start < 0 {
		return "", false
	}
	rest := classification[start+len(subQuestionsStart):]
	end := strings.Index(rest, subQuestionsEnd)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildResultFilePath returns the object key for a staged query result. Keys
// are partitioned by database and UTC date so result archives stay browsable:
// {database}/results/date=YYYY-MM-DD/answer-{answerID}.parquet
func BuildResultFilePath(database, answerID string, askedAt time.Time) (string, error) {
	if err := validatePathComponent(database, "database"); err != nil {
		return "", err
	}
	if err := validatePathComponent(answerID, "answer id"); err != nil {
		return "", err
	}

	ts := askedAt.UTC()
	return path.Join(
		database,
		"results",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("answer-%s.parquet", answerID),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}

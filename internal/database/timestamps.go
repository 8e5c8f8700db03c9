package database

import (
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// timestamp scans DATETIME columns. The driver yields time.Time when it knows the declared column
// type and plain text otherwise (RETURNING clauses), so both are accepted.
type timestamp struct {
	t *time.Time
}

func scanTime(t *time.Time) timestamp {
	return timestamp{t: t}
}

func (ts timestamp) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*ts.t = time.Time{}
		return nil
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	}
	return fmt.Errorf("unsupported timestamp type %T", value)
}

func (ts timestamp) parse(s string) error {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*ts.t = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

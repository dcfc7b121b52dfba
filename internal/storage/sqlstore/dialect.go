package sqlstore

import (
	"strconv"
	"strings"
	"time"
)

// sqliteTimeLayout is fixed width so text ordering of created_at matches time ordering
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

// Dialect captures the differences between the SQL engines the store runs on
type Dialect struct {
	Name        string
	Placeholder func(n int) string
	EncodeTime  func(t time.Time) interface{}
}

// SQLite stores created_at as UTC text, the format CURRENT_TIMESTAMP uses plus microseconds
var SQLite = Dialect{
	Name:        "sqlite3",
	Placeholder: func(int) string { return "?" },
	EncodeTime: func(t time.Time) interface{} {
		return t.UTC().Format(sqliteTimeLayout)
	},
}

// Postgres stores created_at as TIMESTAMPTZ
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	EncodeTime: func(t time.Time) interface{} {
		return t.UTC()
	},
}

// rebind rewrites ? placeholders into the dialect's form
func (d Dialect) rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// decodeTime accepts what the drivers hand back for created_at: time.Time from
// pgx and from go-sqlite3 on DATETIME columns, text from anything else.
func decodeTime(v interface{}) (time.Time, bool) {
	var s string
	switch value := v.(type) {
	case time.Time:
		return value.UTC(), true
	case string:
		s = value
	case []byte:
		s = string(value)
	default:
		return time.Time{}, false
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Package transform turns header-keyed delimited text into rows matching a declared
// BigQuery schema. Each pipeline is described by a Mapping table rather than code.
package transform

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Rule selects how a target column is derived from a source record.
type Rule int

const (
	// Identity copies the source text. A missing column yields NULL.
	Identity Rule = iota
	// Integer parses the source as int64. Empty or non-numeric text yields NULL.
	Integer
	// ListPresence is true iff the source has non-blank text ("criteria were specified").
	ListPresence
	// FlagEquals is true iff the trimmed, lower-cased source is exactly "true".
	FlagEquals
	// DateNormalize turns YYYY/MM/DD into a DATE. Anything else drops the row.
	DateNormalize
	// IngestionDate stamps the processing day; the source is ignored.
	IngestionDate
	// AdvertiserID echoes the invocation's advertiser; the source is ignored.
	AdvertiserID
)

// FieldType is the BigQuery column type a rule produces.
func (r Rule) FieldType() bigquery.FieldType {
	switch r {
	case Integer, AdvertiserID:
		return bigquery.IntegerFieldType
	case ListPresence, FlagEquals:
		return bigquery.BooleanFieldType
	case DateNormalize, IngestionDate:
		return bigquery.DateFieldType
	default:
		return bigquery.StringFieldType
	}
}

// ErrMalformedRow marks a record excluded from the output. It never leaves the iterator.
var ErrMalformedRow = errors.New("malformed row")

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Record is one header-keyed source row.
type Record map[string]string

// Row is one output row. It implements bigquery.ValueSaver.
type Row map[string]bigquery.Value

// Save implements bigquery.ValueSaver.
func (r Row) Save() (map[string]bigquery.Value, string, error) {
	return r, "", nil
}

// Stamp carries the values shared by every row of one invocation.
type Stamp struct {
	AdvertiserID int64
	ImportedAt   civil.Date
}

// Field maps one source column to one target column.
type Field struct {
	Target string
	Source string
	Rule   Rule
}

// Mapping is an ordered field-mapping table.
type Mapping struct {
	Name   string
	Fields []Field
}

// Schema returns the table schema declared by the mapping.
func (m Mapping) Schema() bigquery.Schema {
	schema := make(bigquery.Schema, 0, len(m.Fields))
	for _, f := range m.Fields {
		schema = append(schema, &bigquery.FieldSchema{
			Name: f.Target,
			Type: f.Rule.FieldType(),
		})
	}
	return schema
}

// Apply maps one record. It returns ErrMalformedRow when the record must be dropped.
func (m Mapping) Apply(rec Record, stamp Stamp) (Row, error) {
	row := make(Row, len(m.Fields))
	for _, f := range m.Fields {
		raw, present := rec[f.Source]

		switch f.Rule {
		case Identity:
			if present {
				row[f.Target] = raw
			} else {
				row[f.Target] = nil
			}
		case Integer:
			row[f.Target] = parseInteger(raw)
		case ListPresence:
			row[f.Target] = listPresence(raw)
		case FlagEquals:
			row[f.Target] = flagEquals(raw)
		case DateNormalize:
			d, ok := normalizeDate(raw)
			if !ok {
				return nil, ErrMalformedRow
			}
			row[f.Target] = d
		case IngestionDate:
			row[f.Target] = stamp.ImportedAt
		case AdvertiserID:
			row[f.Target] = stamp.AdvertiserID
		}
	}
	return row, nil
}

func listPresence(v string) bool {
	return strings.TrimSpace(v) != ""
}

func flagEquals(v string) bool {
	return strings.ToLower(strings.TrimSpace(v)) == "true"
}

func parseInteger(v string) bigquery.Value {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return nil
	}
	return n
}

// normalizeDate substitutes '-' for '/' and requires a real YYYY-MM-DD calendar date.
func normalizeDate(v string) (civil.Date, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(v), "/", "-")
	if !isoDate.MatchString(s) {
		return civil.Date{}, false
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, false
	}
	return d, true
}

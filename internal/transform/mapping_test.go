package transform

import (
	"errors"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

func TestListPresence(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"   ", false},
		{"\t\n", false},
		{"Affinity: Sports Fans", true},
		{"false", true},
		{" x ", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := listPresence(tt.input); got != tt.want {
				t.Errorf("listPresence(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFlagEquals(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"True", true},
		{"TRUE ", true},
		{"  tRuE", true},
		{"yes", false},
		{"1", false},
		{"", false},
		{"truex", false},
		{"t rue", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := flagEquals(tt.input); got != tt.want {
				t.Errorf("flagEquals(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input  string
		want   civil.Date
		wantOK bool
	}{
		{"2024/01/15", civil.Date{Year: 2024, Month: 1, Day: 15}, true},
		{"2024-01-15", civil.Date{Year: 2024, Month: 1, Day: 15}, true},
		{" 2024/12/31 ", civil.Date{Year: 2024, Month: 12, Day: 31}, true},
		{"15-01-2024", civil.Date{}, false},
		{"01/15/2024", civil.Date{}, false},
		{"", civil.Date{}, false},
		{"2024/1/5", civil.Date{}, false},
		{"2024/13/45", civil.Date{}, false},
		{"Report Time:", civil.Date{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := normalizeDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("normalizeDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("normalizeDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInteger(t *testing.T) {
	if got := parseInteger(" 12345 "); got != int64(12345) {
		t.Errorf("parseInteger = %v, want 12345", got)
	}
	if got := parseInteger(""); got != nil {
		t.Errorf("parseInteger(\"\") = %v, want nil", got)
	}
	if got := parseInteger("n/a"); got != nil {
		t.Errorf("parseInteger(\"n/a\") = %v, want nil", got)
	}
}

func TestMapping_Apply(t *testing.T) {
	stamp := Stamp{AdvertiserID: 987, ImportedAt: civil.Date{Year: 2026, Month: 10, Day: 16}}
	m := Mapping{
		Name: "test",
		Fields: []Field{
			{Target: "day", Source: "Date", Rule: DateNormalize},
			{Target: "name", Source: "Name", Rule: Identity},
			{Target: "missing", Source: "Not There", Rule: Identity},
			{Target: "imported_at", Rule: IngestionDate},
			{Target: "advertiser_id", Rule: AdvertiserID},
		},
	}

	row, err := m.Apply(Record{"Date": "2024/01/15", "Name": "LI 1", "Advertiser": "1"}, stamp)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if row["day"] != (civil.Date{Year: 2024, Month: 1, Day: 15}) {
		t.Errorf("day = %v", row["day"])
	}
	if row["name"] != "LI 1" {
		t.Errorf("name = %v", row["name"])
	}
	if v, ok := row["missing"]; !ok || v != nil {
		t.Errorf("missing = %v (present %v), want explicit nil", v, ok)
	}
	if row["imported_at"] != stamp.ImportedAt {
		t.Errorf("imported_at = %v", row["imported_at"])
	}
	if row["advertiser_id"] != int64(987) {
		t.Errorf("advertiser_id = %v, want the invocation input", row["advertiser_id"])
	}

	if _, err := m.Apply(Record{"Date": "15-01-2024"}, stamp); !errors.Is(err, ErrMalformedRow) {
		t.Errorf("Apply() with bad date error = %v, want ErrMalformedRow", err)
	}
}

func TestMapping_Schema(t *testing.T) {
	schema := SDFMapping.Schema()
	if len(schema) != len(SDFMapping.Fields) {
		t.Fatalf("schema has %d fields, want %d", len(schema), len(SDFMapping.Fields))
	}

	types := make(map[string]bigquery.FieldType, len(schema))
	booleans := 0
	for _, f := range schema {
		types[f.Name] = f.Type
		if f.Type == bigquery.BooleanFieldType {
			booleans++
		}
	}
	if booleans != 7 {
		t.Errorf("SDF schema has %d boolean columns, want 7", booleans)
	}
	if types["imported_at"] != bigquery.DateFieldType {
		t.Errorf("imported_at type = %v, want DATE", types["imported_at"])
	}
	if types["line_item_id"] != bigquery.IntegerFieldType {
		t.Errorf("line_item_id type = %v, want INTEGER", types["line_item_id"])
	}

	report := ReportMapping.Schema()
	for _, f := range report {
		if f.Name == "reported_at" && f.Type != bigquery.DateFieldType {
			t.Errorf("reported_at type = %v, want DATE", f.Type)
		}
	}
}

func TestRow_Save(t *testing.T) {
	row := Row{"line_item_id": int64(1)}
	values, insertID, err := row.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if insertID != "" {
		t.Errorf("insertID = %q, want empty", insertID)
	}
	if values["line_item_id"] != int64(1) {
		t.Errorf("values = %v", values)
	}
}

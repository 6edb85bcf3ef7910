package enrollment

import (
	"encoding/json"
	"testing"
)

func TestParseRecord_CMSColumns(t *testing.T) {
	rec, err := parseRecord(row("17031", 2023, "March", 1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.CountyFIPS != "17031" || rec.Year != 2023 || rec.Month != "2023-03" {
		t.Errorf("unexpected identity %+v", rec)
	}
	if rec.TotalBenes != 1000 || rec.Counts[MAAndOther] != 600 || rec.Counts[OriginalMedicare] != 400 {
		t.Errorf("unexpected counts %+v", rec.Counts)
	}
	if rec.Period() != (Period{Year: 2023, Month: 3}) {
		t.Errorf("unexpected period %v", rec.Period())
	}
}

func TestParseRecord_MonthEncodings(t *testing.T) {
	tests := []struct {
		name  string
		month interface{}
		year  interface{}
		want  Period
	}{
		{"iso month", "2024-02", nil, Period{2024, 2}},
		{"iso date", "2024-02-01", nil, Period{2024, 2}},
		{"name", "october", float64(2022), Period{2022, 10}},
		{"short name", "Oct", "2022", Period{2022, 10}},
		{"number", float64(7), float64(2021), Period{2021, 7}},
		{"numeric string", "12", json.Number("2021"), Period{2021, 12}},
		{"annual", "Year", float64(2020), Period{2020, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RawRow{"fips": "17031", "month": tt.month, "total_benes": "10"}
			if tt.year != nil {
				r["year"] = tt.year
			}
			rec, err := parseRecord(r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Period() != tt.want {
				t.Errorf("expected %v, got %v", tt.want, rec.Period())
			}
			if tt.want.Annual() && rec.Month != AnnualMonth {
				t.Errorf("annual row should keep the sentinel month, got %q", rec.Month)
			}
		})
	}
}

func TestParseRecord_Rejects(t *testing.T) {
	rows := []RawRow{
		{"fips": "17031", "year": float64(2023)},
		{"fips": "17031", "year": float64(2023), "month": "Smarch"},
		{"fips": "17031", "month": "March"},
		{"fips": "17031", "month": "Year"},
		{"fips": "17031", "year": float64(2023), "month": float64(13)},
		{"fips": "17031", "year": "twenty", "month": "March"},
	}
	for i, r := range rows {
		if _, err := parseRecord(r); err == nil {
			t.Errorf("row %d: expected parse error", i)
		}
	}
}

func TestParseRecord_SuppressedAndNumericFIPS(t *testing.T) {
	rec, err := parseRecord(RawRow{
		"BENE_FIPS_CD":   float64(6037),
		"YEAR":           "2023",
		"MONTH":          "Year",
		"TOT_BENES":      "1,250",
		"DUAL_TOT_BENES": "*",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.CountyFIPS != "06037" {
		t.Errorf("expected padded fips, got %q", rec.CountyFIPS)
	}
	if rec.TotalBenes != 1250 || rec.Counts[DualTotal] != 0 {
		t.Errorf("unexpected counts total=%d dual=%d", rec.TotalBenes, rec.Counts[DualTotal])
	}
}

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod("2023-04"); err != nil || p != (Period{2023, 4}) {
		t.Errorf("unexpected %v %v", p, err)
	}
	if p, err := ParsePeriod("2023"); err != nil || p != (Period{Year: 2023}) {
		t.Errorf("unexpected %v %v", p, err)
	}
	if p, err := ParsePeriod(""); err != nil || !p.IsZero() {
		t.Errorf("unexpected %v %v", p, err)
	}
	if _, err := ParsePeriod("2023-13"); err == nil {
		t.Error("expected error")
	}
}

func TestParseYears(t *testing.T) {
	got := parseYears([]interface{}{float64(2024), map[string]interface{}{"year": "2022"}, float64(2024), "2023", nil})
	want := []int{2022, 2023, 2024}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}

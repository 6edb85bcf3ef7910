package enrollment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AnnualMonth is the month value upstream uses for an annual rollup row.
const AnnualMonth = "Year"

// DefaultYearFloor is the earliest year fetched when no floor is given.
const DefaultYearFloor = 2020

// Category names an enrollment count.
type Category string

const (
	MAAndOther       Category = "ma_and_other"
	OriginalMedicare Category = "original_medicare"
	DualTotal        Category = "dual_total"

	Male   Category = "male"
	Female Category = "female"

	AgeUnder25 Category = "age_lt_25"
	Age25To44  Category = "age_25_44"
	Age45To64  Category = "age_45_64"
	Age65To69  Category = "age_65_69"
	Age70To74  Category = "age_70_74"
	Age75To79  Category = "age_75_79"
	Age80To84  Category = "age_80_84"
	Age85To89  Category = "age_85_89"
	Age90To94  Category = "age_90_94"
	AgeOver94  Category = "age_gt_94"

	RaceWhite          Category = "race_white"
	RaceBlack          Category = "race_black"
	RaceAsianPacific   Category = "race_asian_pacific"
	RaceHispanic       Category = "race_hispanic"
	RaceNativeAmerican Category = "race_native_american"
	RaceOther          Category = "race_other"
)

// ExclusiveGroups lists categories whose members partition total_benes.
var ExclusiveGroups = map[string][]Category{
	"coverage": {MAAndOther, OriginalMedicare},
	"gender":   {Male, Female},
	"age":      {AgeUnder25, Age25To44, Age45To64, Age65To69, Age70To74, Age75To79, Age80To84, Age85To89, Age90To94, AgeOver94},
	"race":     {RaceWhite, RaceBlack, RaceAsianPacific, RaceHispanic, RaceNativeAmerican, RaceOther},
}

// Categories is every category in a stable order.
var Categories = []Category{
	MAAndOther, OriginalMedicare, DualTotal,
	Male, Female,
	AgeUnder25, Age25To44, Age45To64, Age65To69, Age70To74, Age75To79, Age80To84, Age85To89, Age90To94, AgeOver94,
	RaceWhite, RaceBlack, RaceAsianPacific, RaceHispanic, RaceNativeAmerican, RaceOther,
}

// Period is a month of a year, or the whole year when Month is 0.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (p Period) IsZero() bool { return p.Year == 0 }

// Annual reports whether p is an annual rollup period.
func (p Period) Annual() bool { return p.Month == 0 }

// Before orders periods by year, then month. An annual period sorts before
// the months of its year.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// String renders "YYYY-MM" for months and "YYYY" for annual periods.
func (p Period) String() string {
	if p.Annual() {
		return fmt.Sprintf("%04d", p.Year)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ParsePeriod accepts "YYYY-MM" or "YYYY". An empty string is the zero
// period.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, nil
	}
	if len(s) == 4 {
		y, err := strconv.Atoi(s)
		if err != nil {
			return Period{}, fmt.Errorf("invalid period %q", s)
		}
		return Period{Year: y}, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q", s)
	}
	return Period{Year: t.Year(), Month: int(t.Month())}, nil
}

// Record is one enrollment row for one geography and period.
type Record struct {
	CountyFIPS string             `json:"county_fips"`
	Year       int                `json:"year"`
	Month      string             `json:"month"` // "YYYY-MM" or AnnualMonth
	TotalBenes int64              `json:"total_benes"`
	Counts     map[Category]int64 `json:"counts"`

	monthNum int
}

// Annual reports whether r is an annual rollup row.
func (r Record) Annual() bool { return r.Month == AnnualMonth }

func (r Record) Period() Period { return Period{Year: r.Year, Month: r.monthNum} }

// Series is a merged multi-year enrollment extract.
type Series struct {
	Records []Record `json:"records"`
	Years   []int    `json:"years"`
	// Dropped counts rows rejected at ingestion.
	Dropped int `json:"dropped"`
}

// Summary holds totals and percentages for one period.
type Summary struct {
	Period      Period               `json:"period"`
	Granularity string               `json:"granularity"`
	Counties    int                  `json:"counties"`
	TotalBenes  int64                `json:"total_benes"`
	Counts      map[Category]int64   `json:"counts"`
	Percentages map[Category]float64 `json:"percentages"`
}

// TrendPoint is one period of a trend series.
type TrendPoint struct {
	Period      Period               `json:"period"`
	Label       string               `json:"label"`
	TotalBenes  int64                `json:"total_benes"`
	Counts      map[Category]int64   `json:"counts"`
	Percentages map[Category]float64 `json:"percentages"`
}

// Scope is the geography of a benchmark.
type Scope string

const (
	ScopeNational Scope = "national"
	ScopeState    Scope = "state"
	ScopeCounty   Scope = "county"
)

// BenchmarkLevel selects the comparison geography.
type BenchmarkLevel struct {
	Scope Scope  `json:"scope" validate:"required,oneof=national state county"`
	FIPS  string `json:"fips,omitempty"`
}

// Validate checks that FIPS matches the scope: none for national, two
// digits for a state, five for a county.
func (l BenchmarkLevel) Validate() error {
	switch l.Scope {
	case ScopeNational:
		return nil
	case ScopeState:
		if !digits(l.FIPS, 2) {
			return fmt.Errorf("state benchmark needs a 2-digit FIPS code, got %q", l.FIPS)
		}
	case ScopeCounty:
		if !digits(l.FIPS, 5) {
			return fmt.Errorf("county benchmark needs a 5-digit FIPS code, got %q", l.FIPS)
		}
	default:
		return fmt.Errorf("unknown benchmark scope %q", l.Scope)
	}
	return nil
}

// geoLevel is the wire name of the scope.
func (l BenchmarkLevel) geoLevel() string {
	switch l.Scope {
	case ScopeState:
		return "State"
	case ScopeCounty:
		return "County"
	}
	return "National"
}

// BenchmarkSummary places a local summary next to the same figures over
// the benchmark geography.
type BenchmarkSummary struct {
	Level       BenchmarkLevel       `json:"level"`
	Local       Summary              `json:"local"`
	Benchmark   Summary              `json:"benchmark"`
	Difference  map[Category]float64 `json:"difference"`
	Granularity string               `json:"granularity"`
	Warning     string               `json:"warning,omitempty"`
}

func digits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

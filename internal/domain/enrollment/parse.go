package enrollment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/domain/market"
)

// RawRow is an upstream row after the data-service normalization pass.
type RawRow map[string]interface{}

// fieldAliases maps canonical fields to the column names upstream extracts
// use for them. Lookups are case-insensitive.
var fieldAliases = map[string][]string{
	"fips":        {"county_fips", "countyfips", "fips", "fips_code", "bene_fips_cd"},
	"year":        {"year"},
	"month":       {"month", "month_name"},
	"total_benes": {"total_benes", "tot_benes"},

	string(MAAndOther):       {"ma_and_other", "ma_and_oth_benes"},
	string(OriginalMedicare): {"original_medicare", "orgnl_mdcr_benes"},
	string(DualTotal):        {"dual_total", "dual_tot_benes"},

	string(Male):   {"male", "male_tot_benes"},
	string(Female): {"female", "female_tot_benes"},

	string(AgeUnder25): {"age_lt_25", "age_lt_25_benes"},
	string(Age25To44):  {"age_25_44", "age_25_to_44_benes"},
	string(Age45To64):  {"age_45_64", "age_45_to_64_benes"},
	string(Age65To69):  {"age_65_69", "age_65_to_69_benes"},
	string(Age70To74):  {"age_70_74", "age_70_to_74_benes"},
	string(Age75To79):  {"age_75_79", "age_75_to_79_benes"},
	string(Age80To84):  {"age_80_84", "age_80_to_84_benes"},
	string(Age85To89):  {"age_85_89", "age_85_to_89_benes"},
	string(Age90To94):  {"age_90_94", "age_90_to_94_benes"},
	string(AgeOver94):  {"age_gt_94", "age_gt_94_benes"},

	string(RaceWhite):          {"race_white", "white_tot_benes"},
	string(RaceBlack):          {"race_black", "black_tot_benes"},
	string(RaceAsianPacific):   {"race_asian_pacific", "api_tot_benes"},
	string(RaceHispanic):       {"race_hispanic", "hspnc_tot_benes"},
	string(RaceNativeAmerican): {"race_native_american", "natind_tot_benes"},
	string(RaceOther):          {"race_other", "othr_tot_benes"},

	"parent_org":   {"parent_org", "parentorg", "parent_organization"},
	"contract_id":  {"contract_id", "contractid", "contract_number"},
	"plan_id":      {"plan_id", "planid"},
	"plan_name":    {"plan_name", "planname"},
	"publish_date": {"publish_date", "publishdate"},
	"enrollment":   {"enrollment", "enrolled", "total_enrollment"},
}

// lookup returns the first present alias of field.
func (r RawRow) lookup(field string) (interface{}, bool) {
	aliases := fieldAliases[field]
	if aliases == nil {
		aliases = []string{field}
	}
	for _, a := range aliases {
		if v, ok := r[a]; ok && v != nil {
			return v, true
		}
	}
	// Slow path for mixed-case column names.
	for k, v := range r {
		lk := strings.ToLower(k)
		for _, a := range aliases {
			if lk == a && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

// parseRecord converts a raw row into a Record. Count cells that are
// missing or suppressed read as zero; an unrecognized period is an error.
func parseRecord(row RawRow) (Record, error) {
	rec := Record{Counts: make(map[Category]int64, len(Categories))}

	if v, ok := row.lookup("fips"); ok {
		if code, ok := market.NormalizeFIPS(v); ok {
			rec.CountyFIPS = code
		} else {
			rec.CountyFIPS = strings.TrimSpace(fmt.Sprint(v))
		}
	}

	year := 0
	if v, ok := row.lookup("year"); ok {
		n, ok := count(v)
		if !ok || n < 1900 || n > 9999 {
			return Record{}, fmt.Errorf("invalid year %v", v)
		}
		year = int(n)
	}
	monthVal, _ := row.lookup("month")
	p, err := parseMonth(monthVal, year)
	if err != nil {
		return Record{}, err
	}
	rec.Year = p.Year
	rec.monthNum = p.Month
	if p.Annual() {
		rec.Month = AnnualMonth
	} else {
		rec.Month = p.String()
	}

	if v, ok := row.lookup("total_benes"); ok {
		rec.TotalBenes, _ = count(v)
	}
	for _, c := range Categories {
		if v, ok := row.lookup(string(c)); ok {
			rec.Counts[c], _ = count(v)
		}
	}
	return rec, nil
}

// parseMonth reads the month cell. Accepted encodings: the annual sentinel
// "Year", "YYYY-MM" or "YYYY-MM-DD", an English month name, or a month
// number 1-12. The last two need the separate year cell.
func parseMonth(v interface{}, year int) (Period, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return Period{}, fmt.Errorf("missing month")
	case string:
		s = strings.TrimSpace(t)
	case float64, json.Number:
		n, ok := count(t)
		if !ok {
			return Period{}, fmt.Errorf("invalid month %v", v)
		}
		s = strconv.FormatInt(n, 10)
	default:
		return Period{}, fmt.Errorf("invalid month %v", v)
	}

	if strings.EqualFold(s, AnnualMonth) {
		if year == 0 {
			return Period{}, fmt.Errorf("annual row without year")
		}
		return Period{Year: year}, nil
	}
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Period{Year: t.Year(), Month: int(t.Month())}, nil
		}
	}
	if year == 0 {
		return Period{}, fmt.Errorf("month %q without year", s)
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return Period{}, fmt.Errorf("month %d out of range", n)
		}
		return Period{Year: year, Month: n}, nil
	}
	for _, layout := range []string{"January", "Jan"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Period{Year: year, Month: int(t.Month())}, nil
		}
	}
	return Period{}, fmt.Errorf("unrecognized month %q", s)
}

// count reads a non-negative integer cell. Suppressed cells ("*") and
// blanks read as zero with ok false.
func count(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || t < 0 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil && i >= 0 {
			return i, true
		}
		if f, err := t.Float64(); err == nil && f >= 0 {
			return int64(f), true
		}
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if i, err := strconv.ParseInt(s, 10, 64); err == nil && i >= 0 {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
			return int64(f), true
		}
	case int:
		if t >= 0 {
			return int64(t), true
		}
	case int64:
		if t >= 0 {
			return t, true
		}
	}
	return 0, false
}

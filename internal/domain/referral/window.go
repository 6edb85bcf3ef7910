package referral

import "time"

// InLeadWindow reports whether a referral dated referral counts toward an
// admission: admission-maxDays <= referral <= admission, compared as
// calendar days with both ends inclusive.
func InLeadWindow(referral, admission time.Time, maxDays int) bool {
	r := civilDay(referral)
	a := civilDay(admission)
	earliest := a.AddDate(0, 0, -maxDays)
	return !r.Before(earliest) && !r.After(a)
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

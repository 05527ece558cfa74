package running

import (
	"fmt"
	"time"

	"github.com/runcrew/service-running/internal/common/domain"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ParseSchedule combines a YYYY-MM-DD date and an HH:MM time in loc and returns it in UTC.
func ParseSchedule(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, domain.NewValidationError(fmt.Sprintf("invalid schedule %q %q: expected YYYY-MM-DD and HH:MM", date, clock))
	}
	return t.UTC(), nil
}

// FormatSchedule splits t into the date and time strings shown to users in loc.
func FormatSchedule(t time.Time, loc *time.Location) (string, string) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return local.Format(DateLayout), local.Format(TimeLayout)
}

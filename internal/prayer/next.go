package prayer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
)

type NextPrayer struct {
	Name    string `json:"name"`
	Time    string `json:"time"`
	IsSuhur bool   `json:"isSuhur"`
	IsIftar bool   `json:"isIftar"`
}

type Remaining struct {
	Hours        int `json:"hours"`
	Minutes      int `json:"minutes"`
	Seconds      int `json:"seconds"`
	TotalSeconds int `json:"totalSeconds"`
}

// Next returns the first prayer strictly after now. Once Isha has passed
// it returns tomorrow's Fajr. Times are read in now's location.
func Next(t Timings, now time.Time) (NextPrayer, error) {
	prayers := []NextPrayer{
		{Name: "Fajr", Time: t.Fajr, IsSuhur: true},
		{Name: "Sunrise", Time: t.Sunrise},
		{Name: "Dhuhr", Time: t.Dhuhr},
		{Name: "Asr", Time: t.Asr},
		{Name: "Maghrib", Time: t.Maghrib, IsIftar: true},
		{Name: "Isha", Time: t.Isha},
	}

	for _, p := range prayers {
		at, err := timeOn(now, p.Time)
		if err != nil {
			return NextPrayer{}, fmt.Errorf("%s: %w", p.Name, err)
		}
		if at.After(now) {
			return p, nil
		}
	}

	fajr := prayers[0]
	fajr.Name = "Fajr (Tomorrow)"
	return fajr, nil
}

// TimeRemaining counts down from now to hhmm, rolling over to tomorrow
// when hhmm is not after now.
func TimeRemaining(hhmm string, now time.Time) (Remaining, error) {
	target, err := timeOn(now, hhmm)
	if err != nil {
		return Remaining{}, err
	}
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}

	total := max(0, int(target.Sub(now)/time.Second))
	return Remaining{
		Hours:        total / 3600,
		Minutes:      total % 3600 / 60,
		Seconds:      total % 60,
		TotalSeconds: total,
	}, nil
}

// timeOn places "HH:MM" on now's calendar day.
func timeOn(now time.Time, hhmm string) (time.Time, error) {
	h, m, ok := strings.Cut(CleanTime(hhmm), ":")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: time %q is not HH:MM", domain.ErrInvalidRequest, hhmm)
	}
	hour, herr := strconv.Atoi(h)
	minute, merr := strconv.Atoi(m)
	if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: time %q is not HH:MM", domain.ErrInvalidRequest, hhmm)
	}

	y, mo, d := now.Date()
	return time.Date(y, mo, d, hour, minute, 0, 0, now.Location()), nil
}

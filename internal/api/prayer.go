package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/location"
	"github.com/felipepmaragno/ramadan-companion/internal/prayer"
)

type locationView struct {
	Name      string  `json:"name,omitempty"`
	NameBn    string  `json:"nameBn,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Method    int     `json:"method"`
}

// prayerQuery reads lat/lng, or a city name, falling back to Dhaka.
func prayerQuery(r *http.Request) (prayer.Query, locationView, error) {
	v := r.URL.Query()

	method := prayer.DefaultMethod
	if s := v.Get("method"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil {
			return prayer.Query{}, locationView{}, fmt.Errorf("%w: method %q", domain.ErrInvalidRequest, s)
		}
		method = m
	}

	var loc locationView
	switch lat, lng := v.Get("lat"), v.Get("lng"); {
	case lat != "" || lng != "":
		la, err1 := strconv.ParseFloat(lat, 64)
		ln, err2 := strconv.ParseFloat(lng, 64)
		if err1 != nil || err2 != nil {
			return prayer.Query{}, locationView{}, fmt.Errorf("%w: lat and lng must both be numbers", domain.ErrInvalidRequest)
		}
		loc = locationView{Latitude: la, Longitude: ln}
	case v.Get("city") != "":
		city, ok := location.FindCity(v.Get("city"))
		if !ok {
			return prayer.Query{}, locationView{}, fmt.Errorf("%w: unknown city %q", domain.ErrNotFound, v.Get("city"))
		}
		loc = cityView(city)
	default:
		loc = cityView(location.Default())
	}

	loc.Method = method
	return prayer.Query{Latitude: loc.Latitude, Longitude: loc.Longitude, Method: method}, loc, nil
}

func cityView(c location.City) locationView {
	return locationView{Name: c.Name, NameBn: c.NameBn, Country: c.Country, Latitude: c.Lat, Longitude: c.Lng}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", domain.ErrInvalidRequest, name, s)
	}
	return n, nil
}

func (h *Handler) handlePrayerTimes(w http.ResponseWriter, r *http.Request) {
	q, loc, err := prayerQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	date := h.now()
	if s := r.URL.Query().Get("date"); s != "" {
		date, err = time.Parse("02-01-2006", s)
		if err != nil {
			writeDomainError(w, r, fmt.Errorf("%w: date must be DD-MM-YYYY", domain.ErrInvalidRequest))
			return
		}
	}

	day, err := h.prayer.Timings(r.Context(), q, date)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"location":      loc,
		"timings":       day.Timings,
		"meta":          day.Meta,
		"hijriDate":     day.HijriDate,
		"gregorianDate": day.GregorianDate,
		"isRamadan":     day.IsRamadan(),
	})
}

func (h *Handler) handleNextPrayer(w http.ResponseWriter, r *http.Request) {
	q, loc, err := prayerQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	now := h.now()

	day, err := h.prayer.Timings(ctx, q, now)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// The timetable is local to the location; refetch if its calendar day
	// differs from the one we asked for.
	local := now.In(day.Location())
	if local.Format(time.DateOnly) != now.Format(time.DateOnly) {
		if day, err = h.prayer.Timings(ctx, q, local); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}

	next, err := prayer.Next(day.Timings, local)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	remaining, err := prayer.TimeRemaining(next.Time, local)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"location":  loc,
		"timezone":  day.Meta.Timezone,
		"next":      next,
		"remaining": remaining,
		"suhur":     day.Timings.Suhur,
		"iftar":     day.Timings.Iftar,
		"isRamadan": day.IsRamadan(),
	})
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q, loc, err := prayerQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	now := h.now()
	year, err := intParam(r, "year", now.Year())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	month, err := intParam(r, "month", int(now.Month()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	days, err := h.prayer.Calendar(r.Context(), q, year, month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"location": loc,
		"year":     year,
		"month":    month,
		"days":     days,
	})
}

func (h *Handler) handleRamadan(w http.ResponseWriter, r *http.Request) {
	q, loc, err := prayerQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	hijriYear, err := intParam(r, "hijriYear", 0)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if hijriYear == 0 {
		today, err := h.prayer.Timings(ctx, q, h.now())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if hijriYear, err = prayer.CurrentRamadanYear(today); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}

	days, err := h.prayer.RamadanSchedule(ctx, q, hijriYear)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"location":  loc,
		"hijriYear": hijriYear,
		"days":      days,
	})
}

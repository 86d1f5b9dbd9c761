// Package prayer fetches prayer timetables from aladhan.com and derives
// the Ramadan view of them: suhur ends at Fajr and iftar is at Maghrib.
package prayer

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/cache"
	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/httputil"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.aladhan.com/v1"

	// DefaultMethod is University of Islamic Sciences, Karachi.
	DefaultMethod = 1
	maxMethod     = 23

	// Hanafi Asr.
	school = "1"

	RamadanMonth = 9

	timingsTTL  = time.Hour
	calendarTTL = 24 * time.Hour
)

// Query locates a timetable.
type Query struct {
	Latitude  float64
	Longitude float64
	Method    int
}

func (q Query) validate() error {
	if q.Latitude < -90 || q.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v outside -90..90", domain.ErrInvalidRequest, q.Latitude)
	}
	if q.Longitude < -180 || q.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v outside -180..180", domain.ErrInvalidRequest, q.Longitude)
	}
	if q.Method < 0 || q.Method > maxMethod {
		return fmt.Errorf("%w: unknown calculation method %d", domain.ErrInvalidRequest, q.Method)
	}
	return nil
}

func (q Query) values() url.Values {
	return url.Values{
		"latitude":  {strconv.FormatFloat(q.Latitude, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(q.Longitude, 'f', -1, 64)},
		"method":    {strconv.Itoa(q.Method)},
		"school":    {school},
	}
}

type Timings struct {
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"maghrib"`
	Isha    string `json:"isha"`
	Suhur   string `json:"suhur"`
	Iftar   string `json:"iftar"`
}

type Meta struct {
	Timezone  string  `json:"timezone"`
	Method    string  `json:"method"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type HijriDate struct {
	Day         string `json:"day"`
	Month       string `json:"month"`
	MonthAr     string `json:"monthAr"`
	MonthNumber int    `json:"monthNumber"`
	Year        string `json:"year"`
	Designation string `json:"designation"`
	Full        string `json:"full"`
}

type GregorianDate struct {
	Day   string `json:"day"`
	Month string `json:"month"`
	Year  string `json:"year"`
	Full  string `json:"full"`
}

// DayTimes is one day's timetable for one location.
type DayTimes struct {
	Timings       Timings       `json:"timings"`
	Meta          Meta          `json:"meta"`
	HijriDate     HijriDate     `json:"hijriDate"`
	GregorianDate GregorianDate `json:"gregorianDate"`
}

// IsRamadan reports whether the day falls in the Hijri month of Ramadan.
func (d DayTimes) IsRamadan() bool {
	return d.HijriDate.MonthNumber == RamadanMonth
}

// Location returns the timetable's time zone, or UTC when aladhan sent an
// unknown one.
func (d DayTimes) Location() *time.Location {
	if loc, err := time.LoadLocation(d.Meta.Timezone); err == nil && d.Meta.Timezone != "" {
		return loc
	}
	return time.UTC
}

type CalendarDay struct {
	Date         string  `json:"date"`
	Day          string  `json:"day"`
	Weekday      string  `json:"weekday"`
	HijriDay     string  `json:"hijriDay"`
	HijriMonth   string  `json:"hijriMonth"`
	HijriMonthAr string  `json:"hijriMonthAr"`
	HijriYear    string  `json:"hijriYear"`
	IsRamadan    bool    `json:"isRamadan"`
	Timings      Timings `json:"timings"`
}

type RamadanDay struct {
	RamadanDay     int    `json:"ramadanDay"`
	GregorianDate  string `json:"gregorianDate"`
	GregorianDay   string `json:"gregorianDay"`
	GregorianMonth string `json:"gregorianMonth"`
	Weekday        string `json:"weekday"`
	HijriDay       string `json:"hijriDay"`
	Suhur          string `json:"suhur"`
	Iftar          string `json:"iftar"`
	Fajr           string `json:"fajr"`
	Sunrise        string `json:"sunrise"`
	Dhuhr          string `json:"dhuhr"`
	Asr            string `json:"asr"`
	Maghrib        string `json:"maghrib"`
	Isha           string `json:"isha"`
}

type Client struct {
	upstream *httputil.Upstream
	cache    cache.Cache
}

// NewClient builds a Client. c may be nil to disable caching.
func NewClient(upstream *httputil.Upstream, c cache.Cache) *Client {
	return &Client{upstream: upstream, cache: c}
}

// Timings returns the timetable for date at q.
func (c *Client) Timings(ctx context.Context, q Query, date time.Time) (DayTimes, error) {
	if err := q.validate(); err != nil {
		return DayTimes{}, err
	}

	day := date.Format("02-01-2006")
	key := cache.Key("timings", day, q.values().Encode())

	return cache.Fetch(ctx, c.cache, "timings", key, timingsTTL, func(ctx context.Context) (DayTimes, error) {
		data, err := c.upstream.GetData(ctx, "/timings/"+day, q.values())
		if err != nil {
			return DayTimes{}, fmt.Errorf("fetch prayer times: %w", err)
		}
		return parseDayTimes(data), nil
	})
}

// Calendar returns every day of a Gregorian month.
func (c *Client) Calendar(ctx context.Context, q Query, year, month int) ([]CalendarDay, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d outside 1..12", domain.ErrInvalidRequest, month)
	}
	if year < 1 {
		return nil, fmt.Errorf("%w: year %d", domain.ErrInvalidRequest, year)
	}

	path := fmt.Sprintf("/calendar/%d/%d", year, month)
	key := cache.Key("calendar", path, q.values().Encode())

	return cache.Fetch(ctx, c.cache, "calendar", key, calendarTTL, func(ctx context.Context) ([]CalendarDay, error) {
		data, err := c.upstream.GetData(ctx, path, q.values())
		if err != nil {
			return nil, fmt.Errorf("fetch monthly calendar: %w", err)
		}

		days := make([]CalendarDay, 0, 31)
		for _, d := range data.Array() {
			days = append(days, parseCalendarDay(d))
		}
		return days, nil
	})
}

// RamadanSchedule returns the suhur and iftar table for Ramadan of
// hijriYear, numbered from day 1.
func (c *Client) RamadanSchedule(ctx context.Context, q Query, hijriYear int) ([]RamadanDay, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if hijriYear < 1 {
		return nil, fmt.Errorf("%w: hijri year %d", domain.ErrInvalidRequest, hijriYear)
	}

	path := fmt.Sprintf("/hijriCalendar/%d/%d", hijriYear, RamadanMonth)
	key := cache.Key("ramadan", path, q.values().Encode())

	return cache.Fetch(ctx, c.cache, "ramadan", key, calendarTTL, func(ctx context.Context) ([]RamadanDay, error) {
		data, err := c.upstream.GetData(ctx, path, q.values())
		if err != nil {
			return nil, fmt.Errorf("fetch ramadan schedule: %w", err)
		}

		days := make([]RamadanDay, 0, 30)
		for i, d := range data.Array() {
			days = append(days, parseRamadanDay(i+1, d))
		}
		return days, nil
	})
}

// CurrentRamadanYear returns the Hijri year of the next (or current)
// Ramadan as seen from day.
func CurrentRamadanYear(day DayTimes) (int, error) {
	year, err := strconv.Atoi(day.HijriDate.Year)
	if err != nil {
		return 0, fmt.Errorf("parse hijri year %q: %w", day.HijriDate.Year, err)
	}
	if day.HijriDate.MonthNumber > RamadanMonth {
		year++
	}
	return year, nil
}

var tzSuffix = regexp.MustCompile(`\s*\(.*\)`)

// CleanTime strips the zone aladhan sometimes appends: "05:30 (BST)"
// becomes "05:30".
func CleanTime(s string) string {
	return strings.TrimSpace(tzSuffix.ReplaceAllString(s, ""))
}

func parseTimings(t gjson.Result) Timings {
	fajr := CleanTime(t.Get("Fajr").String())
	maghrib := CleanTime(t.Get("Maghrib").String())
	return Timings{
		Fajr:    fajr,
		Sunrise: CleanTime(t.Get("Sunrise").String()),
		Dhuhr:   CleanTime(t.Get("Dhuhr").String()),
		Asr:     CleanTime(t.Get("Asr").String()),
		Maghrib: maghrib,
		Isha:    CleanTime(t.Get("Isha").String()),
		Suhur:   fajr,
		Iftar:   maghrib,
	}
}

func parseDayTimes(data gjson.Result) DayTimes {
	meta := data.Get("meta")
	hijri := data.Get("date.hijri")
	greg := data.Get("date.gregorian")

	return DayTimes{
		Timings: parseTimings(data.Get("timings")),
		Meta: Meta{
			Timezone:  meta.Get("timezone").String(),
			Method:    meta.Get("method.name").String(),
			Latitude:  meta.Get("latitude").Float(),
			Longitude: meta.Get("longitude").Float(),
		},
		HijriDate: HijriDate{
			Day:         hijri.Get("day").String(),
			Month:       hijri.Get("month.en").String(),
			MonthAr:     hijri.Get("month.ar").String(),
			MonthNumber: int(hijri.Get("month.number").Int()),
			Year:        hijri.Get("year").String(),
			Designation: hijri.Get("designation.abbreviated").String(),
			Full:        fmt.Sprintf("%s %s %s", hijri.Get("day").String(), hijri.Get("month.en").String(), hijri.Get("year").String()),
		},
		GregorianDate: GregorianDate{
			Day:   greg.Get("day").String(),
			Month: greg.Get("month.en").String(),
			Year:  greg.Get("year").String(),
			Full:  greg.Get("date").String(),
		},
	}
}

func parseCalendarDay(d gjson.Result) CalendarDay {
	hijri := d.Get("date.hijri")
	greg := d.Get("date.gregorian")

	return CalendarDay{
		Date:         greg.Get("date").String(),
		Day:          greg.Get("day").String(),
		Weekday:      greg.Get("weekday.en").String(),
		HijriDay:     hijri.Get("day").String(),
		HijriMonth:   hijri.Get("month.en").String(),
		HijriMonthAr: hijri.Get("month.ar").String(),
		HijriYear:    hijri.Get("year").String(),
		IsRamadan:    hijri.Get("month.number").Int() == RamadanMonth,
		Timings:      parseTimings(d.Get("timings")),
	}
}

func parseRamadanDay(n int, d gjson.Result) RamadanDay {
	t := parseTimings(d.Get("timings"))
	greg := d.Get("date.gregorian")

	return RamadanDay{
		RamadanDay:     n,
		GregorianDate:  greg.Get("date").String(),
		GregorianDay:   greg.Get("day").String(),
		GregorianMonth: greg.Get("month.en").String(),
		Weekday:        greg.Get("weekday.en").String(),
		HijriDay:       d.Get("date.hijri.day").String(),
		Suhur:          t.Suhur,
		Iftar:          t.Iftar,
		Fajr:           t.Fajr,
		Sunrise:        t.Sunrise,
		Dhuhr:          t.Dhuhr,
		Asr:            t.Asr,
		Maghrib:        t.Maghrib,
		Isha:           t.Isha,
	}
}

// Package content serves the curated duas and daily inspirations shown
// alongside prayer times.
package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
)

const (
	DefaultDuaCount         = 3
	DefaultInspirationCount = 2

	// CategoryAll disables category filtering.
	CategoryAll = "all"
)

type Dua struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	TitleBn         string `json:"titleBn"`
	Arabic          string `json:"arabic"`
	Transliteration string `json:"transliteration"`
	Bangla          string `json:"bangla"`
	English         string `json:"english"`
	Category        string `json:"category"`
	Reference       string `json:"reference"`
}

type DuaCategory struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	LabelBn string `json:"labelBn"`
}

type Ayah struct {
	Arabic    string `json:"arabic"`
	Bangla    string `json:"bangla"`
	English   string `json:"english"`
	Reference string `json:"reference"`
}

type Hadith struct {
	Text      string `json:"text"`
	TextBn    string `json:"textBn"`
	Narrator  string `json:"narrator"`
	Reference string `json:"reference"`
}

type Inspiration struct {
	ID            int    `json:"id"`
	Ayah          Ayah   `json:"ayah"`
	Hadith        Hadith `json:"hadith"`
	Explanation   string `json:"explanation"`
	ExplanationBn string `json:"explanationBn"`
	Theme         string `json:"theme"`
}

var (
	//go:embed duas.json
	duasJSON []byte
	//go:embed inspirations.json
	inspirationsJSON []byte

	duas         = mustLoad[Dua](duasJSON)
	inspirations = mustLoad[Inspiration](inspirationsJSON)
)

var categories = []DuaCategory{
	{CategoryAll, "All Duas", "সকল দোয়া"},
	{"ramadan", "Ramadan", "রমজান"},
	{"daily", "Daily", "দৈনিক"},
	{"forgiveness", "Forgiveness", "ক্ষমা"},
	{"distress", "In Difficulty", "বিপদে"},
}

func mustLoad[T any](data []byte) []T {
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("content: decode embedded table: %v", err))
	}
	return out
}

// Library picks from the embedded tables. The zero value is not usable;
// call NewLibrary.
type Library struct {
	shuffle func(n int, swap func(i, j int))
}

func NewLibrary() *Library {
	return &Library{shuffle: rand.Shuffle}
}

// Duas returns the whole collection in table order.
func Duas() []Dua {
	return slices.Clone(duas)
}

func DuaCategories() []DuaCategory {
	return slices.Clone(categories)
}

// ValidCategory reports whether c filters the collection. Empty means all.
func ValidCategory(c string) bool {
	if c == "" {
		return true
	}
	return slices.ContainsFunc(categories, func(dc DuaCategory) bool { return dc.Value == c })
}

// DuasByCategory returns the duas tagged with category, or all of them for
// "" and CategoryAll.
func DuasByCategory(category string) []Dua {
	if category == "" || category == CategoryAll {
		return Duas()
	}
	var out []Dua
	for _, d := range duas {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// RandomDuas returns up to count distinct duas from category. A count of zero
// or less falls back to DefaultDuaCount and anything above the pool size
// returns the whole pool.
func (l *Library) RandomDuas(count int, category string) ([]Dua, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown dua category %q", domain.ErrInvalidRequest, category)
	}
	pool := DuasByCategory(category)
	l.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:clamp(count, DefaultDuaCount, len(pool))], nil
}

func Inspirations() []Inspiration {
	return slices.Clone(inspirations)
}

// RandomInspiration picks one inspiration. A non-empty seed always maps to the
// same entry so a client session sees a stable pick across reloads.
func (l *Library) RandomInspiration(seed string) Inspiration {
	if seed == "" {
		return inspirations[rand.IntN(len(inspirations))]
	}
	return inspirations[seedIndex(seed, len(inspirations))]
}

// MultipleInspirations returns up to count distinct inspirations, clamped the
// same way as RandomDuas.
func (l *Library) MultipleInspirations(count int) []Inspiration {
	pool := Inspirations()
	l.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:clamp(count, DefaultInspirationCount, len(pool))]
}

func clamp(count, def, size int) int {
	if count <= 0 {
		count = def
	}
	return min(count, size)
}

// seedIndex is the 31-multiplier string hash web clients already use for
// their session seed.
func seedIndex(seed string, n int) int {
	var h int32
	for _, r := range seed {
		h = h*31 + int32(r)
	}
	idx := int(h) % n
	if idx < 0 {
		idx = -idx
	}
	return idx
}

// Package quran reads surah text, translations and recitation audio from
// alquran.cloud.
package quran

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/cache"
	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/httputil"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.alquran.cloud/v1"

	ArabicEdition  = "quran-uthmani"
	BanglaEdition  = "bn.bengali"
	EnglishEdition = "en.asad"
	AudioEdition   = "ar.alafasy"

	SurahCount = 114

	textTTL   = 7 * 24 * time.Hour
	searchTTL = time.Hour
)

type Surah struct {
	Number                 int    `json:"number"`
	Name                   string `json:"name"`
	NameBn                 string `json:"nameBn,omitempty"`
	EnglishName            string `json:"englishName"`
	EnglishNameTranslation string `json:"englishNameTranslation"`
	NumberOfAyahs          int    `json:"numberOfAyahs"`
	RevelationType         string `json:"revelationType"`
}

type Ayah struct {
	Number       int    `json:"number"`
	NumberGlobal int    `json:"numberGlobal"`
	Arabic       string `json:"arabic"`
	Bangla       string `json:"bangla"`
	English      string `json:"english"`
	Juz          int    `json:"juz"`
	Page         int    `json:"page"`
	HizbQuarter  int    `json:"hizbQuarter"`
}

type SurahDetail struct {
	Surah
	Ayahs []Ayah `json:"ayahs"`
}

type AudioAyah struct {
	Number         int      `json:"number"`
	AudioURL       string   `json:"audioUrl"`
	AudioSecondary []string `json:"audioSecondary"`
}

type SurahAudio struct {
	Number      int         `json:"number"`
	Name        string      `json:"name"`
	EnglishName string      `json:"englishName"`
	Ayahs       []AudioAyah `json:"ayahs"`
}

type SearchMatch struct {
	SurahNumber int    `json:"surahNumber"`
	SurahName   string `json:"surahName"`
	AyahNumber  int    `json:"ayahNumber"`
	Text        string `json:"text"`
	Edition     string `json:"edition"`
}

type SearchResult struct {
	Count   int           `json:"count"`
	Matches []SearchMatch `json:"matches"`
}

type Client struct {
	upstream *httputil.Upstream
	cache    cache.Cache
}

func NewClient(upstream *httputil.Upstream, c cache.Cache) *Client {
	return &Client{upstream: upstream, cache: c}
}

// ValidateSurah rejects numbers outside 1..114.
func ValidateSurah(n int) error {
	if n < 1 || n > SurahCount {
		return fmt.Errorf("%w: surah number %d outside 1..%d", domain.ErrInvalidRequest, n, SurahCount)
	}
	return nil
}

// Surahs lists all 114 surahs with their metadata.
func (c *Client) Surahs(ctx context.Context) ([]Surah, error) {
	key := cache.Key("surahs", "all")

	return cache.Fetch(ctx, c.cache, "surahs", key, textTTL, func(ctx context.Context) ([]Surah, error) {
		data, err := c.upstream.GetData(ctx, "/surah", nil)
		if err != nil {
			return nil, fmt.Errorf("fetch surah list: %w", err)
		}

		surahs := make([]Surah, 0, SurahCount)
		for _, s := range data.Array() {
			surahs = append(surahs, parseSurah(s))
		}
		return surahs, nil
	})
}

// Featured returns the surahs commonly recited during Ramadan.
func (c *Client) Featured(ctx context.Context) ([]Surah, error) {
	all, err := c.Surahs(ctx)
	if err != nil {
		return nil, err
	}

	byNumber := make(map[int]Surah, len(all))
	for _, s := range all {
		byNumber[s.Number] = s
	}

	featured := make([]Surah, 0, len(FeaturedSurahs))
	for _, n := range FeaturedSurahs {
		if s, ok := byNumber[n]; ok {
			featured = append(featured, s)
		}
	}
	return featured, nil
}

// Surah returns one surah with the Arabic text and the Bangla and English
// translations aligned ayah by ayah.
func (c *Client) Surah(ctx context.Context, number int) (SurahDetail, error) {
	if err := ValidateSurah(number); err != nil {
		return SurahDetail{}, err
	}

	path := fmt.Sprintf("/surah/%d/editions/%s", number, strings.Join([]string{ArabicEdition, BanglaEdition, EnglishEdition}, ","))
	key := cache.Key("surah", path)

	return cache.Fetch(ctx, c.cache, "surah", key, textTTL, func(ctx context.Context) (SurahDetail, error) {
		data, err := c.upstream.GetData(ctx, path, nil)
		if err != nil {
			return SurahDetail{}, fmt.Errorf("fetch surah %d: %w", number, err)
		}

		editions := data.Array()
		if len(editions) != 3 {
			return SurahDetail{}, fmt.Errorf("%w: expected 3 editions for surah %d, got %d", domain.ErrUpstream, number, len(editions))
		}
		arabic, bangla, english := editions[0], editions[1], editions[2]

		banglaAyahs := bangla.Get("ayahs").Array()
		englishAyahs := english.Get("ayahs").Array()
		textAt := func(ayahs []gjson.Result, i int) string {
			if i < len(ayahs) {
				return ayahs[i].Get("text").String()
			}
			return ""
		}

		detail := SurahDetail{Surah: parseSurah(arabic)}
		for i, a := range arabic.Get("ayahs").Array() {
			detail.Ayahs = append(detail.Ayahs, Ayah{
				Number:       int(a.Get("numberInSurah").Int()),
				NumberGlobal: int(a.Get("number").Int()),
				Arabic:       a.Get("text").String(),
				Bangla:       textAt(banglaAyahs, i),
				English:      textAt(englishAyahs, i),
				Juz:          int(a.Get("juz").Int()),
				Page:         int(a.Get("page").Int()),
				HizbQuarter:  int(a.Get("hizbQuarter").Int()),
			})
		}
		return detail, nil
	})
}

// Audio returns per-ayah recitation URLs by Mishary Al-Afasy.
func (c *Client) Audio(ctx context.Context, number int) (SurahAudio, error) {
	if err := ValidateSurah(number); err != nil {
		return SurahAudio{}, err
	}

	path := fmt.Sprintf("/surah/%d/%s", number, AudioEdition)
	key := cache.Key("audio", path)

	return cache.Fetch(ctx, c.cache, "audio", key, textTTL, func(ctx context.Context) (SurahAudio, error) {
		data, err := c.upstream.GetData(ctx, path, nil)
		if err != nil {
			return SurahAudio{}, fmt.Errorf("fetch audio for surah %d: %w", number, err)
		}

		audio := SurahAudio{
			Number:      int(data.Get("number").Int()),
			Name:        data.Get("name").String(),
			EnglishName: data.Get("englishName").String(),
		}
		for _, a := range data.Get("ayahs").Array() {
			secondary := []string{}
			for _, s := range a.Get("audioSecondary").Array() {
				secondary = append(secondary, s.String())
			}
			audio.Ayahs = append(audio.Ayahs, AudioAyah{
				Number:         int(a.Get("numberInSurah").Int()),
				AudioURL:       a.Get("audio").String(),
				AudioSecondary: secondary,
			})
		}
		return audio, nil
	})
}

// Search finds query in edition (English by default). Upstream failures
// yield an empty result rather than an error.
func (c *Client) Search(ctx context.Context, query, edition string) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, fmt.Errorf("%w: search query is required", domain.ErrInvalidRequest)
	}
	if edition == "" {
		edition = EnglishEdition
	}

	path := "/search/" + url.PathEscape(query) + "/" + url.PathEscape(edition)
	key := cache.Key("search", path)

	result, err := cache.Fetch(ctx, c.cache, "search", key, searchTTL, func(ctx context.Context) (SearchResult, error) {
		data, err := c.upstream.GetData(ctx, path, nil)
		if err != nil {
			return SearchResult{}, err
		}

		res := SearchResult{
			Count:   int(data.Get("count").Int()),
			Matches: []SearchMatch{},
		}
		for _, m := range data.Get("matches").Array() {
			res.Matches = append(res.Matches, SearchMatch{
				SurahNumber: int(m.Get("surah.number").Int()),
				SurahName:   m.Get("surah.englishName").String(),
				AyahNumber:  int(m.Get("numberInSurah").Int()),
				Text:        m.Get("text").String(),
				Edition:     m.Get("edition.identifier").String(),
			})
		}
		return res, nil
	})
	if err != nil {
		slog.Warn("quran search failed", "query", query, "edition", edition, "error", err)
		return SearchResult{Count: 0, Matches: []SearchMatch{}}, nil
	}
	return result, nil
}

func parseSurah(s gjson.Result) Surah {
	n := int(s.Get("number").Int())
	return Surah{
		Number:                 n,
		Name:                   s.Get("name").String(),
		NameBn:                 BanglaName(n),
		EnglishName:            s.Get("englishName").String(),
		EnglishNameTranslation: s.Get("englishNameTranslation").String(),
		NumberOfAyahs:          int(s.Get("numberOfAyahs").Int()),
		RevelationType:         s.Get("revelationType").String(),
	}
}

// ParseNumber parses a surah number from a path segment.
func ParseNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: surah number %q", domain.ErrInvalidRequest, s)
	}
	return n, ValidateSurah(n)
}

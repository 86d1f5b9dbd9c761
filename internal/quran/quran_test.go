package quran

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/felipepmaragno/ramadan-companion/internal/cache"
	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/httputil"
)

const surahListBody = `{"code":200,"status":"OK","data":[
  {"number":1,"name":"سُورَةُ ٱلْفَاتِحَةِ","englishName":"Al-Faatiha","englishNameTranslation":"The Opening","numberOfAyahs":7,"revelationType":"Meccan"},
  {"number":2,"name":"سُورَةُ البَقَرَةِ","englishName":"Al-Baqara","englishNameTranslation":"The Cow","numberOfAyahs":286,"revelationType":"Medinan"},
  {"number":5,"name":"سُورَةُ المَائـِدَةِ","englishName":"Al-Maaida","englishNameTranslation":"The Table","numberOfAyahs":120,"revelationType":"Medinan"},
  {"number":112,"name":"سُورَةُ الإِخۡلَاصِ","englishName":"Al-Ikhlaas","englishNameTranslation":"Sincerity","numberOfAyahs":4,"revelationType":"Meccan"}
]}`

const editionsBody = `{"code":200,"status":"OK","data":[
  {"number":112,"name":"سُورَةُ الإِخۡلَاصِ","englishName":"Al-Ikhlaas","englishNameTranslation":"Sincerity","numberOfAyahs":4,"revelationType":"Meccan",
   "ayahs":[{"number":6222,"text":"قُلْ هُوَ ٱللَّهُ أَحَدٌ","numberInSurah":1,"juz":30,"page":604,"hizbQuarter":240},
            {"number":6223,"text":"ٱللَّهُ ٱلصَّمَدُ","numberInSurah":2,"juz":30,"page":604,"hizbQuarter":240}]},
  {"number":112,"ayahs":[{"text":"বলুন, তিনি আল্লাহ, এক","numberInSurah":1}]},
  {"number":112,"ayahs":[{"text":"SAY: He is the One God","numberInSurah":1},{"text":"God the Eternal","numberInSurah":2}]}
]}`

const audioBody = `{"code":200,"status":"OK","data":{"number":112,"name":"سُورَةُ الإِخۡلَاصِ","englishName":"Al-Ikhlaas",
  "ayahs":[{"numberInSurah":1,"audio":"https://cdn.islamic.network/quran/audio/128/ar.alafasy/6222.mp3","audioSecondary":["https://cdn.islamic.network/quran/audio/64/ar.alafasy/6222.mp3"]},
           {"numberInSurah":2,"audio":"https://cdn.islamic.network/quran/audio/128/ar.alafasy/6223.mp3"}]}}`

const searchBody = `{"code":200,"status":"OK","data":{"count":1,"matches":[
  {"number":6222,"text":"SAY: He is the One God","edition":{"identifier":"en.asad"},"surah":{"number":112,"englishName":"Al-Ikhlaas"},"numberInSurah":1}
]}}`

type fakeAlquran struct {
	calls atomic.Int32
	mux   *http.ServeMux
}

func newFakeAlquran() *fakeAlquran {
	f := &fakeAlquran{mux: http.NewServeMux()}
	f.mux.HandleFunc("GET /surah", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(surahListBody))
	})
	f.mux.HandleFunc("GET /surah/112/editions/quran-uthmani,bn.bengali,en.asad", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(editionsBody))
	})
	f.mux.HandleFunc("GET /surah/112/ar.alafasy", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(audioBody))
	})
	f.mux.HandleFunc("GET /search/{query}/{edition}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("query") != "one god" || r.PathValue("edition") != "en.asad" {
			w.Write([]byte(`{"code":404,"status":"NOT FOUND","data":"Nothing matched your search"}`))
			return
		}
		w.Write([]byte(searchBody))
	})
	return f
}

func (f *fakeAlquran) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	f.mux.ServeHTTP(w, r)
}

func newTestClient(t *testing.T) (*Client, *fakeAlquran) {
	t.Helper()

	fake := newFakeAlquran()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := cache.NewInMemoryCache()
	t.Cleanup(func() { c.Close() })

	return NewClient(httputil.NewUpstream("alquran", srv.URL, srv.Client(), nil), c), fake
}

func TestClient_Surahs(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	surahs, err := client.Surahs(ctx)
	if err != nil {
		t.Fatalf("Surahs() error = %v", err)
	}

	if len(surahs) != 4 {
		t.Fatalf("len(surahs) = %d, want 4", len(surahs))
	}
	if surahs[0].EnglishName != "Al-Faatiha" || surahs[0].NameBn != "আল-ফাতিহা" || surahs[0].NumberOfAyahs != 7 {
		t.Errorf("surahs[0] = %+v", surahs[0])
	}
	if surahs[2].NameBn != "" {
		t.Errorf("surah 5 NameBn = %q, want empty", surahs[2].NameBn)
	}

	featured, err := client.Featured(ctx)
	if err != nil {
		t.Fatalf("Featured() error = %v", err)
	}
	if len(featured) != 2 || featured[0].Number != 1 || featured[1].Number != 112 {
		t.Errorf("Featured() = %+v", featured)
	}

	if n := fake.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestClient_Surah(t *testing.T) {
	client, _ := newTestClient(t)

	detail, err := client.Surah(context.Background(), 112)
	if err != nil {
		t.Fatalf("Surah() error = %v", err)
	}

	if detail.EnglishName != "Al-Ikhlaas" || detail.NameBn != "আল-ইখলাস" {
		t.Errorf("detail = %+v", detail.Surah)
	}
	if len(detail.Ayahs) != 2 {
		t.Fatalf("len(Ayahs) = %d, want 2", len(detail.Ayahs))
	}

	first := detail.Ayahs[0]
	if first.Number != 1 || first.NumberGlobal != 6222 || first.Juz != 30 || first.Page != 604 {
		t.Errorf("Ayahs[0] = %+v", first)
	}
	if first.Bangla != "বলুন, তিনি আল্লাহ, এক" || first.English != "SAY: He is the One God" {
		t.Errorf("Ayahs[0] translations = %q / %q", first.Bangla, first.English)
	}
	if detail.Ayahs[1].Bangla != "" {
		t.Errorf("missing Bangla ayah should be empty, got %q", detail.Ayahs[1].Bangla)
	}
}

func TestClient_Audio(t *testing.T) {
	client, _ := newTestClient(t)

	audio, err := client.Audio(context.Background(), 112)
	if err != nil {
		t.Fatalf("Audio() error = %v", err)
	}

	if len(audio.Ayahs) != 2 {
		t.Fatalf("len(Ayahs) = %d, want 2", len(audio.Ayahs))
	}
	if audio.Ayahs[0].AudioURL == "" || len(audio.Ayahs[0].AudioSecondary) != 1 {
		t.Errorf("Ayahs[0] = %+v", audio.Ayahs[0])
	}
	if audio.Ayahs[1].AudioSecondary == nil {
		t.Error("AudioSecondary should default to an empty list")
	}
}

func TestClient_SurahNumberValidation(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	for _, n := range []int{0, -1, 115} {
		if _, err := client.Surah(ctx, n); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("Surah(%d) error = %v, want ErrInvalidRequest", n, err)
		}
		if _, err := client.Audio(ctx, n); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("Audio(%d) error = %v, want ErrInvalidRequest", n, err)
		}
	}

	if n := fake.calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestClient_Search(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	res, err := client.Search(ctx, " one god ", "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.Count != 1 || len(res.Matches) != 1 {
		t.Fatalf("Search() = %+v", res)
	}
	m := res.Matches[0]
	if m.SurahNumber != 112 || m.SurahName != "Al-Ikhlaas" || m.AyahNumber != 1 || m.Edition != "en.asad" {
		t.Errorf("match = %+v", m)
	}

	res, err = client.Search(ctx, "nothing", "en.asad")
	if err != nil {
		t.Fatalf("Search() should degrade, got error %v", err)
	}
	if res.Count != 0 || res.Matches == nil || len(res.Matches) != 0 {
		t.Errorf("degraded Search() = %+v, want empty", res)
	}

	if _, err := client.Search(ctx, "  ", ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Search(blank) error = %v, want ErrInvalidRequest", err)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"114", 114, false},
		{"115", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNumber(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNumber(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseNumber(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

package tajweed

import (
	"strings"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
)

var rules = []domain.RuleInfo{
	{
		Key:           "idgham",
		Name:          "Idgham",
		NameAr:        "إدغام",
		NameBn:        "ইদগাম",
		Description:   "Merging of Nun Sakinah/Tanween into the following letter",
		DescriptionBn: "নূন সাকিনাহ/তানউইনকে পরবর্তী অক্ষরে মিলিয়ে পড়া",
		Letters:       "ي ر م ل و ن",
	},
	{
		Key:           "ikhfa",
		Name:          "Ikhfa",
		NameAr:        "إخفاء",
		NameBn:        "ইখফা",
		Description:   "Hiding of Nun Sakinah/Tanween with a nasal sound",
		DescriptionBn: "নূন সাকিনাহ/তানউইনকে নাসিকা ধ্বনি দিয়ে গোপন করে পড়া",
		Letters:       "ت ث ج د ذ ز س ش ص ض ط ظ ف ق ك",
	},
	{
		Key:           "iqlab",
		Name:          "Iqlab",
		NameAr:        "إقلاب",
		NameBn:        "ইকলাব",
		Description:   "Converting Nun Sakinah/Tanween to Meem before Ba",
		DescriptionBn: "বা-এর আগে নূন সাকিনাহ/তানউইনকে মীমে পরিবর্তন করে পড়া",
		Letters:       "ب",
	},
	{
		Key:           "izhar",
		Name:          "Izhar",
		NameAr:        "إظهار",
		NameBn:        "ইযহার",
		Description:   "Clear pronunciation of Nun Sakinah/Tanween",
		DescriptionBn: "নূন সাকিনাহ/তানউইনকে স্পষ্টভাবে উচ্চারণ করা",
		Letters:       "ء هـ ع ح غ خ",
	},
	{
		Key:           "ghunnah",
		Name:          "Ghunnah",
		NameAr:        "غنة",
		NameBn:        "গুন্নাহ",
		Description:   "Nasal sound from the nose for 2 beats",
		DescriptionBn: "নাক দিয়ে ২ হরকত পরিমাণ নাসিকা ধ্বনি করা",
	},
	{
		Key:           "madd",
		Name:          "Madd",
		NameAr:        "مد",
		NameBn:        "মাদ",
		Description:   "Elongation of vowel sounds",
		DescriptionBn: "স্বরবর্ণের ধ্বনি দীর্ঘায়িত করা",
		Types:         []string{"Natural (2 beats)", "Connected (4-5 beats)", "Separated (4-5 beats)", "Required (6 beats)"},
	},
	{
		Key:           "qalqalah",
		Name:          "Qalqalah",
		NameAr:        "قلقلة",
		NameBn:        "কলকলাহ",
		Description:   "Bouncing/echoing sound on specific letters when they have sukoon",
		DescriptionBn: "নির্দিষ্ট অক্ষরে সুকুন থাকলে ধ্বনির প্রতিধ্বনি করা",
		Letters:       "ق ط ب ج د",
	},
	{
		Key:           "tafkheem",
		Name:          "Tafkheem",
		NameAr:        "تفخيم",
		NameBn:        "তাফখীম",
		Description:   "Heavy/full pronunciation of certain letters",
		DescriptionBn: "নির্দিষ্ট অক্ষরের ভারী/পূর্ণ উচ্চারণ",
		Letters:       "خ ص ض غ ط ق ظ",
	},
	{
		Key:           "tarqeeq",
		Name:          "Tarqeeq",
		NameAr:        "ترقيق",
		NameBn:        "তারকীক",
		Description:   "Light/thin pronunciation of certain letters",
		DescriptionBn: "নির্দিষ্ট অক্ষরের হালকা/পাতলা উচ্চারণ",
	},
}

// Rules returns the Tajweed rule reference table.
func Rules() []domain.RuleInfo {
	out := make([]domain.RuleInfo, len(rules))
	copy(out, rules)
	return out
}

// LookupRule finds the reference entry mentioned in a free-form rule name
// such as "Ghunnah (nasalization)" or "madd tabee'i". Arabic names match
// too.
func LookupRule(name string) (domain.RuleInfo, bool) {
	lower := strings.ToLower(name)
	if strings.TrimSpace(lower) == "" {
		return domain.RuleInfo{}, false
	}

	for _, r := range rules {
		if strings.Contains(lower, r.Key) || strings.Contains(name, r.NameAr) {
			return r, true
		}
	}
	return domain.RuleInfo{}, false
}

type Severity struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	LabelBn string `json:"labelBn"`
	Color   string `json:"color"`
}

const defaultSeverity = "minor"

var severities = []Severity{
	{Key: "correct", Label: "Correct", LabelBn: "সঠিক", Color: "#22c55e"},
	{Key: "minor", Label: "Minor Issue", LabelBn: "ছোট সমস্যা", Color: "#eab308"},
	{Key: "major", Label: "Major Issue", LabelBn: "বড় সমস্যা", Color: "#ef4444"},
	{Key: "missed", Label: "Missed Word", LabelBn: "বাদ পড়েছে", Color: "#ef4444"},
}

func Severities() []Severity {
	out := make([]Severity, len(severities))
	copy(out, severities)
	return out
}

// normalizeSeverity maps model output onto a known severity key.
func normalizeSeverity(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, sev := range severities {
		if sev.Key == key {
			return key
		}
	}
	return defaultSeverity
}

type PracticeSurah struct {
	Number     int    `json:"number"`
	Name       string `json:"name"`
	NameBn     string `json:"nameBn"`
	AyahCount  int    `json:"ayahCount"`
	Difficulty string `json:"difficulty"`
}

var practiceSurahs = []PracticeSurah{
	{1, "Al-Fatiha", "আল-ফাতিহা", 7, "beginner"},
	{112, "Al-Ikhlas", "আল-ইখলাস", 4, "beginner"},
	{113, "Al-Falaq", "আল-ফালাক", 5, "beginner"},
	{114, "An-Nas", "আন-নাস", 6, "beginner"},
	{108, "Al-Kawthar", "আল-কাউসার", 3, "beginner"},
	{110, "An-Nasr", "আন-নাসর", 3, "beginner"},
	{111, "Al-Masad", "আল-মাসাদ", 5, "beginner"},
	{109, "Al-Kafirun", "আল-কাফিরুন", 6, "intermediate"},
	{107, "Al-Ma'un", "আল-মাউন", 7, "intermediate"},
	{36, "Ya-Sin", "ইয়াসিন", 83, "advanced"},
	{67, "Al-Mulk", "আল-মুলক", 30, "advanced"},
	{55, "Ar-Rahman", "আর-রহমান", 78, "advanced"},
}

// PracticeSurahs lists recommended surahs, optionally filtered by
// difficulty (beginner, intermediate, advanced).
func PracticeSurahs(difficulty string) []PracticeSurah {
	out := make([]PracticeSurah, 0, len(practiceSurahs))
	for _, s := range practiceSurahs {
		if difficulty == "" || strings.EqualFold(s.Difficulty, difficulty) {
			out = append(out, s)
		}
	}
	return out
}

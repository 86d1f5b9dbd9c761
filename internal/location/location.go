// Package location holds the cities offered for quick selection when the
// client cannot supply coordinates.
package location

import "strings"

type City struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	NameBn  string  `json:"nameBn"`
}

var cities = []City{
	{"Dhaka", "Bangladesh", 23.8103, 90.4125, "ঢাকা"},
	{"Chittagong", "Bangladesh", 22.3569, 91.7832, "চট্টগ্রাম"},
	{"Sylhet", "Bangladesh", 24.8949, 91.8687, "সিলেট"},
	{"Rajshahi", "Bangladesh", 24.3745, 88.6042, "রাজশাহী"},
	{"Khulna", "Bangladesh", 22.8456, 89.5403, "খুলনা"},
	{"Barishal", "Bangladesh", 22.701, 90.3535, "বরিশাল"},
	{"Rangpur", "Bangladesh", 25.7439, 89.2752, "রংপুর"},
	{"Mymensingh", "Bangladesh", 24.7471, 90.4203, "ময়মনসিংহ"},
	{"Comilla", "Bangladesh", 23.4607, 91.1809, "কুমিল্লা"},
	{"Gazipur", "Bangladesh", 23.9999, 90.4203, "গাজীপুর"},
	{"Makkah", "Saudi Arabia", 21.4225, 39.8262, "মক্কা"},
	{"Madinah", "Saudi Arabia", 24.4539, 39.6142, "মদিনা"},
	{"Dubai", "UAE", 25.2048, 55.2708, "দুবাই"},
	{"Kolkata", "India", 22.5726, 88.3639, "কলকাতা"},
	{"Delhi", "India", 28.7041, 77.1025, "দিল্লি"},
	{"Mumbai", "India", 19.076, 72.8777, "মুম্বাই"},
	{"Karachi", "Pakistan", 24.8607, 67.0011, "করাচি"},
	{"Islamabad", "Pakistan", 33.6844, 73.0479, "ইসলামাবাদ"},
	{"London", "UK", 51.5074, -0.1278, "লন্ডন"},
	{"New York", "USA", 40.7128, -74.006, "নিউ ইয়র্ক"},
	{"Toronto", "Canada", 43.6532, -79.3832, "টরন্টো"},
	{"Kuala Lumpur", "Malaysia", 3.139, 101.6869, "কুয়ালালামপুর"},
	{"Istanbul", "Turkey", 41.0082, 28.9784, "ইস্তানবুল"},
	{"Cairo", "Egypt", 30.0444, 31.2357, "কায়রো"},
}

// Cities returns the popular cities, Bangladesh first.
func Cities() []City {
	out := make([]City, len(cities))
	copy(out, cities)
	return out
}

// Default is Dhaka.
func Default() City {
	return cities[0]
}

// FindCity matches the English name case-insensitively or the Bangla name
// exactly.
func FindCity(name string) (City, bool) {
	name = strings.TrimSpace(name)
	for _, c := range cities {
		if strings.EqualFold(c.Name, name) || c.NameBn == name {
			return c, true
		}
	}
	return City{}, false
}

package quran

// FeaturedSurahs are commonly recited during Ramadan.
var FeaturedSurahs = []int{1, 36, 55, 56, 67, 97, 112, 113, 114}

// alquran.cloud has no Bangla surah names.
var banglaNames = map[int]string{
	1:   "আল-ফাতিহা",
	2:   "আল-বাকারা",
	3:   "আলে-ইমরান",
	4:   "আন-নিসা",
	18:  "আল-কাহফ",
	36:  "ইয়াসীন",
	55:  "আর-রাহমান",
	56:  "আল-ওয়াকিয়া",
	67:  "আল-মুলক",
	78:  "আন-নাবা",
	87:  "আল-আলা",
	93:  "আদ-দুহা",
	94:  "আশ-শারহ",
	95:  "আত-তীন",
	96:  "আল-আলাক",
	97:  "আল-ক্বদর",
	99:  "আয-যিলযাল",
	100: "আল-আদিয়াত",
	101: "আল-কারিয়া",
	102: "আত-তাকাসুর",
	103: "আল-আসর",
	104: "আল-হুমাযা",
	105: "আল-ফীল",
	106: "কুরাইশ",
	107: "আল-মাউন",
	108: "আল-কাওসার",
	109: "আল-কাফিরূন",
	110: "আন-নাসর",
	111: "আল-লাহাব",
	112: "আল-ইখলাস",
	113: "আল-ফালাক",
	114: "আন-নাস",
}

// BanglaName returns the Bangla name of surah n, or "" when none is known.
func BanglaName(n int) string {
	return banglaNames[n]
}

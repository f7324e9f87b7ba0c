package classify

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NumFeatures is the width of the numeric block appended after the lexical
// columns. It must match FeatureNames and Features.Values.
const NumFeatures = 33

// FeatureNames lists the numeric columns in the order the classifier was
// trained on. Reordering breaks every trained artifact.
var FeatureNames = [NumFeatures]string{
	"url_length", "domain_length", "path_length",
	"num_digits", "num_letters", "num_specials", "digit_ratio", "letter_ratio",
	"has_https", "has_http",
	"has_login", "has_secure", "has_update", "has_banking", "has_verify",
	"num_dots", "num_hyphens", "num_underscores", "num_slashes",
	"num_questions", "num_equals", "num_ats", "num_ampersands",
	"num_subdomains", "has_ip",
	"entropy",
	"has_double_slash", "has_port", "abnormal_tld",
	"uppercase_count", "consecutive_digits", "consecutive_letters", "special_char_ratio",
}

// Features is the fixed-schema numeric description of a normalized URL.
// Field order is the column order; JSON output follows it.
type Features struct {
	URLLength    int `json:"url_length"`
	DomainLength int `json:"domain_length"`
	PathLength   int `json:"path_length"`

	NumDigits   int     `json:"num_digits"`
	NumLetters  int     `json:"num_letters"`
	NumSpecials int     `json:"num_specials"`
	DigitRatio  float64 `json:"digit_ratio"`
	LetterRatio float64 `json:"letter_ratio"`

	HasHTTPS int `json:"has_https"`
	HasHTTP  int `json:"has_http"`

	HasLogin   int `json:"has_login"`
	HasSecure  int `json:"has_secure"`
	HasUpdate  int `json:"has_update"`
	HasBanking int `json:"has_banking"`
	HasVerify  int `json:"has_verify"`

	NumDots        int `json:"num_dots"`
	NumHyphens     int `json:"num_hyphens"`
	NumUnderscores int `json:"num_underscores"`
	NumSlashes     int `json:"num_slashes"`
	NumQuestions   int `json:"num_questions"`
	NumEquals      int `json:"num_equals"`
	NumAts         int `json:"num_ats"`
	NumAmpersands  int `json:"num_ampersands"`

	NumSubdomains int `json:"num_subdomains"`
	HasIP         int `json:"has_ip"`

	Entropy float64 `json:"entropy"`

	HasDoubleSlash int `json:"has_double_slash"`
	HasPort        int `json:"has_port"`
	AbnormalTLD    int `json:"abnormal_tld"`

	UppercaseCount     int     `json:"uppercase_count"`
	ConsecutiveDigits  int     `json:"consecutive_digits"`
	ConsecutiveLetters int     `json:"consecutive_letters"`
	SpecialCharRatio   float64 `json:"special_char_ratio"`
}

var (
	ipv4RE           = regexp.MustCompile(`\p{Nd}{1,3}\.\p{Nd}{1,3}\.\p{Nd}{1,3}\.\p{Nd}{1,3}`)
	abnormalTLDs     = []string{".tk", ".ml", ".ga", ".cf", ".gq"}
	loginWords       = []string{"login", "signin", "account"}
	bankingWords     = []string{"bank", "paypal", "payment"}
	verifyWords      = []string{"verify", "confirm"}
	specialChars     = "@-?=%/&#."
	asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// ExtractFeatures computes the numeric features of a normalized URL. The
// scheme markers are tested against the string as given, so after Normalize
// has stripped them HasHTTPS and HasHTTP are normally 0; the trained model
// expects exactly that distribution.
func ExtractFeatures(u string) Features {
	var f Features

	domain, path, err := splitNetlocPath(u)
	if err != nil {
		domain, path = "", ""
	}

	n := utf8.RuneCountInString(u)
	l := float64(max(n, 1))
	lower := strings.ToLower(u)

	f.URLLength = n
	f.DomainLength = utf8.RuneCountInString(domain)
	f.PathLength = utf8.RuneCountInString(path)

	var punct int
	var digitRun, letterRun int
	for _, r := range u {
		if unicode.IsDigit(r) {
			f.NumDigits++
			digitRun++
			f.ConsecutiveDigits = max(f.ConsecutiveDigits, digitRun)
		} else {
			digitRun = 0
		}
		if unicode.IsLetter(r) {
			f.NumLetters++
		}
		if r < utf8.RuneSelf && isASCIILetter(byte(r)) {
			letterRun++
			f.ConsecutiveLetters = max(f.ConsecutiveLetters, letterRun)
		} else {
			letterRun = 0
		}
		if unicode.IsUpper(r) {
			f.UppercaseCount++
		}
		if strings.ContainsRune(specialChars, r) {
			f.NumSpecials++
		}
		if strings.ContainsRune(asciiPunctuation, r) {
			punct++
		}
	}
	f.DigitRatio = float64(f.NumDigits) / l
	f.LetterRatio = float64(f.NumLetters) / l
	f.SpecialCharRatio = float64(punct) / l

	f.HasHTTPS = flag(strings.Contains(lower, "https"))
	f.HasHTTP = flag(strings.Contains(lower, "http://"))

	f.HasLogin = flag(containsAny(lower, loginWords))
	f.HasSecure = flag(strings.Contains(lower, "secure"))
	f.HasUpdate = flag(strings.Contains(lower, "update"))
	f.HasBanking = flag(containsAny(lower, bankingWords))
	f.HasVerify = flag(containsAny(lower, verifyWords))

	f.NumDots = strings.Count(u, ".")
	f.NumHyphens = strings.Count(u, "-")
	f.NumUnderscores = strings.Count(u, "_")
	f.NumSlashes = strings.Count(u, "/")
	f.NumQuestions = strings.Count(u, "?")
	f.NumEquals = strings.Count(u, "=")
	f.NumAts = strings.Count(u, "@")
	f.NumAmpersands = strings.Count(u, "&")

	f.NumSubdomains = strings.Count(domain, ".")
	f.HasIP = flag(ipv4RE.MatchString(u))

	f.Entropy = shannonEntropy(u)

	if n > 8 {
		f.HasDoubleSlash = flag(strings.Contains(string([]rune(u)[8:]), "//"))
	}
	f.HasPort = flag(strings.Contains(domain, ":"))
	f.AbnormalTLD = flag(hasAnySuffix(u, abnormalTLDs) || hasAnySuffix(Host(u), abnormalTLDs))

	return f
}

// Values returns the features as a numeric row in column order.
func (f Features) Values() []float64 {
	return []float64{
		float64(f.URLLength), float64(f.DomainLength), float64(f.PathLength),
		float64(f.NumDigits), float64(f.NumLetters), float64(f.NumSpecials), f.DigitRatio, f.LetterRatio,
		float64(f.HasHTTPS), float64(f.HasHTTP),
		float64(f.HasLogin), float64(f.HasSecure), float64(f.HasUpdate), float64(f.HasBanking), float64(f.HasVerify),
		float64(f.NumDots), float64(f.NumHyphens), float64(f.NumUnderscores), float64(f.NumSlashes),
		float64(f.NumQuestions), float64(f.NumEquals), float64(f.NumAts), float64(f.NumAmpersands),
		float64(f.NumSubdomains), float64(f.HasIP),
		f.Entropy,
		float64(f.HasDoubleSlash), float64(f.HasPort), float64(f.AbnormalTLD),
		float64(f.UppercaseCount), float64(f.ConsecutiveDigits), float64(f.ConsecutiveLetters), f.SpecialCharRatio,
	}
}

// Host returns the host part of a normalized URL: everything before the
// first path, query or fragment delimiter, without a port.
func Host(normalized string) string {
	h := normalized
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	if i := strings.LastIndexByte(h, '@'); i >= 0 {
		h = h[i+1:]
	}
	if strings.HasPrefix(h, "[") {
		if i := strings.IndexByte(h, ']'); i >= 0 {
			return h[1:i]
		}
		return h
	}
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	return h
}

// shannonEntropy is the entropy in bits of the character distribution of s.
func shannonEntropy(s string) float64 {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	// Summed in first-occurrence order so the result is bit-for-bit stable.
	var order []rune
	counts := make(map[rune]int)
	for _, r := range s {
		if counts[r] == 0 {
			order = append(order, r)
		}
		counts[r]++
	}
	var h float64
	for _, r := range order {
		p := float64(counts[r]) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

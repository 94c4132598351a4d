package whisper

import "strings"

// languageCodes maps the English language names returned in verbose_json
// to the ISO codes local engines report.
var languageCodes = map[string]string{
	"afrikaans":      "af",
	"albanian":       "sq",
	"amharic":        "am",
	"arabic":         "ar",
	"armenian":       "hy",
	"azerbaijani":    "az",
	"basque":         "eu",
	"belarusian":     "be",
	"bengali":        "bn",
	"bosnian":        "bs",
	"bulgarian":      "bg",
	"burmese":        "my",
	"cantonese":      "yue",
	"catalan":        "ca",
	"chinese":        "zh",
	"croatian":       "hr",
	"czech":          "cs",
	"danish":         "da",
	"dutch":          "nl",
	"english":        "en",
	"estonian":       "et",
	"finnish":        "fi",
	"french":         "fr",
	"galician":       "gl",
	"georgian":       "ka",
	"german":         "de",
	"greek":          "el",
	"gujarati":       "gu",
	"hausa":          "ha",
	"hebrew":         "he",
	"hindi":          "hi",
	"hungarian":      "hu",
	"icelandic":      "is",
	"indonesian":     "id",
	"italian":        "it",
	"japanese":       "ja",
	"javanese":       "jw",
	"kannada":        "kn",
	"kazakh":         "kk",
	"khmer":          "km",
	"korean":         "ko",
	"lao":            "lo",
	"latin":          "la",
	"latvian":        "lv",
	"lithuanian":     "lt",
	"macedonian":     "mk",
	"malay":          "ms",
	"malayalam":      "ml",
	"maltese":        "mt",
	"maori":          "mi",
	"marathi":        "mr",
	"mongolian":      "mn",
	"nepali":         "ne",
	"norwegian":      "no",
	"persian":        "fa",
	"polish":         "pl",
	"portuguese":     "pt",
	"punjabi":        "pa",
	"romanian":       "ro",
	"russian":        "ru",
	"serbian":        "sr",
	"sinhala":        "si",
	"slovak":         "sk",
	"slovenian":      "sl",
	"somali":         "so",
	"spanish":        "es",
	"swahili":        "sw",
	"swedish":        "sv",
	"tagalog":        "tl",
	"tamil":          "ta",
	"telugu":         "te",
	"thai":           "th",
	"turkish":        "tr",
	"ukrainian":      "uk",
	"urdu":           "ur",
	"uzbek":          "uz",
	"vietnamese":     "vi",
	"welsh":          "cy",
	"yiddish":        "yi",
	"yoruba":         "yo",
	"haitian creole": "ht",
}

// LanguageCode normalizes a reported language to its code. Values that are
// already codes, or names it does not know, are returned unchanged.
func LanguageCode(reported string) string {
	if code, ok := languageCodes[strings.ToLower(strings.TrimSpace(reported))]; ok {
		return code
	}
	return reported
}

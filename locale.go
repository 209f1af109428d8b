package watari

// Locale identifies a language as the upstream API spells it. Values
// outside the known set pass through unchanged; the API is the source of
// truth for what exists.
type Locale string

// LocaleNone is the "no hardsub" sentinel used as a key in
// [Stream.HardSubs].
const LocaleNone Locale = ""

const (
	LocaleArME  Locale = "ar-ME"
	LocaleArSA  Locale = "ar-SA"
	LocaleDeDE  Locale = "de-DE"
	LocaleEnIN  Locale = "en-IN"
	LocaleEnUS  Locale = "en-US"
	LocaleEs419 Locale = "es-419"
	LocaleEsES  Locale = "es-ES"
	LocaleFrFR  Locale = "fr-FR"
	LocaleHiIN  Locale = "hi-IN"
	LocaleItIT  Locale = "it-IT"
	LocaleJaJP  Locale = "ja-JP"
	LocalePtBR  Locale = "pt-BR"
	LocalePtPT  Locale = "pt-PT"
	LocaleRuRU  Locale = "ru-RU"
	LocaleZhCN  Locale = "zh-CN"
)

// Locales returns every locale known to this library.
func Locales() []Locale {
	return []Locale{
		LocaleArME, LocaleArSA, LocaleDeDE, LocaleEnIN, LocaleEnUS,
		LocaleEs419, LocaleEsES, LocaleFrFR, LocaleHiIN, LocaleItIT,
		LocaleJaJP, LocalePtBR, LocalePtPT, LocaleRuRU, LocaleZhCN,
	}
}

// Human returns a human readable name for the locale, or the raw value if
// it is not known.
func (l Locale) Human() string {
	switch l {
	case LocaleArME, LocaleArSA:
		return "Arabic"
	case LocaleDeDE:
		return "German"
	case LocaleEnIN:
		return "English (India)"
	case LocaleEnUS:
		return "English (US)"
	case LocaleEs419:
		return "Spanish (Latin America)"
	case LocaleEsES:
		return "Spanish (European)"
	case LocaleFrFR:
		return "French"
	case LocaleHiIN:
		return "Hindi"
	case LocaleItIT:
		return "Italian"
	case LocaleJaJP:
		return "Japanese"
	case LocalePtBR:
		return "Portuguese (Brazil)"
	case LocalePtPT:
		return "Portuguese (Europe)"
	case LocaleRuRU:
		return "Russian"
	case LocaleZhCN:
		return "Chinese (China)"
	}
	return string(l)
}

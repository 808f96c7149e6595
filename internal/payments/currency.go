// Package payments integrates the hosted-checkout provider: session
// creation and completion-webhook verification.
package payments

import "strings"

// DefaultCurrency is used when no locale mapping applies.
const DefaultCurrency = "usd"

// currencyByLocale is a fixed locale-to-currency mapping for checkout
// session pricing.
var currencyByLocale = map[string]string{
	"zh":    "cny",
	"zh-CN": "cny",
	"zh-TW": "twd",
	"ja":    "jpy",
	"ko":    "krw",
	"en":    "usd",
}

// CurrencyForLocale resolves the checkout currency for a BCP 47 locale tag.
// Chinese locales other than zh-TW default to CNY.
func CurrencyForLocale(locale string) string {
	if currency, ok := currencyByLocale[locale]; ok {
		return currency
	}
	if strings.HasPrefix(locale, "zh") {
		return "cny"
	}
	if idx := strings.Index(locale, "-"); idx > 0 {
		if currency, ok := currencyByLocale[locale[:idx]]; ok {
			return currency
		}
	}
	return DefaultCurrency
}

// PrimaryLanguage extracts the main language code from an Accept-Language
// header value, falling back to "en".
func PrimaryLanguage(acceptLanguage string) string {
	if acceptLanguage == "" {
		return "en"
	}
	locale := strings.TrimSpace(strings.Split(acceptLanguage, ",")[0])
	if locale == "" {
		return "en"
	}
	return locale
}

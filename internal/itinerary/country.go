package itinerary

import (
	"net/url"
	"sort"
	"strings"

	"github.com/samber/lo"
)

var (
	countryNameKeys = []string{"country", "countryName", "name", "countryCode", "code"}
	currencyKeys    = []string{"currency", "currencyCode", "currency_code", "localCurrency"}
	rateKeys        = []string{"exchangeRate", "exchange_rate", "exchangeRateToUsd", "usdExchangeRate", "rateToUsd"}
	languageKeys    = []string{"languages", "language", "officialLanguages", "spokenLanguages"}
	socketKeys      = []string{"socketType", "socketTypes", "plugType", "plugTypes", "powerSockets", "electricalOutlets"}
	visaKeys        = []string{"visaInfoUrl", "visaUrl", "visaLink", "visaRequirementsUrl", "visa"}
	advisoryKeys    = []string{"travelAdvisoryUrl", "travelAdvisory", "advisoryUrl", "advisoryLink", "safetyAdvisoryUrl"}
)

// collectCountryInfo merges a countryInfo value given as one object, an array of
// per-country objects, or a map keyed by country code.
func collectCountryInfo(v any) *CountryInfo {
	info := &CountryInfo{}
	for _, e := range countryEntries(v) {
		info.Entries++
		mergeCountryEntry(info, e.code, e.fields)
	}
	info.Countries = lo.Uniq(info.Countries)
	info.Currencies = lo.Uniq(info.Currencies)
	info.Languages = lo.UniqBy(info.Languages, strings.ToLower)
	info.SocketTypes = lo.UniqBy(info.SocketTypes, strings.ToUpper)
	return info
}

type countryEntry struct {
	code   string
	fields map[string]any
}

func countryEntries(v any) []countryEntry {
	switch x := v.(type) {
	case []any:
		var out []countryEntry
		for _, item := range x {
			if m, ok := item.(map[string]any); ok {
				out = append(out, countryEntry{fields: m})
			}
		}
		return out
	case map[string]any:
		if isKeyedByCountry(x) {
			codes := lo.Keys(x)
			sort.Strings(codes)
			out := make([]countryEntry, 0, len(codes))
			for _, code := range codes {
				out = append(out, countryEntry{code: code, fields: x[code].(map[string]any)})
			}
			return out
		}
		return []countryEntry{{fields: x}}
	}
	return nil
}

// isKeyedByCountry reports whether m looks like {"PT": {...}, "ES": {...}}.
func isKeyedByCountry(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for _, group := range [][]string{currencyKeys, rateKeys, languageKeys, socketKeys, visaKeys, advisoryKeys} {
		for _, k := range group {
			if _, ok := m[k]; ok {
				return false
			}
		}
	}
	for _, v := range m {
		if _, ok := v.(map[string]any); !ok {
			return false
		}
	}
	return true
}

func mergeCountryEntry(info *CountryInfo, code string, m map[string]any) {
	if name := firstString(m, countryNameKeys...); name != "" {
		info.Countries = append(info.Countries, name)
	} else if code != "" {
		info.Countries = append(info.Countries, strings.ToUpper(code))
	}

	if cur, ok := firstValue(m, currencyKeys...); ok {
		switch c := cur.(type) {
		case string:
			if s := strings.TrimSpace(c); s != "" {
				info.Currencies = append(info.Currencies, s)
			}
		case map[string]any:
			if s := firstString(c, "code", "name", "symbol"); s != "" {
				info.Currencies = append(info.Currencies, s)
			}
			if info.ExchangeRate == nil {
				info.ExchangeRate = firstNumber(c, rateKeys...)
			}
		}
	}
	if info.ExchangeRate == nil {
		info.ExchangeRate = firstNumber(m, rateKeys...)
	}

	if v, ok := firstValue(m, languageKeys...); ok {
		info.Languages = append(info.Languages, stringList(v)...)
	}
	if v, ok := firstValue(m, socketKeys...); ok {
		info.SocketTypes = append(info.SocketTypes, stringList(v)...)
	}
	mergeLink(&info.VisaURL, info, m, visaKeys)
	mergeLink(&info.AdvisoryURL, info, m, advisoryKeys)
}

func mergeLink(dst *string, info *CountryInfo, m map[string]any, keys []string) {
	v, ok := firstValue(m, keys...)
	if !ok {
		return
	}
	var raw string
	switch x := v.(type) {
	case string:
		raw = strings.TrimSpace(x)
	case map[string]any:
		raw = firstString(x, "url", "link", "href")
	}
	if raw == "" {
		return
	}
	if !isWebURL(raw) {
		info.InvalidLinks = append(info.InvalidLinks, raw)
		return
	}
	if *dst == "" {
		*dst = raw
	}
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

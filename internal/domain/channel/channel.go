package channel

import (
	"strings"
	"unicode"
)

// Code identifies a sales channel
type Code string

const (
	CodeMercadoLivre Code = "mercado_livre"
	CodeShopee       Code = "shopee"
	CodeAmazon       Code = "amazon"
	CodeMagalu       Code = "magalu"
	CodeShein        Code = "shein"
	CodeTikTokShop   Code = "tiktok_shop"
	CodeOutro        Code = "outro"
)

// IsValid checks if the code is a known channel
func (c Code) IsValid() bool {
	switch c {
	case CodeMercadoLivre, CodeShopee, CodeAmazon, CodeMagalu, CodeShein, CodeTikTokShop, CodeOutro:
		return true
	}
	return false
}

// String returns the string representation of the channel code
func (c Code) String() string {
	return string(c)
}

// detectionRule maps a store-name fragment to a channel code. Rules are
// evaluated in order; the first matching fragment wins. Fragments short
// enough to appear inside unrelated words match whole tokens only.
type detectionRule struct {
	fragment  string
	code      Code
	wholeWord bool
}

// detectionTable is data-driven on purpose: adding a marketplace report
// format is a one-line change here, not a new branch.
var detectionTable = []detectionRule{
	{"mercado", CodeMercadoLivre, false},
	{"meli", CodeMercadoLivre, false},
	{"ml", CodeMercadoLivre, true},
	{"shopee", CodeShopee, false},
	{"amazon", CodeAmazon, false},
	{"amzn", CodeAmazon, false},
	{"magalu", CodeMagalu, false},
	{"magazine", CodeMagalu, false},
	{"shein", CodeShein, false},
	{"tiktok", CodeTikTokShop, false},
}

// tokenize splits a normalized store name on anything that is not a letter
// or digit
func tokenize(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Detect maps a free-form store/channel name to an internal channel code.
// Matching is case-insensitive substring, except for whole-word fragments
// like "ml" that would otherwise fire inside unrelated names ("html").
// Unknown names map to CodeOutro.
func Detect(storeName string) Code {
	name := strings.ToLower(strings.TrimSpace(storeName))
	if name == "" {
		return CodeOutro
	}
	var tokens []string
	for _, rule := range detectionTable {
		if rule.wholeWord {
			if tokens == nil {
				tokens = tokenize(name)
			}
			for _, token := range tokens {
				if token == rule.fragment {
					return rule.code
				}
			}
			continue
		}
		if strings.Contains(name, rule.fragment) {
			return rule.code
		}
	}
	// Accept exact internal codes as-is
	if c := Code(name); c.IsValid() {
		return c
	}
	return CodeOutro
}

// All returns every known channel code except the fallback
func All() []Code {
	return []Code{CodeMercadoLivre, CodeShopee, CodeAmazon, CodeMagalu, CodeShein, CodeTikTokShop}
}

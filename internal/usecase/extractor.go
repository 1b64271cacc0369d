package usecase

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/hotbags/backend/internal/domain"
)

// Compiled regex patterns for field extraction
var (
	// Matches a two digit size followed by "cm", e.g. "25cm" or "30 cm"
	sizeWithUnitPattern = regexp.MustCompile(`(?i)\b(\d{2})\s?cm\b`)

	// Matches any standalone two digit token
	bareSizePattern = regexp.MustCompile(`\b(\d{2})\b`)

	// Matches a symbol-prefixed amount like "£12,500" or "$ 9800.50"
	pricePattern = regexp.MustCompile(`([£€$])\s?([\d,]+(?:\.\d+)?)`)

	// Matches the token after a stamp marker, e.g. "stamp: U" or "Stamp B-2"
	stampPattern = regexp.MustCompile(`(?i)stamp[:\s]+([A-Za-z0-9-]+)`)
)

type styleMatcher struct {
	style     domain.BagStyle
	fullName  string
	shortName *regexp.Regexp
}

// styleMatchers mirrors domain.BagStyles order; the first matcher that hits wins.
var styleMatchers = buildStyleMatchers()

func buildStyleMatchers() []styleMatcher {
	matchers := make([]styleMatcher, 0, len(domain.BagStyles))
	for _, style := range domain.BagStyles {
		matchers = append(matchers, styleMatcher{
			style:     style,
			fullName:  strings.ToLower(string(style)),
			shortName: shortNamePattern(style.ShortName()),
		})
	}
	return matchers
}

// shortNamePattern matches a style's short name as a whole word. A numeric
// name like "2002" reads as a price or a year on its own, so it only counts
// next to the brand or the word "bag".
func shortNamePattern(short string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(short)
	if _, err := strconv.Atoi(short); err == nil {
		return regexp.MustCompile(`(?i)\bherm[eè]s\s+` + quoted + `\b|\b` + quoted + `\s+bag\b`)
	}
	return regexp.MustCompile(`(?i)\b` + quoted + `\b`)
}

// Extraction holds the fields found in a source text. Nil means no match.
type Extraction struct {
	BagStyle  *domain.BagStyle
	BagSizeCM *int
	Currency  *domain.Currency
	Price     *float64
	Receipt   *bool
	Stamp     *string
}

// Extractor pulls listing fields out of free text with fixed patterns.
type Extractor struct {
	enableDebugLogging bool
}

// NewExtractor creates a new extractor
func NewExtractor(enableDebugLogging bool) *Extractor {
	return &Extractor{enableDebugLogging: enableDebugLogging}
}

// Extract runs every field rule independently over the source text.
func (e *Extractor) Extract(sourceText string) Extraction {
	lower := strings.ToLower(sourceText)

	ex := Extraction{
		BagStyle:  extractBagStyle(sourceText, lower),
		BagSizeCM: extractBagSize(sourceText),
		Currency:  extractCurrency(sourceText, lower),
		Price:     extractPrice(sourceText),
		Receipt:   extractReceipt(lower),
		Stamp:     extractStamp(sourceText),
	}

	if e.enableDebugLogging {
		log.Printf("[EXTRACT] style=%v size=%v currency=%v price=%v receipt=%v stamp=%v",
			deref(ex.BagStyle), deref(ex.BagSizeCM), deref(ex.Currency), deref(ex.Price), deref(ex.Receipt), deref(ex.Stamp))
	}

	return ex
}

func extractBagStyle(text, lower string) *domain.BagStyle {
	for _, m := range styleMatchers {
		if strings.Contains(lower, m.fullName) || m.shortName.MatchString(text) {
			style := m.style
			return &style
		}
	}
	return nil
}

func extractBagSize(text string) *int {
	match := sizeWithUnitPattern.FindStringSubmatch(text)
	if match == nil {
		match = bareSizePattern.FindStringSubmatch(text)
	}
	if match == nil {
		return nil
	}
	size, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return &size
}

// extractCurrency checks each currency in turn and lets a later hit
// overwrite an earlier one, so "£ ... USD" yields USD.
func extractCurrency(text, lower string) *domain.Currency {
	var currency *domain.Currency
	set := func(c domain.Currency) { currency = &c }

	if strings.Contains(text, "£") || strings.Contains(lower, "gbp") {
		set(domain.CurrencyGBP)
	}
	if strings.Contains(text, "€") || strings.Contains(lower, "eur") {
		set(domain.CurrencyEUR)
	}
	if strings.Contains(text, "$") || strings.Contains(lower, "usd") {
		set(domain.CurrencyUSD)
	}
	return currency
}

func extractPrice(text string) *float64 {
	match := pricePattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(match[2], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &price
}

func extractReceipt(lower string) *bool {
	if !strings.Contains(lower, "receipt") {
		return nil
	}
	provided := !(strings.Contains(lower, "no receipt") || strings.Contains(lower, "without receipt"))
	return &provided
}

func extractStamp(text string) *string {
	match := stampPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	stamp := match[1]
	return &stamp
}

func deref[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

package numfmt

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency is one of the enumerated dashboard currencies. Each currency is
// bound to the display locale used for all currency and percentage
// formatting.
type Currency string

const (
	EUR Currency = "EUR"
	BRL Currency = "BRL"
)

var currencyLocales = map[Currency]language.Tag{
	EUR: language.MustParse("fr-FR"),
	BRL: language.MustParse("pt-BR"),
}

var currencySymbols = map[Currency]string{
	EUR: "€",
	BRL: "R$",
}

func ParseCurrency(s string) (Currency, bool) {
	c := Currency(s)
	_, ok := currencyLocales[c]
	return c, ok
}

func (c Currency) Valid() bool {
	_, ok := currencyLocales[c]
	return ok
}

func (c Currency) Locale() language.Tag {
	if tag, ok := currencyLocales[c]; ok {
		return tag
	}
	return currencyLocales[EUR]
}

func (c Currency) Symbol() string {
	if sym, ok := currencySymbols[c]; ok {
		return sym
	}
	return string(c)
}

// Style returns the decimal style of the currency's display locale. Both
// supported locales write decimals with a comma.
func (c Currency) Style() DecimalStyle {
	return CommaDecimal
}

// FormatAmount renders a boundary-style value: symbol plus the number in
// the currency's locale, without fraction digits.
func FormatAmount(v float64, c Currency) string {
	p := message.NewPrinter(c.Locale())
	return p.Sprintf("%s%v", c.Symbol(), number.Decimal(v, number.MaxFractionDigits(0)))
}

// FormatMoney renders a monetary value with two fraction digits.
func FormatMoney(v float64, c Currency) string {
	p := message.NewPrinter(c.Locale())
	return p.Sprintf("%s%v", c.Symbol(),
		number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// FormatPercent renders a percentage with one fraction digit. The input is
// already scaled to percent units (12.5 means 12.5%).
func FormatPercent(v float64, c Currency) string {
	p := message.NewPrinter(c.Locale())
	return p.Sprintf("%v%%", number.Decimal(v, number.MinFractionDigits(1), number.MaxFractionDigits(1)))
}

// FormatCount renders an integer count with locale grouping.
func FormatCount(v float64, c Currency) string {
	p := message.NewPrinter(c.Locale())
	return p.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(0)))
}

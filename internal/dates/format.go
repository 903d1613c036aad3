// Package dates formats publication dates for display.
package dates

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.MustParse("pt-BR"),
	language.English,
	language.Spanish,
}

var matcher = language.NewMatcher(supported)

var shortMonths = [][12]string{
	{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"},
}

// Formatter renders dates as "dd LLL yyyy" with localized month names.
type Formatter struct {
	tag      language.Tag
	months   [12]string
	location *time.Location
}

// New picks the closest supported locale; unknown locales fall back to
// Brazilian Portuguese. A nil location means UTC.
func New(locale string, location *time.Location) *Formatter {
	_, index := language.MatchStrings(matcher, locale)
	if location == nil {
		location = time.UTC
	}
	return &Formatter{
		tag:      supported[index],
		months:   shortMonths[index],
		location: location,
	}
}

func (f *Formatter) Tag() language.Tag {
	return f.tag
}

// Format returns "" for a nil date.
func (f *Formatter) Format(t *time.Time) string {
	if t == nil {
		return ""
	}
	local := t.In(f.location)
	return fmt.Sprintf("%02d %s %04d", local.Day(), f.months[local.Month()-1], local.Year())
}

package pii

import (
	"net"
	"regexp"

	"github.com/siherrmann/ragvault/model"
)

// patternRecognizer detects one entity type by regular expression. An
// optional validate function rejects matches that fail a checksum or
// format check before they become candidates.
type patternRecognizer struct {
	entityType model.EntityType
	score      float64
	pattern    *regexp.Regexp
	validate   func(match string) bool
}

// patternRecognizers covers the entity types detectable without a model.
// Scores reflect pattern specificity: validated formats score high,
// ambiguous number shapes score below the default threshold so they only
// surface when a caller explicitly lowers it.
var patternRecognizers = []patternRecognizer{
	{
		entityType: model.EntityEmailAddress,
		score:      1.0,
		pattern:    regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
	},
	{
		entityType: model.EntityUSSSN,
		score:      0.85,
		pattern:    regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		entityType: model.EntityCreditCard,
		score:      1.0,
		pattern:    regexp.MustCompile(`\b(?:\d[ -]?){13,18}\d\b`),
		validate:   validLuhn,
	},
	{
		entityType: model.EntityPhoneNumber,
		score:      0.7,
		pattern:    regexp.MustCompile(`(?:\+?\d{1,2}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`),
	},
	{
		entityType: model.EntityIPAddress,
		score:      0.95,
		pattern:    regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`),
		validate: func(match string) bool {
			return net.ParseIP(match) != nil
		},
	},
	{
		entityType: model.EntityURL,
		score:      0.6,
		pattern:    regexp.MustCompile(`\bhttps?://[^\s<>"')]+`),
	},
	{
		entityType: model.EntityDateTime,
		score:      0.6,
		pattern:    regexp.MustCompile(`\b(?:\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{4}-\d{2}-\d{2}|(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`),
	},
	{
		entityType: model.EntityMedicalLicense,
		score:      0.75,
		pattern:    regexp.MustCompile(`\b[A-Z]{2}\d{7}\b`),
		validate:   validDEANumber,
	},
	{
		entityType: model.EntityUSPassport,
		score:      0.4,
		pattern:    regexp.MustCompile(`\b\d{9}\b`),
	},
	{
		entityType: model.EntityUSDriverLicense,
		score:      0.4,
		pattern:    regexp.MustCompile(`\b[A-Z]\d{7,8}\b`),
	},
}

// validLuhn reports whether the digits in a candidate card number pass the
// Luhn checksum. Separators are skipped.
func validLuhn(match string) bool {
	var digits []int
	for _, r := range match {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

// validDEANumber checks the DEA registration checksum: the seventh digit is
// the last digit of (d1+d3+d5) + 2*(d2+d4+d6).
func validDEANumber(match string) bool {
	digits := match[2:]
	if len(digits) != 7 {
		return false
	}

	odd := int(digits[0]-'0') + int(digits[2]-'0') + int(digits[4]-'0')
	even := int(digits[1]-'0') + int(digits[3]-'0') + int(digits[5]-'0')

	return (odd+2*even)%10 == int(digits[6]-'0')
}

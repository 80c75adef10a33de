// Package cardid turns raw reader output into the card UID used for
// every lookup.
//
// Readers in the field disagree on encoding. The rules below compensate
// for the two known quirks and are kept as literal as possible: they
// describe hardware behaviour, not a documented protocol.
package cardid

import "strings"

// Width is the number of digits in a canonical numeric UID.
const Width = 10

const minNumericLen = 8

// zeroPrefix is how every printed card number in the existing card
// stock begins. The byte-order fix relies on it.
const zeroPrefix = "000"

// paddedHexOffsets are the positions, in a 20-digit reader string, of
// the digits that make up the printed card number.
var paddedHexOffsets = [Width]int{2, 3, 4, 6, 8, 10, 12, 14, 16, 18}

type rule struct {
	name  string
	match func(s string) bool
	apply func(s string) string
}

// widthRules turn an all-numeric string into a Width-digit candidate.
// The first matching rule wins.
var widthRules = []rule{
	{
		name:  "padded-hex-20",
		match: func(s string) bool { return len(s) == 20 },
		apply: extractPaddedHex,
	},
	{
		name:  "fixed-width",
		match: func(string) bool { return true },
		apply: fitWidth,
	},
}

// orderRules fix digit order on the Width-digit candidate.
var orderRules = []rule{
	{
		name:  "reversed-digits",
		match: reversedDigits,
		apply: reverse,
	},
}

// Normalize never fails. Strings that are not at least 8 digits are
// returned trimmed and upper-cased. Normalize(Normalize(s)) ==
// Normalize(s) for every s.
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) < minNumericLen || !allDigits(s) {
		return s
	}

	s = applyFirst(widthRules, s)
	return applyFirst(orderRules, s)
}

// Rule returns the names of the rules Normalize applied to raw, in
// order. The kiosk logs it with every tap.
func Rule(raw string) []string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) < minNumericLen || !allDigits(s) {
		return nil
	}
	var applied []string
	for _, set := range [][]rule{widthRules, orderRules} {
		for _, r := range set {
			if r.match(s) {
				s = r.apply(s)
				applied = append(applied, r.name)
				break
			}
		}
	}
	return applied
}

func applyFirst(rules []rule, s string) string {
	for _, r := range rules {
		if r.match(s) {
			return r.apply(s)
		}
	}
	return s
}

func extractPaddedHex(s string) string {
	var b [Width]byte
	for i, off := range paddedHexOffsets {
		b[i] = s[off]
	}
	return string(b[:])
}

func fitWidth(s string) string {
	if len(s) >= Width {
		return s[:Width]
	}
	return strings.Repeat("0", Width-len(s)) + s
}

// reversedDigits matches readers that emit the number least significant
// digit first: the candidate lacks the zero prefix but its reverse has it.
func reversedDigits(s string) bool {
	return !strings.HasPrefix(s, zeroPrefix) && strings.HasPrefix(reverse(s), zeroPrefix)
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

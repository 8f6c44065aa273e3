package util

import "strings"

// NormalizeIdentifier trims and upper-cases an ISIN, LEI or MIC.
func NormalizeIdentifier(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// SameIdentifier compares two identifiers after normalization.
func SameIdentifier(a, b string) bool {
	a = NormalizeIdentifier(a)
	return a != "" && a == NormalizeIdentifier(b)
}

// IsISIN checks the ISO 6166 shape: 2 letters, 9 alphanumerics, 1 digit.
// The check digit itself is not verified.
func IsISIN(id string) bool {
	id = NormalizeIdentifier(id)
	if len(id) != 12 {
		return false
	}
	for i := 0; i < 12; i++ {
		c := id[i]
		switch {
		case i < 2:
			if !isUpper(c) {
				return false
			}
		case i == 11:
			if !isDigit(c) {
				return false
			}
		default:
			if !isUpper(c) && !isDigit(c) {
				return false
			}
		}
	}
	return true
}

// IsLEI checks the ISO 17442 shape: 18 alphanumerics followed by 2 check digits.
func IsLEI(id string) bool {
	id = NormalizeIdentifier(id)
	if len(id) != 20 {
		return false
	}
	for i := 0; i < 20; i++ {
		c := id[i]
		if i >= 18 {
			if !isDigit(c) {
				return false
			}
			continue
		}
		if !isUpper(c) && !isDigit(c) {
			return false
		}
	}
	return true
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

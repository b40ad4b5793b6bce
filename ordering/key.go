package ordering

import (
	"errors"
	"math"
	"strings"
)

// Order keys are base-62 strings compared byte-wise. Digits are listed in
// ASCII order so string comparison matches numeric comparison.
const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// keyWidth is enough base-62 digits to hold any uint64.
const keyWidth = 11

var (
	errKeyOrder     = errors.New("order key bounds out of order")
	errTrailingZero = errors.New("order key has a trailing zero")
)

// EncodeIndex maps a non-negative float index to an order key with the same
// ordering. The IEEE-754 bits of a non-negative float grow with its value, so
// the fixed-width base-62 form of the bits sorts like the float. Trailing
// zero digits are trimmed, which keeps the order and lets keys act as
// fractions for midpoint insertion. EncodeIndex(0) is the empty key.
func EncodeIndex(index float64) string {
	if index <= 0 || math.IsNaN(index) {
		return ""
	}
	bits := math.Float64bits(index)

	var buf [keyWidth]byte
	for i := keyWidth - 1; i >= 0; i-- {
		buf[i] = digits[bits%62]
		bits /= 62
	}
	return strings.TrimRight(string(buf[:]), "0")
}

// KeyBetween returns a key strictly between lower and upper.
// An empty lower means "before everything"; hasUpper false means "after everything".
func KeyBetween(lower, upper string, hasUpper bool) (string, error) {
	if hasUpper && lower >= upper {
		return "", errKeyOrder
	}
	if strings.HasSuffix(lower, "0") || (hasUpper && strings.HasSuffix(upper, "0")) {
		return "", errTrailingZero
	}
	return midpoint(lower, upper, hasUpper), nil
}

// midpoint treats keys as base-62 fractions 0.xyz and returns a short key
// strictly between them. lower < upper and neither ends in '0'.
func midpoint(lower, upper string, hasUpper bool) string {
	if hasUpper {
		// Shared prefix, with lower padded by zeros
		n := 0
		for n < len(upper) && digitAt(lower, n) == upper[n] {
			n++
		}
		if n > 0 {
			rest := ""
			if n < len(lower) {
				rest = lower[n:]
			}
			return upper[:n] + midpoint(rest, upper[n:], true)
		}
	}

	lo := 0
	if lower != "" {
		lo = strings.IndexByte(digits, lower[0])
	}
	hi := len(digits)
	if hasUpper {
		hi = strings.IndexByte(digits, upper[0])
	}

	if hi-lo > 1 {
		return string(digits[(lo+hi+1)/2])
	}

	// Consecutive first digits
	if hasUpper && len(upper) > 1 {
		return upper[:1]
	}
	rest := ""
	if len(lower) > 1 {
		rest = lower[1:]
	}
	return string(digits[lo]) + midpoint(rest, "", false)
}

func digitAt(key string, i int) byte {
	if i < len(key) {
		return key[i]
	}
	return '0'
}

package utils

import (
	"strings"
	"time"
)

// MaskCardNumber replaces all but the last four digits of a card number
// with asterisks
func MaskCardNumber(cardNumber string) string {
	if len(cardNumber) <= 4 {
		return cardNumber
	}
	return strings.Repeat("*", len(cardNumber)-4) + cardNumber[len(cardNumber)-4:]
}

// ValidCardNumber reports whether the value looks like a real card
// number: 12 to 19 digits with a valid Luhn check digit
func ValidCardNumber(cardNumber string) bool {
	if len(cardNumber) < 12 || len(cardNumber) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(cardNumber) - 1; i >= 0; i-- {
		c := cardNumber[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
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

// ValidCVV reports whether the value is a 3 or 4 digit CVV code
func ValidCVV(cvv string) bool {
	if len(cvv) != 3 && len(cvv) != 4 {
		return false
	}
	for i := 0; i < len(cvv); i++ {
		if cvv[i] < '0' || cvv[i] > '9' {
			return false
		}
	}
	return true
}

// ValidExpiry reports whether the month/year pair is a real expiry date
// that has not already passed
func ValidExpiry(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return false
	}
	if year < now.Year() || year > now.Year()+20 {
		return false
	}
	if year == now.Year() && time.Month(month) < now.Month() {
		return false
	}
	return true
}

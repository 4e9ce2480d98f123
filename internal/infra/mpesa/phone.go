package mpesa

import "strings"

// NormalizePhone converts Kenyan numbers to the 2547XXXXXXXX form Daraja
// expects. Numbers already in that form are returned unchanged.
func NormalizePhone(phone string) string {
	p := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") && len(p) == 10 {
		return "254" + p[1:]
	}
	return p
}

// ValidPhone reports whether a normalized number looks like a Kenyan mobile number.
func ValidPhone(p string) bool {
	if len(p) != 12 || !strings.HasPrefix(p, "254") {
		return false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

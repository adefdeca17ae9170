package models

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	symbolRe = regexp.MustCompile(`US\$|CDN\$|S\$|R\$|\$|£|€|¥|₹|zł`)
	codeRe   = regexp.MustCompile(`(?i)\b(EUR|USD|GBP|CAD|kr)\b`)
	numberRe = regexp.MustCompile(`\d(?:[\d.,]|[\x{00a0}\x{2009}\x{202f}]\d)*`)
)

// ParseMoney pulls the first amount out of text such as "$1,299.00",
// "1.299,00 €" or "+ S$21.44". No-break and thin spaces may group
// thousands; any other whitespace ends the number. ok is false when there
// is no number.
func ParseMoney(text string) (Money, bool) {
	text = strings.ReplaceAll(text, "&nbsp;", "\u00a0")
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "+"))

	raw := numberRe.FindString(text)
	if raw == "" {
		return Money{}, false
	}
	amount, ok := parseAmount(raw)
	if !ok {
		return Money{}, false
	}

	m := Money{Amount: amount}
	if sym := symbolRe.FindString(text); sym != "" {
		m.Currency = sym
	} else if code := codeRe.FindString(text); code != "" {
		m.Currency = strings.ToUpper(code)
	}
	return m, true
}

// parseAmount normalizes US and European separators. With both kinds
// present the last one is the decimal point.
func parseAmount(raw string) (v float64, ok bool) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	decimal := -1
	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimal = max(lastDot, lastComma)
	case lastDot >= 0:
		if decimal, ok = single(s, ".", lastDot); !ok {
			return 0, false
		}
	case lastComma >= 0:
		if decimal, ok = single(s, ",", lastComma); !ok {
			return 0, false
		}
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case i == decimal:
			b.WriteByte('.')
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// single decides the role of sep when it is the only separator kind in s.
// Repeated, it must group thousands; otherwise three trailing digits mean
// grouping and anything else a decimal point.
func single(s, sep string, last int) (decimal int, ok bool) {
	tail := len(s) - last - 1
	if strings.Count(s, sep) > 1 {
		return -1, tail == 3
	}
	if tail == 3 {
		return -1, true
	}
	return last, true
}

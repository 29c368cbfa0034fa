package files

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// naturalLess는 대소문자를 무시하고 숫자 구간을 수치로 비교합니다 ("file2" < "file10").
func naturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		ra, sizeA := utf8.DecodeRuneInString(a)
		rb, sizeB := utf8.DecodeRuneInString(b)
		if unicode.IsDigit(ra) && unicode.IsDigit(rb) {
			na, restA := splitDigits(a)
			nb, restB := splitDigits(b)
			if c := compareDigits(na, nb); c != 0 {
				return c < 0
			}
			a, b = restA, restB
			continue
		}
		if ra != rb {
			return ra < rb
		}
		a = a[sizeA:]
		b = b[sizeB:]
	}
	return len(a) < len(b)
}

func splitDigits(s string) (string, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		// 비 ASCII 숫자는 한 글자로 취급
		_, size := utf8.DecodeRuneInString(s)
		return s[:size], s[size:]
	}
	return s[:i], s[i:]
}

func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

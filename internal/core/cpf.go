package core

import "unicode"

// ValidateCPF checks a Brazilian CPF number using the standard mod-11
// checksum over both verification digits. Punctuation (dots, dash) is
// ignored; the input must contain exactly eleven digits.
func ValidateCPF(s string) error {
	digits := make([]int, 0, 11)
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits = append(digits, int(r-'0'))
		case r == '.' || r == '-' || r == ' ':
			// formatting characters
		default:
			return ErrInvalidCPF
		}
	}
	if len(digits) != 11 {
		return ErrInvalidCPF
	}

	// CPFs with all digits equal pass the checksum but are not valid.
	same := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			same = false
			break
		}
	}
	if same {
		return ErrInvalidCPF
	}

	if checkDigit(digits[:9], 10) != digits[9] {
		return ErrInvalidCPF
	}
	if checkDigit(digits[:10], 11) != digits[10] {
		return ErrInvalidCPF
	}
	return nil
}

func checkDigit(digits []int, weight int) int {
	sum := 0
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

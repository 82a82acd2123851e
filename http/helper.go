package http

import "errors"

var errInvalidNumber = errors.New("invalid number")

func atoi(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, errInvalidNumber
	}
	var n int
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errInvalidNumber
		}
		n = n*10 + int(c-'0')
		if n < 0 {
			return 0, errInvalidNumber
		}
	}
	return n, nil
}

// Helper function to write integer to buffer without allocation
func writeIntToBuffer(n int64, buf []byte) int {
	if n == 0 {
		buf[0] = '0'
		return 1
	}

	temp := n
	digits := 0
	for temp > 0 {
		digits++
		temp /= 10
	}

	for i := digits - 1; i >= 0; i-- {
		buf[i] = '0' + byte(n%10)
		n /= 10
	}

	return digits
}

// Convert integer to hex without allocation
func writeHexToBuffer(n int, buf []byte) int {
	if n == 0 {
		buf[0] = '0'
		return 1
	}

	const hexDigits = "0123456789abcdef"
	digits := 0
	temp := n

	for temp > 0 {
		digits++
		temp >>= 4
	}

	for i := digits - 1; i >= 0; i-- {
		buf[i] = hexDigits[n&0xF]
		n >>= 4
	}

	return digits
}

func hasPrefixAt(data []byte, i int, prefix []byte) bool {
	if i+len(prefix) > len(data) {
		return false
	}
	for j, c := range prefix {
		if data[i+j] != c {
			return false
		}
	}
	return true
}

package charset

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

var (
	// ErrEmptyAlphabet is returned when an alphabet has no characters
	ErrEmptyAlphabet = errors.New("alphabet is empty")
	// ErrSpaceOverflow is returned when base^length does not fit in a uint64 index
	ErrSpaceOverflow = errors.New("password space exceeds 64-bit index range")
	// ErrUnknownPreset is returned by Resolve for an unrecognised preset name
	ErrUnknownPreset = errors.New("unknown charset preset")
)

// Alphabet is an ordered sequence of characters. The position of a character
// is its digit value. Duplicates are not rejected; they just shrink the
// number of distinct passwords.
type Alphabet string

// Base returns the radix used for index encoding
func (a Alphabet) Base() int {
	return len(a)
}

// Validate checks the alphabet can drive an enumeration
func (a Alphabet) Validate() error {
	if len(a) == 0 {
		return ErrEmptyAlphabet
	}
	return nil
}

// Encode maps index to the password of exactly length characters whose
// most significant digit comes first. Callers must ensure
// index < Base()^length, length >= 1 and a non-empty alphabet.
func Encode(index uint64, alphabet Alphabet, length int) string {
	base := uint64(len(alphabet))
	buf := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		buf[i] = alphabet[index%base]
		index /= base
	}
	return string(buf)
}

// Decode is the inverse of Encode. It returns false if password contains a
// character outside the alphabet. With duplicate characters the first
// occurrence wins.
func Decode(password string, alphabet Alphabet) (uint64, bool) {
	base := uint64(len(alphabet))
	var index uint64
	for i := 0; i < len(password); i++ {
		digit := strings.IndexByte(string(alphabet), password[i])
		if digit < 0 {
			return 0, false
		}
		index = index*base + uint64(digit)
	}
	return index, true
}

// Space returns base^length, the number of candidates of one length.
func Space(base, length int) (uint64, error) {
	if base <= 0 {
		return 0, ErrEmptyAlphabet
	}
	if length < 0 {
		return 0, fmt.Errorf("negative length %d", length)
	}
	total := uint64(1)
	for i := 0; i < length; i++ {
		hi, lo := bits.Mul64(total, uint64(base))
		if hi != 0 {
			return 0, fmt.Errorf("%w: %d^%d", ErrSpaceOverflow, base, length)
		}
		total = lo
	}
	return total, nil
}

// TotalSpace returns the sum of Space(base, l) for l in [minLen, maxLen]
func TotalSpace(base, minLen, maxLen int) (uint64, error) {
	var sum uint64
	for l := minLen; l <= maxLen; l++ {
		n, err := Space(base, l)
		if err != nil {
			return 0, err
		}
		var carry uint64
		sum, carry = bits.Add64(sum, n, 0)
		if carry != 0 {
			return 0, fmt.Errorf("%w: lengths %d..%d", ErrSpaceOverflow, minLen, maxLen)
		}
	}
	return sum, nil
}

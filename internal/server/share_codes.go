package server

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// shareCodeAlphabet leaves out I, O, 0 and 1 so codes survive being read aloud.
const shareCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const shareCodeLength = 6

var ErrInvalidShareCode = errors.New("INVALID_SHARE_CODE: Share code must be 6 characters (A-Z without I and O, 2-9)")

func GenerateShareCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, shareCodeLength)
		for i := range code {
			code[i] = shareCodeAlphabet[rand.IntN(len(shareCodeAlphabet))]
		}
		shareCode := string(code)

		if !usedCodes[shareCode] {
			return shareCode
		}
	}
}

func ValidateShareCode(code string) error {
	if len(code) != shareCodeLength {
		return ErrInvalidShareCode
	}
	for _, ch := range strings.ToUpper(code) {
		if !strings.ContainsRune(shareCodeAlphabet, ch) {
			return ErrInvalidShareCode
		}
	}
	return nil
}

func NormalizeShareCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Package nickname normalizes and validates in-game nicknames submitted for
// member verification.
package nickname

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

const (
	MinLength = 2
	MaxLength = 12
)

var (
	ErrEmpty      = errors.New("nickname is empty")
	ErrLength     = errors.New("nickname must be 2 to 12 characters")
	ErrCharacters = errors.New("nickname may contain only Hangul, Latin letters and digits")
	ErrReserved   = errors.New("nickname is reserved")
)

var (
	allowed = re2.MustCompile(`^[\p{Hangul}A-Za-z0-9]+$`)
	// невидимые символы, которыми обходят проверку на совпадение
	invisible = re2.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{3164}]`)
	reserved  = re2.MustCompile(`(?i)^(admin|administrator|moderator|운영자|관리자|동글봇)$`)
)

// Normalize composes Hangul jamo (NFC), drops invisible characters and
// trims surrounding spaces.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = invisible.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Validate checks a normalized nickname.
func Validate(s string) error {
	if s == "" {
		return ErrEmpty
	}
	if n := utf8.RuneCountInString(s); n < MinLength || n > MaxLength {
		return ErrLength
	}
	if !allowed.MatchString(s) {
		return ErrCharacters
	}
	if reserved.MatchString(s) {
		return ErrReserved
	}
	return nil
}

// Clean normalizes s and validates the result.
func Clean(s string) (string, error) {
	s = Normalize(s)
	return s, Validate(s)
}

// Message returns the Korean message shown to the member for a validation
// error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrEmpty):
		return "닉네임을 입력해 주세요."
	case errors.Is(err, ErrLength):
		return "닉네임은 2~12자여야 합니다."
	case errors.Is(err, ErrCharacters):
		return "닉네임에는 한글, 영문, 숫자만 사용할 수 있습니다."
	case errors.Is(err, ErrReserved):
		return "사용할 수 없는 닉네임입니다."
	default:
		return "닉네임을 확인할 수 없습니다."
	}
}

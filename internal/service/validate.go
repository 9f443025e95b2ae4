package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/Spok95/group-grader/internal/apperr"
)

func checkLen(field, v string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(v)
	if n < minLen || n > maxLen {
		return fmt.Errorf("%w: %s должно быть от %d до %d символов", apperr.ErrInvalidInput, field, minLen, maxLen)
	}
	return nil
}

func checkRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s должно быть от %d до %d", apperr.ErrInvalidInput, field, lo, hi)
	}
	return nil
}

func checkEmail(v string) error {
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || !strings.Contains(v, "@") {
		return fmt.Errorf("%w: некорректный email %q", apperr.ErrInvalidInput, v)
	}
	return nil
}

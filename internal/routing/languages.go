package routing

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/edgard/supportbot/internal/database"
)

// ParseLanguages splits a raw registration argument such as "RU, en ,,uz" on commas and
// whitespace and returns the normalized language set. It fails with ErrInvalidArgument when
// nothing usable remains.
func ParseLanguages(raw string) (database.LanguageSet, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	return NormalizeLanguages(fields)
}

// NormalizeLanguages lower-cases and trims every code, drops blanks and duplicates, and keeps
// first-seen order.
func NormalizeLanguages(codes []string) (database.LanguageSet, error) {
	normalized := lo.Uniq(lo.FilterMap(codes, func(code string, _ int) (string, bool) {
		code = normalizeLanguage(code)
		return code, code != ""
	}))
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: at least one language code is required", ErrInvalidArgument)
	}
	return normalized, nil
}

func normalizeLanguage(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

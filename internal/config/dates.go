package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// relExprRegex matches relative date expressions such as "3 days ago",
// "-2 weeks", "1month" or "6m". The unit is years, months, weeks or days.
var relExprRegex = regexp.MustCompile(`^(-?\d+)\s*(y|yr|yrs|year|years|m|mo|month|months|w|wk|week|weeks|d|day|days)(\s+ago)?$`)

// ResolveDateExpr resolves a date expression to a concrete instant.
//
// Two forms are accepted: an absolute date in any format dateparse
// understands ("2024-01-15", "Jan 2 2024"), or an offset relative to now
// ("3 months ago", "2w"). Relative expressions always point into the past
// regardless of sign.
func ResolveDateExpr(expr string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date expression")
	}

	if m := relExprRegex.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing offset %q: %w", m[1], err)
		}
		if n < 0 {
			n = -n
		}
		switch m[2][0] {
		case 'y':
			return now.AddDate(-n, 0, 0), nil
		case 'w':
			return now.AddDate(0, 0, -7*n), nil
		case 'd':
			return now.AddDate(0, 0, -n), nil
		case 'm':
			return now.AddDate(0, -n, 0), nil
		}
	}

	t, err := dateparse.ParseAny(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date expression %q: %w", expr, err)
	}
	return t, nil
}

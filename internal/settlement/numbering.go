package settlement

import (
	"fmt"
	"strconv"
	"strings"
)

// Statement numbers look like STL-2026-0042: prefix, calendar year,
// zero-padded sequence, scoped per organization per year. The sequence is
// max-so-far plus one, re-read inside the transaction that inserts the
// settlement; the unique index on (organization_id, statement_number)
// turns a concurrent double-read into a retryable conflict instead of a
// duplicate.

func FormatStatementNumber(prefix string, year, sequence, padding int) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, padding, sequence)
}

// ParseStatementSequence extracts the sequence from a statement number of
// the given prefix and year. ok=false for foreign formats.
func ParseStatementSequence(number, prefix string, year int) (int, bool) {
	want := fmt.Sprintf("%s-%d-", prefix, year)
	if !strings.HasPrefix(number, want) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(number, want))
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// MaxSequence scans existing statement numbers for the year and returns
// the highest sequence, 0 when none match.
func MaxSequence(numbers []string, prefix string, year int) int {
	max := 0
	for _, n := range numbers {
		if seq, ok := ParseStatementSequence(n, prefix, year); ok && seq > max {
			max = seq
		}
	}
	return max
}

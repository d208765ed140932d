package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatStatementNumber(t *testing.T) {
	assert.Equal(t, "STL-2026-0042", FormatStatementNumber("STL", 2026, 42, 4))
	assert.Equal(t, "PAY-2025-7", FormatStatementNumber("PAY", 2025, 7, 0))
	assert.Equal(t, "STL-2026-10001", FormatStatementNumber("STL", 2026, 10001, 4))
}

func TestParseStatementSequence(t *testing.T) {
	seq, ok := ParseStatementSequence("STL-2026-0042", "STL", 2026)
	assert.True(t, ok)
	assert.Equal(t, 42, seq)

	_, ok = ParseStatementSequence("STL-2025-0042", "STL", 2026)
	assert.False(t, ok, "wrong year")

	_, ok = ParseStatementSequence("PAY-2026-0042", "STL", 2026)
	assert.False(t, ok, "wrong prefix")

	_, ok = ParseStatementSequence("STL-2026-abc", "STL", 2026)
	assert.False(t, ok, "non-numeric sequence")
}

func TestMaxSequence(t *testing.T) {
	numbers := []string{
		"STL-2026-0001",
		"STL-2026-0017",
		"STL-2025-0400",
		"PAY-2026-9999",
		"garbage",
	}

	assert.Equal(t, 17, MaxSequence(numbers, "STL", 2026))
	assert.Equal(t, 400, MaxSequence(numbers, "STL", 2025))
	assert.Equal(t, 0, MaxSequence(numbers, "STL", 2024))
	assert.Equal(t, 0, MaxSequence(nil, "STL", 2026))
}

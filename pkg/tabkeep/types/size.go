package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

// Binary units. Capture limits are measured in these, as the extension
// does.
const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
)

var (
	// ErrInvalidSize is returned for a size string ParseSize cannot read.
	ErrInvalidSize = errors.New("invalid size format")
	// ErrNegativeSize is returned for sizes below zero.
	ErrNegativeSize = errors.New("size cannot be negative")
)

// ParseSize reads a config size such as "50MiB", "50MB", "1.5G" or
// "2048". Units are always binary: "50MB" and "50MiB" both mean 50*2^20
// bytes. Fractions are truncated to whole bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	case strings.HasPrefix(s, "-"):
		return 0, ErrNegativeSize
	}

	n, err := humanize.ParseBytes(binaryUnit(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// binaryUnit rewrites the unit of s into its IEC spelling, so humanize
// reads "M" and "MB" as MiB rather than as powers of 1000.
func binaryUnit(s string) string {
	i := strings.IndexFunc(s, unicode.IsLetter)
	if i < 0 {
		return s
	}
	num, unit := s[:i], strings.ToUpper(strings.TrimSpace(s[i:]))
	unit = strings.TrimSuffix(unit, "B")
	unit = strings.TrimSuffix(unit, "I")
	if unit == "" {
		return num
	}
	return num + unit + "iB"
}

// FormatSize renders bytes with IEC units, e.g. "1.5 MiB".
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(max(bytes, 0)))
}

package directory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrRange = errors.New("invalid range")

// Range selects brokers by id, inclusive. End 0 means "through the last broker".
type Range struct {
	Start int
	End   int
}

// All selects every broker.
var All = Range{Start: 1}

func (r Range) Open() bool {
	return r.End == 0
}

// String renders the range in the form ParseRange accepts.
func (r Range) String() string {
	switch {
	case r.Open():
		return fmt.Sprintf("%d-", r.Start)
	case r.Start == r.End:
		return strconv.Itoa(r.Start)
	default:
		return fmt.Sprintf("%d-%d", r.Start, r.End)
	}
}

// ParseRange accepts "a-b", "a-", "-b" and "a".
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	startStr, endStr, found := strings.Cut(s, "-")
	if !found {
		n, err := parseID(s)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: n, End: n}, nil
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)
	if startStr == "" && endStr == "" {
		return Range{}, fmt.Errorf("%w: %q needs a start or an end", ErrRange, s)
	}

	r := Range{Start: 1}
	var err error
	if startStr != "" {
		if r.Start, err = parseID(startStr); err != nil {
			return Range{}, err
		}
	}
	if endStr != "" {
		if r.End, err = parseID(endStr); err != nil {
			return Range{}, err
		}
		if r.Start > r.End {
			return Range{}, fmt.Errorf("%w: start %d is after end %d", ErrRange, r.Start, r.End)
		}
	}
	return r, nil
}

func parseID(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number (use 1-50, 435-, -50 or 7)", ErrRange, s)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: ids start at 1, got %d", ErrRange, n)
	}
	return n, nil
}

// Filter returns the brokers whose id lies in r, in id order. An end past
// the last broker is clamped.
func Filter(brokers []Broker, r Range) ([]Broker, error) {
	if r.Start < 1 {
		r.Start = 1
	}
	total := len(brokers)
	if r.Start > total {
		return nil, fmt.Errorf("%w: start %d is past the last broker (%d)", ErrRange, r.Start, total)
	}
	if !r.Open() && r.Start > r.End {
		return nil, fmt.Errorf("%w: start %d is after end %d", ErrRange, r.Start, r.End)
	}
	end := r.End
	if r.Open() || end > total {
		end = total
	}
	out := make([]Broker, 0, end-r.Start+1)
	for _, b := range brokers {
		if b.ID >= r.Start && b.ID <= end {
			out = append(out, b)
		}
	}
	return out, nil
}

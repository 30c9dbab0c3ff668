package config

import (
	"fmt"
	"strconv"
	"strings"
)

// rowList is a flag.Value holding a comma-separated list of row indices.
type rowList []int

func (r *rowList) String() string {
	if r == nil {
		return ""
	}
	parts := make([]string, len(*r))
	for i, v := range *r {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// Set replaces the list, so a repeated -row keeps the last value like the
// scalar flags do.
func (r *rowList) Set(s string) error {
	rows, err := parseRows(s)
	if err != nil {
		return err
	}
	*r = rows
	return nil
}

// parseRows parses "7" or "3,17,42". Range checks against the dimension
// happen in Validate.
func parseRows(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	rows := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return nil, fmt.Errorf("empty row index in %q", s)
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid row index %q", f)
		}
		rows = append(rows, v)
	}
	return rows, nil
}

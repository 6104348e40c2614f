package model

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// LabelTable maps class indices to names. It is immutable once loaded.
type LabelTable []string

// Label returns the name for class i, or "Unknown-<i>" when the table has no
// entry for it.
func (t LabelTable) Label(i int) string {
	if i >= 0 && i < len(t) {
		return t[i]
	}
	return "Unknown-" + strconv.Itoa(i)
}

// ParseLabels reads newline-delimited class names. Surrounding whitespace is
// trimmed from every line and line order is class order. A final line
// terminator does not produce an extra empty label.
func ParseLabels(data []byte) (LabelTable, error) {
	if !utf8.Valid(data) {
		return nil, errors.New("labels are not valid UTF-8")
	}

	var labels LabelTable
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading labels: %w", err)
	}
	return labels, nil
}

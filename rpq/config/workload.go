package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadWorkload parses one query per line, optionally followed by its
// frequency (default 1). Blank lines and # comments are skipped.
func ReadWorkload(r io.Reader) ([]Query, error) {
	var queries []Query
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		q := Query{Text: fields[0], Frequency: 1}
		switch len(fields) {
		case 1:
		case 2:
			f, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: frequency %q: %w", line, fields[1], err)
			}
			q.Frequency = f
		default:
			return nil, fmt.Errorf("line %d: expected \"query [frequency]\", got %d fields", line, len(fields))
		}
		queries = append(queries, q)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return queries, nil
}

// LoadWorkload reads a workload file and appends its queries to the
// configuration
func (c *Config) LoadWorkload(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	queries, err := ReadWorkload(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c.Queries = append(c.Queries, queries...)
	return nil
}

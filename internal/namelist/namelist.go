// Package namelist reads Fortran namelist files and drives the external
// substitution helper that rewrites them.
//
// The parser is deliberately shallow: it flattens all &sections into one
// key/value view and keeps only the first column of multi-domain values,
// which is all the staging workflow ever inspects. It never writes namelists
// itself; writing goes through the Patcher.
package namelist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Namelist is a parsed, read-only view of a namelist file.
type Namelist struct {
	values map[string]string
	order  []string
}

// Parse reads a namelist from r. Section markers and comments are skipped;
// for multi-domain values only the first (d01) column is kept. Key order is
// preserved.
func Parse(r io.Reader) (*Namelist, error) {
	nml := &Namelist{values: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "&") || strings.HasPrefix(line, "/") || strings.HasPrefix(line, "!") {
			continue
		}
		if i := strings.Index(line, "!"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		// First column only; trailing commas terminate scalar values too.
		if col, _, found := strings.Cut(value, ","); found {
			value = strings.TrimSpace(col)
		}
		if key == "" || value == "" {
			continue
		}

		if _, seen := nml.values[key]; !seen {
			nml.order = append(nml.order, key)
		}
		nml.values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read namelist: %w", err)
	}
	return nml, nil
}

// ParseFile parses the namelist at path.
func ParseFile(path string) (*Namelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open namelist: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Has reports whether key is present.
func (n *Namelist) Has(key string) bool {
	_, ok := n.values[strings.ToLower(key)]
	return ok
}

// Get returns the raw d01 value for key, or "" when absent.
func (n *Namelist) Get(key string) string {
	return n.values[strings.ToLower(key)]
}

// Keys returns all keys in file order.
func (n *Namelist) Keys() []string {
	return append([]string(nil), n.order...)
}

// Int returns the value of key as an integer.
func (n *Namelist) Int(key string) (int, error) {
	v, ok := n.values[strings.ToLower(key)]
	if !ok {
		return 0, fmt.Errorf("namelist key %q not found", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("namelist key %q: %w", key, err)
	}
	return i, nil
}

// Float returns the value of key as a float.
func (n *Namelist) Float(key string) (float64, error) {
	v, ok := n.values[strings.ToLower(key)]
	if !ok {
		return 0, fmt.Errorf("namelist key %q not found", key)
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "."), 64)
	if err != nil {
		return 0, fmt.Errorf("namelist key %q: %w", key, err)
	}
	return f, nil
}

// ReadIntKey parses the namelist at path and returns one integer key. It is
// the convenience entry point for callers that need a single dimension, e.g.
// e_we for the processor grid derivation.
func ReadIntKey(path, key string) (int, error) {
	nml, err := ParseFile(path)
	if err != nil {
		return 0, err
	}
	return nml.Int(key)
}

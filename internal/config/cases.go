package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"binroute/internal/opt"

	"gopkg.in/yaml.v3"
)

var ErrUnknownCase = errors.New("unknown case")

// Cases maps a test-case name to its distance matrix.
type Cases map[string]opt.DistanceMatrix

func LoadCases(path string) (Cases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	c, err := ParseCases(data)
	if err != nil {
		return nil, fmt.Errorf("load cases %s: %w", path, err)
	}
	return c, nil
}

// ParseCases decodes a YAML mapping of name to matrix. A matrix is either a
// sequence of rows or a string holding a bracketed literal such as
// "[[0, 1], [1, 0]]". Every matrix is validated.
func ParseCases(data []byte) (Cases, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(Cases, len(raw))
	for name, node := range raw {
		var rows [][]float64
		switch node.Kind {
		case yaml.SequenceNode:
			if err := node.Decode(&rows); err != nil {
				return nil, fmt.Errorf("case %s: %w", name, err)
			}
		case yaml.ScalarNode:
			// the literal is a YAML flow sequence
			if err := yaml.Unmarshal([]byte(node.Value), &rows); err != nil {
				return nil, fmt.Errorf("case %s: matrix literal: %w", name, err)
			}
		default:
			return nil, fmt.Errorf("case %s: line %d: want a matrix, got a mapping", name, node.Line)
		}
		m := opt.DistanceMatrix(rows)
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("case %s: %w", name, err)
		}
		out[name] = m
	}
	return out, nil
}

func (c Cases) Get(name string) (opt.DistanceMatrix, error) {
	m, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCase, name)
	}
	return m, nil
}

func (c Cases) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

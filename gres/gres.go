// Package gres parses SLURM generic resource specifications, as given to
// sbatch with --gres (e.g. "gpu:tesla:2", "bandwidth:4G").
package gres

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

type Unit string

const (
	UnitNone Unit = ""
	UnitK    Unit = "K"
	UnitM    Unit = "M"
	UnitG    Unit = "G"
	UnitT    Unit = "T"
	UnitP    Unit = "P"
)

var multipliers = map[Unit]int64{
	UnitNone: 1,
	UnitK:    1 << 10,
	UnitM:    1 << 20,
	UnitG:    1 << 30,
	UnitT:    1 << 40,
	UnitP:    1 << 50,
}

// Multiplier returns the power of 1024 the unit stands for.
func (u Unit) Multiplier() int64 {
	return multipliers[u]
}

type Count struct {
	Value int64
	Unit  Unit
}

// Expand returns the count scaled by its unit.
func (c Count) Expand() int64 {
	return c.Value * c.Unit.Multiplier()
}

func (c Count) String() string {
	return strconv.FormatInt(c.Value, 10) + string(c.Unit)
}

type Gres struct {
	Name  string
	Type  string
	Count *Count
}

func (g Gres) String() string {
	parts := []string{g.Name}
	if g.Type != "" {
		parts = append(parts, g.Type)
	}
	if g.Count != nil {
		parts = append(parts, g.Count.String())
	}
	return strings.Join(parts, ":")
}

// Expand returns the requested amount, 1 when no count was given.
func (g Gres) Expand() int64 {
	if g.Count == nil {
		return 1
	}
	return g.Count.Expand()
}

type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid gres '%s': %s", e.Input, e.Reason)
}

var (
	identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)
	countRegex = regexp.MustCompile(`^([0-9]+)([KMGTP]?)$`)
	separators = regexp.MustCompile(`[,\s]+`)
)

// Parse parses a single element of the form name[:type][:count[unit]].
func Parse(s string) (Gres, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return Gres{}, &ParseError{s, "too many ':' separated fields"}
	}

	for _, part := range parts {
		if part == "" {
			return Gres{}, &ParseError{s, "empty field"}
		}
	}

	gres := Gres{Name: parts[0]}
	if !identRegex.MatchString(gres.Name) {
		return Gres{}, &ParseError{s, fmt.Sprintf("invalid name '%s'", gres.Name)}
	}

	switch len(parts) {
	case 2:
		// Either name:count or name:type
		count, err := parseCount(parts[1])
		switch {
		case err == nil:
			gres.Count = count
		case errors.Is(err, errCountTooLarge):
			return Gres{}, &ParseError{s, fmt.Sprintf("count '%s' is too large", parts[1])}
		case identRegex.MatchString(parts[1]):
			gres.Type = parts[1]
		default:
			return Gres{}, &ParseError{s, fmt.Sprintf("invalid count or type '%s'", parts[1])}
		}

	case 3:
		if !identRegex.MatchString(parts[1]) {
			return Gres{}, &ParseError{s, fmt.Sprintf("invalid type '%s'", parts[1])}
		}
		gres.Type = parts[1]

		count, err := parseCount(parts[2])
		if errors.Is(err, errCountTooLarge) {
			return Gres{}, &ParseError{s, fmt.Sprintf("count '%s' is too large", parts[2])}
		} else if err != nil {
			return Gres{}, &ParseError{s, fmt.Sprintf("invalid count '%s'", parts[2])}
		}
		gres.Count = count
	}

	return gres, nil
}

// ParseAll parses a comma and/or whitespace separated list of gres elements.
func ParseAll(s string) ([]Gres, error) {
	elements := lo.WithoutEmpty(separators.Split(strings.TrimSpace(s), -1))

	all := make([]Gres, 0, len(elements))
	for _, element := range elements {
		gres, err := Parse(element)
		if err != nil {
			return nil, err
		}
		all = append(all, gres)
	}
	return all, nil
}

var (
	errNotCount      = errors.New("not a count")
	errCountTooLarge = errors.New("count too large")
)

// parseCount rejects counts whose expanded value does not fit in an int64.
func parseCount(s string) (*Count, error) {
	matches := countRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, errNotCount
	}

	unit := Unit(matches[2])
	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil || value > math.MaxInt64/unit.Multiplier() {
		return nil, errCountTooLarge
	}

	return &Count{Value: value, Unit: unit}, nil
}

package mem

import (
	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

// budgetFile is the on-disk TOML shape. Sizes are humanized strings so budget
// files read the way people talk about memory ("32MiB", not 33554432).
//
//	total = "1GiB"
//
//	[[zone]]
//	name   = "entities"
//	weight = 0.20
//	min    = "32MiB"
//	max    = "256MiB"
//	grow   = true
type budgetFile struct {
	Total string           `toml:"total"`
	Zones []budgetFileZone `toml:"zone"`
}

type budgetFileZone struct {
	Name   string  `toml:"name"`
	Weight float64 `toml:"weight"`
	Min    string  `toml:"min"`
	Max    string  `toml:"max"`
	Grow   bool    `toml:"grow"`
}

// LoadBudgetFile reads a TOML budget description and returns the validated
// Budget. Both IEC ("32MiB") and SI ("32MB") size suffixes are accepted.
func LoadBudgetFile(path string) (Budget, error) {
	var f budgetFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Budget{}, errors.Wrapf(err, "mem: decode budget file %s", path)
	}
	return f.toBudget()
}

func (f budgetFile) toBudget() (Budget, error) {
	total, err := parseSize(f.Total, "total")
	if err != nil {
		return Budget{}, err
	}
	b := Budget{TotalBytes: total, Zones: make([]ZoneSpec, 0, len(f.Zones))}
	for _, z := range f.Zones {
		kind, err := ParseZone(z.Name)
		if err != nil {
			return Budget{}, err
		}
		spec := ZoneSpec{Zone: kind, Weight: z.Weight, CanGrow: z.Grow}
		if z.Min != "" {
			if spec.MinBytes, err = parseSize(z.Min, z.Name+" min"); err != nil {
				return Budget{}, err
			}
		}
		if spec.MaxBytes, err = parseSize(z.Max, z.Name+" max"); err != nil {
			return Budget{}, err
		}
		b.Zones = append(b.Zones, spec)
	}
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	return b, nil
}

func parseSize(s, field string) (int, error) {
	if s == "" {
		return 0, errors.Wrapf(ErrInvalidBudget, "%s size is required", field)
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidBudget, "%s size %q: %v", field, s, err)
	}
	return int(v), nil
}

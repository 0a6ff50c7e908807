package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// InheritanceRules decides which parent condition fields an auto-provisioned treatment copies.
type InheritanceRules struct {
	Reserved  []string `toml:"reserved"`
	Blacklist []string `toml:"blacklist"`
}

func DefaultInheritanceRules() InheritanceRules {
	return InheritanceRules{
		Reserved: []string{"id", "experiment_id", "experiment_fk", "created_at", "updated_at"},
		// additive identifiers live in the additive inventory now, and the rest are derived
		Blacklist: []string{
			"catalyst",
			"catalyst_mass",
			"buffer_system",
			"buffer_concentration",
			"surfactant_type",
			"surfactant_concentration",
			"catalyst_percentage",
			"catalyst_ppm",
			"water_to_rock_ratio",
			"nitrate_concentration",
			"dissolved_oxygen",
			"ammonium_chloride_concentration",
		},
	}
}

// LoadInheritanceRules reads rules from a TOML file. An empty path yields the defaults;
// a file that omits a list keeps the default for it.
func LoadInheritanceRules(path string) (InheritanceRules, error) {
	rules := DefaultInheritanceRules()
	if path == "" {
		return rules, nil
	}

	var fromFile InheritanceRules
	meta, err := toml.DecodeFile(path, &fromFile)
	if err != nil {
		return rules, errors.Wrapf(err, "failed to decode inheritance rules %s", path)
	}
	if meta.IsDefined("reserved") {
		rules.Reserved = fromFile.Reserved
	}
	if meta.IsDefined("blacklist") {
		rules.Blacklist = fromFile.Blacklist
	}
	return rules, nil
}

// Excludes reports whether field must not be copied from a parent.
func (r InheritanceRules) Excludes(field string) bool {
	for _, f := range r.Reserved {
		if f == field {
			return true
		}
	}
	for _, f := range r.Blacklist {
		if f == field {
			return true
		}
	}
	return false
}

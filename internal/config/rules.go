package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/thesavant42/fix-download-links/internal/models"
)

// rulesFile is the on-disk shape of a rules file:
//
//	rules:
//	  - name: cmd-download-domain
//	    field: href
//	    pattern: onsdigital
//	    from: //download.cmd.onsdigital.co.uk/
//	    to: //download.ons.gov.uk/
type rulesFile struct {
	Rules []models.Rule `yaml:"rules"`
}

// LoadRules reads rewrite rules from a YAML file. The rules replace the
// built-in set entirely.
func LoadRules(path string) ([]models.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates YAML rules
func ParseRules(data []byte) ([]models.Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("%w: rules file defines no rules", ErrInvalidConfig)
	}
	for _, r := range f.Rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return f.Rules, nil
}

// MarshalRules renders rules in the rules file format
func MarshalRules(rules []models.Rule) ([]byte, error) {
	return yaml.Marshal(rulesFile{Rules: rules})
}

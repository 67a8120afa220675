package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate runs struct-tag validation and the cross-field checks the
// tag language cannot express (mirrors the teacher's Validator, minus the
// agent/chain/MCP registries this engine does not have).
func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	for i, rc := range cfg.RepoConventions {
		if err := v.Struct(rc); err != nil {
			return NewValidationError(fmt.Sprintf("repo_conventions[%d]", i), err)
		}
	}

	seen := make(map[string]bool, len(cfg.RepoConventions))
	for _, rc := range cfg.RepoConventions {
		if seen[rc.Consumer] {
			return NewValidationError("repo_conventions", fmt.Errorf("duplicate consumer %q", rc.Consumer))
		}
		seen[rc.Consumer] = true
	}

	return nil
}

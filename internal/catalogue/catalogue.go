// Package catalogue loads and validates the stub catalogue file the
// server is started with: a top-level JSON array of stubs.
package catalogue

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danslapman/kolibri-go/internal/models"
)

// Load reads path, parses it as a JSON array of stubs, and validates each
// one. A malformed catalogue is a startup-fatal condition for the caller
// to report; Load itself never exits the process.
func Load(path string) ([]*models.Stub, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogue: reading %s: %w", path, err)
	}

	var stubs []*models.Stub
	if err := json.Unmarshal(raw, &stubs); err != nil {
		return nil, fmt.Errorf("catalogue: parsing %s: %w", path, err)
	}

	for i, s := range stubs {
		if s.Scope == models.ScopeCountdown && s.Times == nil {
			return nil, fmt.Errorf("catalogue: stub %q (index %d) has scope countdown but no times", s.Name, i)
		}
		if s.Scope == models.ScopeCountdown && *s.Times < 0 {
			return nil, fmt.Errorf("catalogue: stub %q (index %d) has a negative times", s.Name, i)
		}
	}

	return stubs, nil
}

package scraper

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/chartfetch/models"
)

// ValidateSource checks a source definition before any session is opened,
// so a typo in a selector fails the job immediately instead of after a full
// retry cycle. Selectors are compiled with the same engine the harvesters
// use downstream.
func ValidateSource(src *models.Source) error {
	if src.Name == "" {
		return fmt.Errorf("source has no name")
	}
	if src.URL == "" {
		return fmt.Errorf("source %s has no URL", src.Name)
	}
	if src.SkipRows < 0 {
		return fmt.Errorf("source %s: skip rows must not be negative, got %d", src.Name, src.SkipRows)
	}
	if src.MinColumns < 1 {
		return fmt.Errorf("source %s: minimum columns must be at least 1, got %d", src.Name, src.MinColumns)
	}

	if (src.CellSelector == "") == (len(src.CellSelectors) == 0) {
		return fmt.Errorf("source %s: exactly one of cell selector or cell selector list must be set", src.Name)
	}

	if len(src.Fields) == 0 {
		return fmt.Errorf("source %s has no fields", src.Name)
	}
	seen := make(map[string]bool, len(src.Fields))
	for _, fld := range src.Fields {
		if fld.Name == "" {
			return fmt.Errorf("source %s has a field with no name", src.Name)
		}
		if seen[fld.Name] {
			return fmt.Errorf("source %s: duplicate field %q", src.Name, fld.Name)
		}
		seen[fld.Name] = true
		if fld.Cell < 0 || fld.Cell >= src.MinColumns {
			return fmt.Errorf("source %s: field %q reads cell %d, outside [0,%d)",
				src.Name, fld.Name, fld.Cell, src.MinColumns)
		}
	}

	selectors := []string{src.ReadySelector, src.RowSelector, src.CellSelector}
	selectors = append(selectors, src.CellSelectors...)
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Parse(sel); err != nil {
			return fmt.Errorf("source %s: invalid selector %q: %w", src.Name, sel, err)
		}
	}
	if src.ReadySelector == "" {
		return fmt.Errorf("source %s has no readiness selector", src.Name)
	}
	if src.RowSelector == "" {
		return fmt.Errorf("source %s has no row selector", src.Name)
	}

	return nil
}

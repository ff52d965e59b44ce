package shared

import (
	"fmt"
	"sort"
	"strings"
)

// WarningType represents different types of warnings raised while scanning an album.
type WarningType int

const (
	ProviderFetchWarning WarningType = iota
	IdentityResolutionWarning
	PersistenceWarning
	BandingWarning
	SingleDetectionWarning
)

// Warning represents a single warning with context.
type Warning struct {
	Type    WarningType
	Message string
	Context string // track/album context
	Details string // additional details, e.g. the underlying error
}

// WarningCollector collects warnings raised while processing one scan run.
type WarningCollector struct {
	warnings []Warning
	enabled  bool
}

// NewWarningCollector creates a new warning collector.
func NewWarningCollector(enabled bool) *WarningCollector {
	return &WarningCollector{
		warnings: make([]Warning, 0),
		enabled:  enabled,
	}
}

// AddWarning adds a warning to the collector.
func (wc *WarningCollector) AddWarning(warningType WarningType, context, message, details string) {
	if !wc.enabled {
		return
	}
	wc.warnings = append(wc.warnings, Warning{
		Type:    warningType,
		Message: message,
		Context: context,
		Details: details,
	})
}

// AddProviderFetchWarning records a partial signal failure from a named provider (spec §4.3).
func (wc *WarningCollector) AddProviderFetchWarning(provider, context, details string) {
	wc.AddWarning(ProviderFetchWarning, context, fmt.Sprintf("%s signal unavailable", provider), details)
}

// AddIdentityResolutionWarning records a failed provider-ID resolution (spec §4.2).
func (wc *WarningCollector) AddIdentityResolutionWarning(provider, context, details string) {
	wc.AddWarning(IdentityResolutionWarning, context, fmt.Sprintf("%s identity not resolved", provider), details)
}

// AddPersistenceWarning records a recoverable persistence-layer issue.
func (wc *WarningCollector) AddPersistenceWarning(context, details string) {
	wc.AddWarning(PersistenceWarning, context, "persistence issue", details)
}

// HasWarnings returns true if there are any warnings.
func (wc *WarningCollector) HasWarnings() bool {
	return len(wc.warnings) > 0
}

// GetWarningCount returns the total number of warnings.
func (wc *WarningCollector) GetWarningCount() int {
	return len(wc.warnings)
}

// GetWarningsByType returns warnings grouped by type.
func (wc *WarningCollector) GetWarningsByType() map[WarningType][]Warning {
	grouped := make(map[WarningType][]Warning)
	for _, warning := range wc.warnings {
		grouped[warning.Type] = append(grouped[warning.Type], warning)
	}
	return grouped
}

// PrintSummary prints a formatted summary of all warnings.
func (wc *WarningCollector) PrintSummary() {
	if !wc.HasWarnings() {
		return
	}

	ColorWarning.Printf("\nWarning summary (%d warnings):\n", len(wc.warnings))
	ColorWarning.Println(strings.Repeat("-", 50))

	grouped := wc.GetWarningsByType()

	var types []WarningType
	for warningType := range grouped {
		types = append(types, warningType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, warningType := range types {
		wc.printWarningTypeSection(warningType, grouped[warningType])
	}
}

func (wc *WarningCollector) printWarningTypeSection(warningType WarningType, warnings []Warning) {
	if len(warnings) == 0 {
		return
	}

	ColorWarning.Printf("\n%s (%d):\n", wc.getWarningTypeTitle(warningType), len(warnings))

	contextCounts := make(map[string]int)
	for _, warning := range warnings {
		contextCounts[warning.Context]++
	}

	var contexts []string
	for context := range contextCounts {
		contexts = append(contexts, context)
	}
	sort.Strings(contexts)

	for _, context := range contexts {
		count := contextCounts[context]
		if count > 1 {
			ColorWarning.Printf("  - %s (x%d)\n", context, count)
		} else {
			ColorWarning.Printf("  - %s\n", context)
		}
	}
}

func (wc *WarningCollector) getWarningTypeTitle(warningType WarningType) string {
	switch warningType {
	case ProviderFetchWarning:
		return "Provider signal failures"
	case IdentityResolutionWarning:
		return "Identity resolution failures"
	case PersistenceWarning:
		return "Persistence issues"
	case BandingWarning:
		return "Banding anomalies"
	case SingleDetectionWarning:
		return "Single-detection anomalies"
	default:
		return "Other warnings"
	}
}

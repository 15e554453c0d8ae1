package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// LivePlan describes a live run for confirmation
type LivePlan struct {
	Store      string
	Formats    []string
	Rules      []string
	Limit      int
	UntilClean bool
}

// Description returns the plan as prompt text
func (p LivePlan) Description() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Store: %s\n", p.Store)
	fmt.Fprintf(&sb, "Formats: %s\n", strings.Join(p.Formats, ", "))
	fmt.Fprintf(&sb, "Rules: %s\n", strings.Join(p.Rules, ", "))
	if p.UntilClean {
		fmt.Fprintf(&sb, "Up to %d rewrites per format and rule, repeated until clean", p.Limit)
	} else {
		fmt.Fprintf(&sb, "Up to %d rewrites per format and rule", p.Limit)
	}
	return sb.String()
}

// ConfirmLiveRun asks the user to confirm writing to the store
func ConfirmLiveRun(plan LivePlan) (bool, error) {
	var confirm bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Rewrite download links?").
				Description(plan.Description()).
				Affirmative("Yes, write changes").
				Negative("Cancel").
				Value(&confirm),
		),
	).WithTheme(NewAppTheme())

	if err := form.Run(); err != nil {
		return false, fmt.Errorf("prompt cancelled: %w", err)
	}

	return confirm, nil
}

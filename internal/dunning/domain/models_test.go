package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStep_Fires(t *testing.T) {
	tests := []struct {
		name     string
		trigger  StepTrigger
		offset   int
		diffDays int
		want     bool
	}{
		{"before due exactly at offset", TriggerBeforeDue, 5, -5, true},
		{"before due too early", TriggerBeforeDue, 5, -6, false},
		{"before due too late", TriggerBeforeDue, 5, -4, false},
		{"before due on due date", TriggerBeforeDue, 5, 0, false},
		{"before due one day offset", TriggerBeforeDue, 1, -1, true},
		{"on due at zero", TriggerOnDue, 0, 0, true},
		{"on due ignores offset", TriggerOnDue, 3, 0, true},
		{"on due before", TriggerOnDue, 0, -1, false},
		{"on due after", TriggerOnDue, 0, 1, false},
		{"after due exactly at offset", TriggerAfterDue, 3, 3, true},
		{"after due too early", TriggerAfterDue, 3, 2, false},
		{"after due too late", TriggerAfterDue, 3, 4, false},
		{"after due negative diff", TriggerAfterDue, 3, -3, false},
		{"unknown trigger never fires", StepTrigger("WHENEVER"), 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := Step{Trigger: tt.trigger, OffsetDays: tt.offset}
			assert.Equal(t, tt.want, step.Fires(tt.diffDays))
		})
	}
}

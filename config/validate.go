package config

import "fmt"

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const maxADC = 1023

// Validate checks a Config for values the firmware cannot run with.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.ToolCount == 0 || cfg.ToolCount > 14 {
		add("tool_count", "must be between 1 and 14, got %d", cfg.ToolCount)
	}

	s := cfg.Sensors
	if s.FindaThreshold == 0 || s.FindaThreshold >= maxADC {
		add("sensors.finda_threshold", "must be within (0, %d)", maxADC)
	}
	if s.FindaDebounceMs == 0 {
		add("sensors.finda_debounce_ms", "must be positive")
	}
	if s.ButtonsDebounceMs == 0 {
		add("sensors.buttons_debounce_ms", "must be positive")
	}
	if len(s.ButtonADCLimits) == 0 {
		add("sensors.button_adc_limits", "at least one button is required")
	}
	for i, lim := range s.ButtonADCLimits {
		if lim[0] > lim[1] || lim[1] > maxADC {
			add(fmt.Sprintf("sensors.button_adc_limits[%d]", i), "invalid band [%d, %d]", lim[0], lim[1])
		}
		if i > 0 && lim[0] <= s.ButtonADCLimits[i-1][1] {
			add(fmt.Sprintf("sensors.button_adc_limits[%d]", i), "overlaps the previous band")
		}
	}

	m := cfg.Motion
	if m.MinStepRate == 0 || m.MaxStepFrequency <= m.MinStepRate {
		add("motion", "need 0 < min_step_rate < max_step_frequency")
	}
	if m.BlockBufferSize == 0 || m.BlockBufferSize > 127 {
		add("motion.block_buffer_size", "must be between 1 and 127")
	}
	if m.StepTimerQuantumUs == 0 {
		add("motion.step_timer_quantum_us", "must be positive")
	}

	validateAxis("pulley", &cfg.Pulley, &errs)
	validateAxis("selector", &cfg.Selector, &errs)
	validateAxis("idler", &cfg.Idler, &errs)

	if cfg.ToolCount > 0 {
		for i, p := range cfg.SelectorSlotPositions() {
			if p < 0 || p > cfg.Selector.Limits.Length {
				add(fmt.Sprintf("selector.slot[%d]", i), "position %.2f outside travel", p)
			}
		}
		for i, p := range cfg.IdlerSlotPositions() {
			if p < 0 || p > cfg.Idler.Limits.Length {
				add(fmt.Sprintf("idler.slot[%d]", i), "position %.2f outside travel", p)
			}
		}
	}

	d := cfg.Distances
	if d.MinimumBowdenLength > d.DefaultBowdenLength || d.DefaultBowdenLength > d.MaximumBowdenLength {
		add("distances.default_bowden_length", "must lie within [%.1f, %.1f]", d.MinimumBowdenLength, d.MaximumBowdenLength)
	}
	if d.FeedToFinda <= 0 || d.CutLength <= 0 || d.EjectFromCuttingEdge <= 0 {
		add("distances", "feed_to_finda, cut_length and eject_from_cutting_edge must be positive")
	}

	return errs
}

func validateAxis(name string, s *AxisSection, errs *[]ValidationError) {
	add := func(field, msg string) {
		*errs = append(*errs, ValidationError{Field: name + "." + field, Message: msg})
	}
	a := s.Axis
	if a.MRes > MRes1 {
		add("axis.mres", "must be 0..8")
	}
	if a.IRun > 31 || a.IHold > 31 {
		add("axis", "currents must be 0..31")
	}
	if a.StepsPerUnit <= 0 {
		add("axis.steps_per_unit", "must be positive")
	}
	if a.SGThrs < -64 || a.SGThrs > 63 {
		add("axis.sg_thrs", "must be -64..63")
	}
	if s.Limits.Length <= 0 {
		add("limits.length", "must be positive")
	}
	if s.Limits.Jerk < 0 || s.Limits.Accel < 0 {
		add("limits", "jerk and accel must not be negative")
	}
	if s.Feedrate <= 0 {
		add("feedrate", "must be positive")
	}
}

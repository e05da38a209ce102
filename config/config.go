// Package config holds the typed configuration of the selector unit.
//
// Default returns the tuned values for the stock mechanics. Host builds can
// overlay a YAML file on top of them (see Load).
package config

// MRes is the microstep resolution in the TMC2130 CHOPCONF.MRES encoding.
type MRes uint8

const (
	MRes256 MRes = iota
	MRes128
	MRes64
	MRes32
	MRes16
	MRes8
	MRes4
	MRes2
	MRes1
)

// Microsteps returns the number of microsteps per full step.
func (m MRes) Microsteps() uint32 {
	if m > MRes1 {
		return 1
	}
	return 1 << (8 - m)
}

// AxisConfig is the electrical and mechanical setup of one axis.
type AxisConfig struct {
	DirOn        bool    `yaml:"dir_on"`
	MRes         MRes    `yaml:"mres"`
	VSense       bool    `yaml:"vsense"`
	IRun         uint8   `yaml:"i_run"`
	IHold        uint8   `yaml:"i_hold"`
	Stealth      bool    `yaml:"stealth"`
	StepsPerUnit float64 `yaml:"steps_per_unit"`
	SGThrs       int8    `yaml:"sg_thrs"`
}

// AxisLimits bound planned motion. Units are mm or degrees per axis.
type AxisLimits struct {
	Length           float64 `yaml:"length"`
	Jerk             float64 `yaml:"jerk"`
	Accel            float64 `yaml:"accel"`
	MaxStepFrequency uint32  `yaml:"max_step_frequency"`
}

// AxisSection groups everything configured per axis. Slot fields are unused
// on the pulley.
type AxisSection struct {
	Axis         AxisConfig `yaml:"axis"`
	Limits       AxisLimits `yaml:"limits"`
	Feedrate     float64    `yaml:"feedrate"`
	SlowFeedrate float64    `yaml:"slow_feedrate,omitempty"`
	SlotDistance float64    `yaml:"slot_distance,omitempty"`
	SlotOffset   float64    `yaml:"slot_offset,omitempty"`
}

// Sensors configures the ADC-backed inputs.
type Sensors struct {
	FindaADCIndex     uint8       `yaml:"finda_adc_index"`
	FindaThreshold    uint16      `yaml:"finda_threshold"`
	FindaDebounceMs   uint16      `yaml:"finda_debounce_ms"`
	ButtonsADCIndex   uint8       `yaml:"buttons_adc_index"`
	ButtonsDebounceMs uint16      `yaml:"buttons_debounce_ms"`
	ButtonADCLimits   [][2]uint16 `yaml:"button_adc_limits"`
}

// Motion configures the planner and the step timer.
type Motion struct {
	MaxStepFrequency   uint32 `yaml:"max_step_frequency"`
	MinStepRate        uint32 `yaml:"min_step_rate"`
	BlockBufferSize    uint8  `yaml:"block_buffer_size"`
	StepTimerQuantumUs uint32 `yaml:"step_timer_quantum_us"`
	FeedRetries        uint8  `yaml:"feed_retries"`
}

// Distances along the filament path, in mm.
type Distances struct {
	PulleyToCuttingEdge        float64 `yaml:"pulley_to_cutting_edge"`
	FilamentMinLoadedToMMU     float64 `yaml:"filament_min_loaded_to_mmu"`
	EjectFromCuttingEdge       float64 `yaml:"eject_from_cutting_edge"`
	CuttingEdgeRetract         float64 `yaml:"cutting_edge_retract"`
	CuttingEdgeToFinda         float64 `yaml:"cutting_edge_to_finda"`
	FindaTriggerDistance       float64 `yaml:"finda_trigger_distance"`
	CuttingEdgeToFindaMidpoint float64 `yaml:"cutting_edge_to_finda_midpoint"`
	FindaToCoupler             float64 `yaml:"finda_to_coupler"`
	CouplerToBowden            float64 `yaml:"coupler_to_bowden"`
	DefaultBowdenLength        float64 `yaml:"default_bowden_length"`
	MinimumBowdenLength        float64 `yaml:"minimum_bowden_length"`
	MaximumBowdenLength        float64 `yaml:"maximum_bowden_length"`
	FeedToFinda                float64 `yaml:"feed_to_finda"`
	CutLength                  float64 `yaml:"cut_length"`
}

// TMC holds chip tuning shared by all three drivers.
type TMC struct {
	StealthTPWMThrs   uint32 `yaml:"stealth_tpwmthrs"`
	NormalTPWMThrs    uint32 `yaml:"normal_tpwmthrs"`
	CoolStepThreshold uint32 `yaml:"coolstep_threshold"`
	IHoldDelay        uint8  `yaml:"ihold_delay"`
	PWMAmpl           uint8  `yaml:"pwm_ampl"`
	PWMGrad           uint8  `yaml:"pwm_grad"`
	PWMFreq           uint8  `yaml:"pwm_freq"`
	PWMAutoscale      bool   `yaml:"pwm_autoscale"`
}

// Config is the complete unit configuration.
type Config struct {
	ToolCount        uint8       `yaml:"tool_count"`
	LEDBlinkPeriodMs uint16      `yaml:"led_blink_period_ms"`
	HWSanitySettleMs uint16      `yaml:"hw_sanity_settle_ms"`
	Sensors          Sensors     `yaml:"sensors"`
	Motion           Motion      `yaml:"motion"`
	Distances        Distances   `yaml:"distances"`
	Pulley           AxisSection `yaml:"pulley"`
	Selector         AxisSection `yaml:"selector"`
	Idler            AxisSection `yaml:"idler"`
	TMC              TMC         `yaml:"tmc"`
}

// Default returns the stock configuration.
func Default() *Config {
	cfg := &Config{
		ToolCount:        5,
		LEDBlinkPeriodMs: 1024,
		HWSanitySettleMs: 10,
		Sensors: Sensors{
			FindaADCIndex:     6,
			FindaThreshold:    512,
			FindaDebounceMs:   100,
			ButtonsADCIndex:   5,
			ButtonsDebounceMs: 100,
			ButtonADCLimits:   [][2]uint16{{0, 50}, {80, 100}, {160, 180}},
		},
		Motion: Motion{
			MaxStepFrequency:   40000,
			MinStepRate:        120,
			BlockBufferSize:    4,
			StepTimerQuantumUs: 128,
			FeedRetries:        2,
		},
		Distances: Distances{
			PulleyToCuttingEdge:        33,
			FilamentMinLoadedToMMU:     20,
			EjectFromCuttingEdge:       40,
			CuttingEdgeRetract:         5,
			CuttingEdgeToFinda:         18.5,
			FindaTriggerDistance:       4.5,
			CuttingEdgeToFindaMidpoint: 22.85,
			FindaToCoupler:             12,
			CouplerToBowden:            3.5,
			DefaultBowdenLength:        427,
			MinimumBowdenLength:        341,
			MaximumBowdenLength:        792,
			CutLength:                  8,
		},
		Pulley: AxisSection{
			Axis: AxisConfig{
				DirOn:        false,
				MRes:         MRes8,
				VSense:       true,
				IRun:         20,
				IHold:        0,
				StepsPerUnit: 200 * 8 / 19.147274,
				SGThrs:       8,
			},
			Limits:       AxisLimits{Length: 1000, Jerk: 4, Accel: 800},
			Feedrate:     40,
			SlowFeedrate: 20,
		},
		Selector: AxisSection{
			Axis: AxisConfig{
				DirOn:        true,
				MRes:         MRes8,
				VSense:       true,
				IRun:         31,
				IHold:        5,
				StepsPerUnit: 200 * 8 / 8.,
				SGThrs:       3,
			},
			Limits:       AxisLimits{Length: 75, Jerk: 1, Accel: 200},
			Feedrate:     30,
			SlotDistance: 14,
			SlotOffset:   1,
		},
		Idler: AxisSection{
			Axis: AxisConfig{
				DirOn:        true,
				MRes:         MRes16,
				VSense:       true,
				IRun:         31,
				IHold:        23,
				StepsPerUnit: 200 * 16 / 360.,
				SGThrs:       8,
			},
			Limits:       AxisLimits{Length: 270, Jerk: 0.1, Accel: 500},
			Feedrate:     200,
			SlotDistance: 40,
			SlotOffset:   18,
		},
		TMC: TMC{
			StealthTPWMThrs:   70,
			NormalTPWMThrs:    0xFFF00,
			CoolStepThreshold: 5000,
			IHoldDelay:        15,
			PWMAmpl:           240,
			PWMGrad:           4,
			PWMFreq:           2,
			PWMAutoscale:      true,
		},
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills values derived from other fields when left zero.
func applyDefaults(cfg *Config) {
	d := &cfg.Distances
	if d.FeedToFinda == 0 {
		d.FeedToFinda = d.CuttingEdgeToFindaMidpoint + d.FilamentMinLoadedToMMU
	}
	for _, s := range []*AxisSection{&cfg.Pulley, &cfg.Selector, &cfg.Idler} {
		if s.Limits.MaxStepFrequency == 0 {
			s.Limits.MaxStepFrequency = cfg.Motion.MaxStepFrequency
		}
		if s.SlowFeedrate == 0 {
			s.SlowFeedrate = s.Feedrate
		}
	}
}

// ButtonCount returns the number of buttons on the ADC ladder.
func (c *Config) ButtonCount() int {
	return len(c.Sensors.ButtonADCLimits)
}

// SelectorSlotPositions returns the selector position of every slot plus the
// park position at index ToolCount. Slot 0 is nearest the homing end.
func (c *Config) SelectorSlotPositions() []float64 {
	pos := make([]float64, int(c.ToolCount)+1)
	for i := range pos {
		pos[i] = c.Selector.SlotOffset + float64(i)*c.Selector.SlotDistance
	}
	return pos
}

// IdlerSlotPositions returns the idler angle engaging every slot plus the
// fully disengaged angle at index ToolCount.
func (c *Config) IdlerSlotPositions() []float64 {
	pos := make([]float64, int(c.ToolCount)+1)
	for i := range pos {
		pos[i] = c.Idler.SlotOffset + float64(int(c.ToolCount)-i)*c.Idler.SlotDistance
	}
	return pos
}

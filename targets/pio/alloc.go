//go:build rp2040

// Package pio provides step backends for the RP2040: a PIO state machine per
// axis, falling back to SIO GPIO writes once both PIO blocks are taken.
package pio

import (
	"filamux/core"
)

const (
	numBlocks   = 2
	smsPerBlock = 4
)

var (
	allocated [numBlocks][smsPerBlock]bool
	nextBlock uint8
	nextSM    uint8
)

// NewBackend returns a PIO backend if a state machine is free, else a GPIO
// backend.
func NewBackend() core.StepperBackend {
	if block, sm, ok := allocate(); ok {
		return NewStepperPIO(block, sm)
	}
	core.DebugPrintln("[PIO] no state machine left, using GPIO stepping")
	return NewStepperGPIO()
}

// allocate hands out state machines round-robin across both blocks.
func allocate() (block, sm uint8, ok bool) {
	for i := 0; i < numBlocks*smsPerBlock; i++ {
		b, s := nextBlock, nextSM
		nextSM++
		if nextSM >= smsPerBlock {
			nextSM = 0
			nextBlock = (nextBlock + 1) % numBlocks
		}
		if !allocated[b][s] {
			allocated[b][s] = true
			return b, s, true
		}
	}
	return 0, 0, false
}

// Allocations reports which state machines are in use.
func Allocations() [numBlocks][smsPerBlock]bool {
	return allocated
}

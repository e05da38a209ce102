package modules

import (
	"errors"
	"sync"

	"filamux/config"
)

// ErrBowdenOutOfRange is returned for bowden lengths outside the configured range.
var ErrBowdenOutOfRange = errors.New("modules: bowden length out of range")

// FilamentLoadState tracks where the tip of the active filament is.
type FilamentLoadState uint8

const (
	NotLoaded  FilamentLoadState = iota
	AtPulley                     // tip parked between pulley and FINDA
	InSelector                   // FINDA saw the tip after the last feed or unload
)

func (s FilamentLoadState) String() string {
	switch s {
	case NotLoaded:
		return "not-loaded"
	case AtPulley:
		return "at-pulley"
	case InSelector:
		return "in-selector"
	}
	return "unknown"
}

// Storage persists per-slot values across power cycles.
type Storage interface {
	BowdenLength(slot uint8) (float64, bool)
	SetBowdenLength(slot uint8, mm float64) error
}

// MemStorage is a Storage kept in memory.
type MemStorage struct {
	mu     sync.Mutex
	bowden map[uint8]float64
}

func NewMemStorage() *MemStorage {
	return &MemStorage{bowden: make(map[uint8]float64)}
}

func (s *MemStorage) BowdenLength(slot uint8) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.bowden[slot]
	return v, ok
}

func (s *MemStorage) SetBowdenLength(slot uint8, mm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bowden[slot] = mm
	return nil
}

// Globals is the unit-wide state shared by commands.
type Globals struct {
	cfg        *config.Config
	storage    Storage
	activeSlot uint8
	loadState  FilamentLoadState
	bowden     float64
}

func NewGlobals(cfg *config.Config, storage Storage) *Globals {
	g := &Globals{cfg: cfg, storage: storage}
	g.loadBowden()
	return g
}

func (g *Globals) loadBowden() {
	g.bowden = g.cfg.Distances.DefaultBowdenLength
	if g.storage == nil {
		return
	}
	if v, ok := g.storage.BowdenLength(g.activeSlot); ok && g.bowdenInRange(v) {
		g.bowden = v
	}
}

func (g *Globals) bowdenInRange(v float64) bool {
	d := g.cfg.Distances
	return v >= d.MinimumBowdenLength && v <= d.MaximumBowdenLength
}

// ActiveSlot returns the slot the unit is working with.
func (g *Globals) ActiveSlot() uint8 { return g.activeSlot }

// SetActiveSlot switches the active slot and reloads its bowden length.
func (g *Globals) SetActiveSlot(slot uint8) {
	if slot >= g.cfg.ToolCount {
		return
	}
	g.activeSlot = slot
	g.loadBowden()
}

// FilamentLoadState returns where the active filament tip is.
func (g *Globals) FilamentLoadState() FilamentLoadState { return g.loadState }

// SetFilamentLoaded records the tip position for slot, making it active.
func (g *Globals) SetFilamentLoaded(slot uint8, s FilamentLoadState) {
	g.SetActiveSlot(slot)
	g.loadState = s
}

// FilamentLoaded reports only that FINDA observed the tip inside the
// selector after the last feed or unload. It says nothing about the printer.
func (g *Globals) FilamentLoaded() bool { return g.loadState == InSelector }

// BowdenLength returns the bowden length of the active slot in mm.
func (g *Globals) BowdenLength() float64 { return g.bowden }

// SetBowdenLength stores the bowden length of the active slot.
func (g *Globals) SetBowdenLength(mm float64) error {
	if !g.bowdenInRange(mm) {
		return ErrBowdenOutOfRange
	}
	g.bowden = mm
	if g.storage != nil {
		return g.storage.SetBowdenLength(g.activeSlot, mm)
	}
	return nil
}

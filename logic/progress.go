package logic

import "filamux/core"

// ProgressCode is the phase of a command. OK is both the idle state and the
// successful end of a run.
type ProgressCode uint8

const (
	OK ProgressCode = iota

	EngagingIdler
	DisengagingIdler
	UnloadingToFinda
	UnloadingToPulley
	FeedingToFinda
	RetractingFromFinda
	SelectingFilamentSlot
	PreparingBlade
	PushingFilament
	PerformingCut
	ReturningSelector
	ParkingSelector
	EjectingFilament
	UnloadingFilament
	LoadingFilament

	HWTestBegin
	HWTestIdler
	HWTestSelector
	HWTestPulley
	HWTestExec
	HWTestDisplay
	HWTestCleanup

	ERRDisengagingIdler
	ERRWaitingForUser
	ERRTMCFailed
	ERRInternal
)

var progressNames = [...]string{
	OK:                    "OK",
	EngagingIdler:         "EngagingIdler",
	DisengagingIdler:      "DisengagingIdler",
	UnloadingToFinda:      "UnloadingToFinda",
	UnloadingToPulley:     "UnloadingToPulley",
	FeedingToFinda:        "FeedingToFinda",
	RetractingFromFinda:   "RetractingFromFinda",
	SelectingFilamentSlot: "SelectingFilamentSlot",
	PreparingBlade:        "PreparingBlade",
	PushingFilament:       "PushingFilament",
	PerformingCut:         "PerformingCut",
	ReturningSelector:     "ReturningSelector",
	ParkingSelector:       "ParkingSelector",
	EjectingFilament:      "EjectingFilament",
	UnloadingFilament:     "UnloadingFilament",
	LoadingFilament:       "LoadingFilament",
	HWTestBegin:           "HWTestBegin",
	HWTestIdler:           "HWTestIdler",
	HWTestSelector:        "HWTestSelector",
	HWTestPulley:          "HWTestPulley",
	HWTestExec:            "HWTestExec",
	HWTestDisplay:         "HWTestDisplay",
	HWTestCleanup:         "HWTestCleanup",
	ERRDisengagingIdler:   "ERRDisengagingIdler",
	ERRWaitingForUser:     "ERRWaitingForUser",
	ERRTMCFailed:          "ERRTMCFailed",
	ERRInternal:           "ERRInternal",
}

func (p ProgressCode) String() string {
	if int(p) < len(progressNames) {
		return progressNames[p]
	}
	return "ProgressCode(" + core.Itoa(int(p)) + ")"
}

// IsError reports the error-recovery phases.
func (p ProgressCode) IsError() bool {
	return p >= ERRDisengagingIdler
}

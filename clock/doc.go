// Package clock provides the pausable, speed-adjustable elapsed-time
// source that paces frame consumption in a playback pipeline.
//
// A Clock measures elapsed presentation time from an anchor instant.
// Pausing freezes the reading; resuming rebases the anchor so time
// continues seamlessly from the frozen value. Changing the speed
// multiplier rescales only future accumulation, preserving the
// instantaneous reading at the moment of the call, so neither a
// pause/resume cycle nor a speed change ever produces a jump on the
// presentation timeline.
//
// Wall time is read through a TimeProvider so tests can drive the
// clock deterministically.
package clock

// Package dezip implements the per-effect volume-ramp state machine
// from §4.D: a dB-stepped, segment-interpolated ramp that prevents
// audible zipper noise when a control changes. Adapted from the
// teacher's normalized-space parameter smoother into the spec's exact
// dB/linear-amplitude two-space design.
package dezip

import "math"

// SegmentSize is the frame count between ramp recomputations, fixed by
// §4.D.
const SegmentSize = 64

// Dezipper tracks one control's ramp from its current dB value toward
// a target dB value, re-deriving its linear-amplitude step every
// SegmentSize frames.
type Dezipper struct {
	minDB       float64
	rateSeconds float64
	sampleRate  float64

	targetDB float64
	currentDB float64

	x      float64 // current linear amplitude
	targetX float64
	dx     float64

	count        int // frames remaining in the current segment, -1 = idle
	dbPerSegment float64
}

// New creates a dezipper starting at startDB, ramping so that a 96dB
// change takes rateSeconds seconds, with minDB as the floor below which
// the ramp snaps to silence.
func New(sampleRate, rateSeconds, minDB, startDB float64) *Dezipper {
	d := &Dezipper{
		minDB:       minDB,
		rateSeconds: rateSeconds,
		sampleRate:  sampleRate,
		targetDB:    startDB,
		currentDB:   startDB,
		count:       -1,
	}
	d.x = db2a(startDB, minDB)
	d.targetX = d.x
	return d
}

// SetTarget updates the ramp's destination and restarts segment
// counting so the next Tick recomputes dx immediately.
func (d *Dezipper) SetTarget(db float64) {
	d.targetDB = db
	d.count = 0
}

// db2a converts a dB value to linear amplitude, snapping to 0 below
// minDB per §4.D.
func db2a(db, minDB float64) float64 {
	if db <= minDB {
		return 0
	}
	return math.Pow(10, db/20)
}

// Tick advances the ramp by one frame and returns the current linear
// amplitude. Idle dezippers (count == -1) return x with no work, per
// §4.D's "no work when caught up" clause.
func (d *Dezipper) Tick() float64 {
	if d.count == -1 {
		return d.x
	}

	if d.count == 0 {
		d.dbPerSegment = 96.0 / d.rateSeconds * float64(SegmentSize) / d.sampleRate
		d.advanceCurrentDB()
		d.targetX = db2a(d.currentDB, d.minDB)
		d.dx = (d.targetX - d.x) / float64(SegmentSize)
		d.count = SegmentSize
	}

	d.x += d.dx
	d.count--

	if d.currentDB == d.targetDB && d.count == 0 {
		d.x = d.targetX
		d.count = -1
	}

	return d.x
}

func (d *Dezipper) advanceCurrentDB() {
	if d.currentDB < d.targetDB {
		d.currentDB += d.dbPerSegment
		if d.currentDB > d.targetDB {
			d.currentDB = d.targetDB
		}
	} else if d.currentDB > d.targetDB {
		d.currentDB -= d.dbPerSegment
		if d.currentDB < d.targetDB {
			d.currentDB = d.targetDB
		}
	}
}

// IsIdle reports whether the ramp has caught up to its target.
func (d *Dezipper) IsIdle() bool { return d.count == -1 }

// CurrentDB returns the ramp's current dB value, mainly for tests.
func (d *Dezipper) CurrentDB() float64 { return d.currentDB }

// BlocksToConverge returns the number of blockSize-frame blocks §8
// property 5 bounds the ramp to: ceil(rateSeconds * sampleRate /
// blockSize), plus one block of slack for segment quantization.
func (d *Dezipper) BlocksToConverge(blockSize int) int {
	blocks := int(math.Ceil(d.rateSeconds * d.sampleRate / float64(blockSize)))
	return blocks + 1
}

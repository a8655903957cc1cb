package models

// SustainEvent is a sustain pedal (CC 64) change in the performance.
type SustainEvent struct {
	Time  float64 // Seconds
	Value int     // 0-127
}

// OnsetVelocity is the key velocity of a note onset in the performance.
type OnsetVelocity struct {
	Time     float64 // Seconds
	Pitch    int
	Velocity int
}

// Piece groups the input files of one score/performance pair.
type Piece struct {
	ID          string
	Folder      string
	Score       string // .mscz, .mxl or .xml
	PerfMIDI    string
	PerfAudio   string
	ManualBeats string
	ManualBars  string
}

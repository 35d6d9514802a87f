package control

import (
	"gonum.org/v1/gonum/stat"
)

// Status is a snapshot of the loop for the debug endpoint.
type Status struct {
	State           string  `json:"state"`
	CurrentIndex    int     `json:"current_index"`
	Track           string  `json:"track"`
	Paused          bool    `json:"paused"`
	CurrentRPM      float64 `json:"current_rpm"`
	Speed           float64 `json:"speed"`
	RPMMean         float64 `json:"rpm_mean"`
	RPMStdDev       float64 `json:"rpm_stddev"`
	RPMSamples      int     `json:"rpm_samples"`
	QueuedSamples   int     `json:"queued_samples"`
	QueuedCommands  int     `json:"queued_commands"`
	TrackEndPending bool    `json:"track_end_pending"`
	TrackEnds       uint64  `json:"track_end_signals"`
	SamplesDropped  uint64  `json:"samples_dropped"`
	Ticks           uint64  `json:"ticks"`
	Executed        uint64  `json:"commands_executed"`
	Failures        uint64  `json:"command_failures"`
	LastError       string  `json:"last_error,omitempty"`
}

// Status returns the current snapshot.
func (l *Loop) Status() Status {
	l.shared.mu.Lock()
	pb := l.shared.playback
	st := Status{
		State:           pb.State.String(),
		CurrentIndex:    pb.CurrentIndex,
		Paused:          pb.Paused,
		QueuedSamples:   len(l.shared.telemetry),
		QueuedCommands:  len(l.shared.commands),
		TrackEndPending: l.shared.trackEnded,
		TrackEnds:       l.shared.endSignals,
		SamplesDropped:  l.shared.telemetryDropped,
	}
	l.shared.mu.Unlock()
	st.Track = l.seq.Playlist().At(st.CurrentIndex).Path

	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	st.CurrentRPM = l.currentRPM
	st.Speed = l.lastSpeed
	st.Ticks = l.ticks
	st.Executed = l.executed
	st.Failures = l.failures
	st.LastError = l.lastError
	st.RPMSamples = len(l.rpmHistory)
	switch len(l.rpmHistory) {
	case 0:
	case 1:
		st.RPMMean = l.rpmHistory[0]
	default:
		st.RPMMean, st.RPMStdDev = stat.MeanStdDev(l.rpmHistory, nil)
	}
	return st
}

package roof

// faultThreshold is how many consecutive I/O failures force a hardware
// session reset. Transient glitches recover on the next good read;
// sustained failure means the session itself is wedged.
const faultThreshold = 10

// FaultMonitor counts consecutive switch read failures. Any successful
// read resets it.
type FaultMonitor struct {
	consecutive int
	threshold   int
}

// NewFaultMonitor returns a monitor with the default threshold.
func NewFaultMonitor() FaultMonitor {
	return FaultMonitor{threshold: faultThreshold}
}

// Failure records one failed read and reports whether the consecutive
// count has now exceeded the threshold.
func (m *FaultMonitor) Failure() bool {
	m.consecutive++
	return m.consecutive > m.threshold
}

// Success records a good read, clearing the streak.
func (m *FaultMonitor) Success() {
	m.consecutive = 0
}

// Count returns the current consecutive failure count.
func (m *FaultMonitor) Count() int {
	return m.consecutive
}

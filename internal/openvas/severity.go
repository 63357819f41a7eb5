package openvas

// Severity is the scanner's threat label after normalization.
type Severity string

const (
	SeverityCritical      Severity = "Critical"
	SeverityHigh          Severity = "High"
	SeverityMedium        Severity = "Medium"
	SeverityLow           Severity = "Low"
	SeverityLog           Severity = "Log"
	SeverityDebug         Severity = "Debug"
	SeverityFalsePositive Severity = "False Positive"

	// threatAlarm is what older scanners emit for the worst findings.
	threatAlarm = "Alarm"
)

// MapSeverity turns a raw threat label into a Severity. Only "Alarm" is
// rewritten; every other label passes through.
func MapSeverity(threat string) Severity {
	if threat == threatAlarm {
		return SeverityCritical
	}
	return Severity(threat)
}

// Ignored reports whether findings of this severity produce no vulnerability.
func (s Severity) Ignored() bool {
	return s == SeverityLog || s == SeverityDebug
}

func (s Severity) String() string {
	return string(s)
}

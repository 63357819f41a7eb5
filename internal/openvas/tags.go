package openvas

import "strings"

// TagData is what the NVT tag field contributes to a finding.
type TagData struct {
	Description    string
	Solution       string
	CVSSBaseVector string
}

// ParseTags reads the scanner's "key=value|key=value" tag text. Values may
// contain '='; segments without one and unknown keys are ignored.
//
// summary and insight together form the description. A bare description key
// is only used when neither of them is present.
func ParseTags(text string) TagData {
	var (
		data             TagData
		summary, insight string
	)
	for _, segment := range strings.Split(collapseSpace(text), "|") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "solution":
			data.Solution = value
		case "cvss_base_vector":
			data.CVSSBaseVector = value
		case "description":
			data.Description = value
		case "summary":
			summary = value
		case "insight":
			insight = value
		}
	}
	if joined := strings.TrimSpace(summary + " " + insight); joined != "" {
		data.Description = joined
	}
	return data
}

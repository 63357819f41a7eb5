package openvas

import (
	"regexp"
	"strings"
)

const (
	// HostPort marks a host-scoped finding.
	HostPort       = "None"
	GeneralService = "general"
	UnknownService = "Unknown"
)

// Finding is the normalized form of one report result.
type Finding struct {
	Host        string
	Subnet      string
	Port        string
	Protocol    string
	Service     string
	OID         string
	Severity    Severity
	Name        string
	Description string
	Resolution  string
	CVSSVector  string
	References  []string
}

// HostScoped reports whether the finding belongs to the host rather than a service.
func (f Finding) HostScoped() bool {
	return f.Port == HostPort
}

// Normalize resolves port, service, severity, references and tag data for raw.
// hosts may lack raw.Host; the service lookup then relies on table alone.
func Normalize(raw RawFinding, hosts map[string]*HostRecord, table ServiceTable) Finding {
	f := Finding{
		Host:     raw.Host,
		Subnet:   raw.Subnet,
		OID:      raw.OID,
		Name:     raw.Name,
		Severity: MapSeverity(raw.Threat),
	}

	number, protocol, _ := strings.Cut(raw.Port, "/")
	switch number {
	case GeneralService, "":
		f.Port = HostPort
		f.Protocol = protocol
		f.Service = GeneralService
	default:
		f.Port = number
		f.Protocol = protocol
		var details *Details
		if h, ok := hosts[raw.Host]; ok {
			details = h.Details
		}
		f.Service = resolveService(raw.Port, details, table)
	}

	cve := dropPlaceholder(raw.CVE, NoCVE)
	bid := dropPlaceholder(raw.BID, NoBID)
	xref := dropPlaceholder(raw.XRef, NoXRef)

	if raw.Tags != "" {
		tags := ParseTags(raw.Tags)
		f.Description = tags.Description
		f.Resolution = tags.Solution
		f.CVSSVector = tags.CVSSBaseVector
	}

	for _, ref := range []string{cve, bid, xref, f.CVSSVector} {
		if ref != "" {
			f.References = append(f.References, ref)
		}
	}
	return f
}

func dropPlaceholder(value, placeholder string) string {
	if value == placeholder {
		return ""
	}
	return value
}

var webServicePattern = regexp.MustCompile(`^(www|http)`)

// IsWeb decides whether a service-scoped finding is reported as a web
// vulnerability. A resolved service name decides on its own; the well-known
// web ports only count when no name was resolved.
func IsWeb(service, port string) bool {
	if service != "" && service != UnknownService {
		return webServicePattern.MatchString(service)
	}
	switch port {
	case "80", "443", "8080":
		return true
	}
	return false
}

package openvas

import "strings"

// Tier ranks how a host detail identified a port's service. Higher wins.
type Tier int

const (
	TierNone Tier = iota - 1
	// TierColon matches "<port>::..." values. It ranks below a bare numeric
	// match, so it never displaces a stronger match found earlier.
	TierColon
	TierNumeric  // value equals the port number
	TierSlash    // "<port>/..." value, the detail name is the service
	TierServices // "Services" record "<port>,<proto>,<service>"
)

const servicesDetail = "Services"

type serviceMatch struct {
	name string
	tier Tier
}

// offer keeps the candidate only when it ranks strictly above the current best,
// so among equal tiers the first match in detail order wins.
func (m *serviceMatch) offer(name string, tier Tier) {
	if name == "" || tier <= m.tier {
		return
	}
	m.name, m.tier = name, tier
}

// matchService scans every detail value and returns the best-ranked service
// name for port (a bare port number).
func matchService(details *Details, port string) (string, Tier) {
	best := serviceMatch{tier: TierNone}
	for name, values := range details.All() {
		for _, value := range values {
			best.offer(classifyDetail(name, value, port))
		}
	}
	return best.name, best.tier
}

// classifyDetail ranks one detail value against port. The checks are tried in
// turn: a CPE such as "8080::cpe:/a:apache" contains a slash but is still a
// colon match.
func classifyDetail(name, value, port string) (string, Tier) {
	if name == servicesDetail {
		fields := strings.Split(value, ",")
		if len(fields) >= 3 && strings.TrimSpace(fields[0]) == port {
			return strings.TrimSpace(fields[2]), TierServices
		}
		return "", TierNone
	}
	if prefix, _, found := strings.Cut(value, "/"); found && prefix == port {
		return name, TierSlash
	}
	if isDigits(value) && value == port {
		return name, TierNumeric
	}
	if prefix, _, found := strings.Cut(value, "::"); found && prefix == port {
		return name, TierColon
	}
	return "", TierNone
}

// resolveService maps a "port/proto" string to a service name: host details
// first, then the static table, then UnknownService.
func resolveService(portProto string, details *Details, table ServiceTable) string {
	number, _, _ := strings.Cut(portProto, "/")
	if name, _ := matchService(details, number); name != "" {
		return name
	}
	if name, ok := table.Lookup(portProto); ok {
		return name
	}
	return UnknownService
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package openvas

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Placeholders the scanner writes when an NVT has no cross reference.
const (
	NoCVE  = "NOCVE"
	NoBID  = "NOBID"
	NoXRef = "NOXREF"
)

// RawFinding is one <result> node, read but not yet interpreted.
type RawFinding struct {
	Host   string
	Subnet string
	Port   string // "22/tcp", or "general/tcp" for host-level results
	OID    string
	Threat string
	Name   string
	CVE    string
	BID    string
	XRef   string
	Tags   string
}

func newRawFinding(n *xmlquery.Node) RawFinding {
	raw := RawFinding{
		Host:   textOf(n, "host"),
		Subnet: textOf(n, "subnet"),
		Port:   textOf(n, "port"),
		Threat: textOf(n, "threat"),
	}
	if raw.Subnet == "" {
		raw.Subnet = raw.Host
	}

	nvt := xmlquery.FindOne(n, "nvt")
	if nvt == nil {
		return raw
	}
	raw.OID = nvt.SelectAttr("oid")
	raw.Name = textOf(nvt, "name")
	raw.Tags = textOf(nvt, "tags")

	raw.CVE = textOf(nvt, "cve")
	if raw.CVE == "" {
		raw.CVE = refIDs(nvt, "cve", "")
	}
	raw.BID = textOf(nvt, "bid")
	if raw.BID == "" {
		raw.BID = refIDs(nvt, "bid", "")
	}
	raw.XRef = textOf(nvt, "xref")
	if raw.XRef == "" {
		raw.XRef = refIDs(nvt, "url", "URL:")
	}
	return raw
}

// refIDs collects the ids of newer-style <refs><ref type=".." id=".."/></refs>
// entries of one type.
func refIDs(nvt *xmlquery.Node, refType, prefix string) string {
	var ids []string
	for _, ref := range xmlquery.Find(nvt, fmt.Sprintf("refs/ref[@type='%s']", refType)) {
		if id := strings.TrimSpace(ref.SelectAttr("id")); id != "" {
			ids = append(ids, prefix+id)
		}
	}
	return strings.Join(ids, ", ")
}

package openvas

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrNoDocument is reported when the input parses but carries no root element.
var ErrNoDocument = errors.New("openvas: no document element")

// HostRecord holds what the report's host section says about one IP.
type HostRecord struct {
	IP        string
	Hostnames []string
	Details   *Details
}

// Report is a parsed OpenVAS XML report.
type Report struct {
	Hosts map[string]*HostRecord

	order []string
	root  *xmlquery.Node
	err   error
}

// Parse builds a Report from raw report text. It never fails: input that is
// not well-formed markup yields an empty report whose Err is set.
func Parse(data []byte) *Report {
	r := &Report{Hosts: make(map[string]*HostRecord)}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		r.err = fmt.Errorf("openvas: parse report: %w", err)
		return r
	}
	root := documentElement(doc)
	if root == nil {
		r.err = ErrNoDocument
		return r
	}

	r.root = root
	r.collectHosts()
	return r
}

// Err returns the structural error that made the report empty, if any.
func (r *Report) Err() error {
	return r.err
}

// HostIPs returns host IPs in document order.
func (r *Report) HostIPs() []string {
	return append([]string(nil), r.order...)
}

// Items walks the report's result nodes. Each call starts a fresh walk.
func (r *Report) Items() iter.Seq[RawFinding] {
	return func(yield func(RawFinding) bool) {
		parent := r.resultParent()
		if parent == nil {
			return
		}
		for n := parent.FirstChild; n != nil; n = n.NextSibling {
			if n.Type != xmlquery.ElementNode || n.Data != "result" {
				continue
			}
			if !yield(newRawFinding(n)) {
				return
			}
		}
	}
}

// Findings normalizes every item against the report's hosts.
func (r *Report) Findings(table ServiceTable) iter.Seq[Finding] {
	return func(yield func(Finding) bool) {
		for raw := range r.Items() {
			if !yield(Normalize(raw, r.Hosts, table)) {
				return
			}
		}
	}
}

// resultParent picks the node whose result children hold the findings:
// report/results under the outer report when present, the root otherwise.
func (r *Report) resultParent() *xmlquery.Node {
	if r.root == nil {
		return nil
	}
	if inner := xmlquery.FindOne(r.root, "report"); inner != nil {
		if results := xmlquery.FindOne(inner, "results"); results != nil {
			return results
		}
	}
	return r.root
}

func (r *Report) collectHosts() {
	for _, node := range xmlquery.Find(r.root, "report/host") {
		ip := textOf(node, "ip")
		if ip == "" {
			continue
		}

		rec, ok := r.Hosts[ip]
		if !ok {
			rec = &HostRecord{IP: ip, Details: newDetails()}
			r.Hosts[ip] = rec
			r.order = append(r.order, ip)
		}

		for _, detail := range xmlquery.Find(node, "detail") {
			name := textOf(detail, "name")
			if strings.Contains(name, "EXIT") {
				continue
			}
			value := rawTextOf(detail, "value")
			if name == "hostname" {
				rec.addHostname(strings.TrimSpace(value))
				continue
			}
			rec.Details.add(name, collapseSpace(value))
		}
	}
}

func (h *HostRecord) addHostname(name string) {
	if name == "" {
		return
	}
	for _, existing := range h.Hostnames {
		if existing == name {
			return
		}
	}
	h.Hostnames = append(h.Hostnames, name)
}

func documentElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// ownText returns the text an element carries before its first child element.
func ownText(n *xmlquery.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			break
		}
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func rawTextOf(n *xmlquery.Node, expr string) string {
	if n == nil {
		return ""
	}
	sub := xmlquery.FindOne(n, expr)
	if sub == nil {
		return ""
	}
	return ownText(sub)
}

func textOf(n *xmlquery.Node, expr string) string {
	return strings.TrimSpace(rawTextOf(n, expr))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

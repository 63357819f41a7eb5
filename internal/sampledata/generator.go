// Package sampledata writes synthetic OpenVAS reports for demos and tests.
package sampledata

import (
	"encoding/xml"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hootmeow/openvas-strix/internal/openvas"
)

type envelope struct {
	XMLName  xml.Name `xml:"report"`
	ID       string   `xml:"id,attr"`
	FormatID string   `xml:"format_id,attr"`
	Name     string   `xml:"name"`
	Report   inner    `xml:"report"`
}

type inner struct {
	ID            string      `xml:"id,attr"`
	ScanRunStatus string      `xml:"scan_run_status"`
	Hosts         []hostBlock `xml:"host"`
	Results       results     `xml:"results"`
}

type hostBlock struct {
	IP      string   `xml:"ip"`
	Start   string   `xml:"start"`
	End     string   `xml:"end"`
	Details []detail `xml:"detail"`
}

type detail struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

type results struct {
	Start int      `xml:"start,attr"`
	Max   int      `xml:"max,attr"`
	Items []result `xml:"result"`
}

type result struct {
	ID          string `xml:"id,attr"`
	Name        string `xml:"name"`
	Host        string `xml:"host"`
	Port        string `xml:"port"`
	NVT         nvt    `xml:"nvt"`
	Threat      string `xml:"threat"`
	Description string `xml:"description"`
}

type nvt struct {
	OID      string `xml:"oid,attr"`
	Name     string `xml:"name"`
	CVSSBase string `xml:"cvss_base"`
	CVE      string `xml:"cve,omitempty"`
	BID      string `xml:"bid,omitempty"`
	XRef     string `xml:"xref,omitempty"`
	Tags     string `xml:"tags"`
	Refs     *refs  `xml:"refs,omitempty"`
}

type refs struct {
	Ref []ref `xml:"ref"`
}

type ref struct {
	Type string `xml:"type,attr"`
	ID   string `xml:"id,attr"`
}

type check struct {
	oid    string
	name   string
	port   string
	threat string
	cvss   string
	cves   []string
	bid    string
	url    string
	vector string
	newRef bool // emit <refs> instead of <cve>/<bid>/<xref>
}

var checks = []check{
	{oid: "1.3.6.1.4.1.25623.1.0.105611", name: "Weak SSH Encryption Algorithms Supported", port: "22/tcp", threat: "Medium", cvss: "4.3", vector: "AV:N/AC:M/Au:N/C:P/I:N/A:N"},
	{oid: "1.3.6.1.4.1.25623.1.0.150713", name: "OpenSSH Privilege Escalation", port: "22/tcp", threat: "High", cvss: "7.8", cves: []string{"CVE-2021-41617"}, vector: "AV:L/AC:L/Au:N/C:C/I:C/A:C", newRef: true},
	{oid: "1.3.6.1.4.1.25623.1.0.117523", name: "Apache Log4j RCE (Log4Shell)", port: "8080/tcp", threat: "Alarm", cvss: "10.0", cves: []string{"CVE-2021-44228", "CVE-2021-45046"}, url: "https://logging.apache.org/log4j/2.x/security.html", vector: "AV:N/AC:L/Au:N/C:C/I:C/A:C", newRef: true},
	{oid: "1.3.6.1.4.1.25623.1.0.103674", name: "OpenSSL Heartbleed", port: "443/tcp", threat: "High", cvss: "7.5", cves: []string{"CVE-2014-0160"}, bid: "66690", vector: "AV:N/AC:L/Au:N/C:P/I:N/A:N"},
	{oid: "1.3.6.1.4.1.25623.1.0.108440", name: "SSL/TLS: Deprecated TLSv1.0 and TLSv1.1 Protocol Detection", port: "443/tcp", threat: "Medium", cvss: "4.3", vector: "AV:N/AC:M/Au:N/C:P/I:N/A:N"},
	{oid: "1.3.6.1.4.1.25623.1.0.11213", name: "HTTP Debugging Methods (TRACE/TRACK) Enabled", port: "80/tcp", threat: "Medium", cvss: "5.8", cves: []string{"CVE-2003-1567", "CVE-2004-2320"}, bid: "9506", url: "https://www.kb.cert.org/vuls/id/288308", vector: "AV:N/AC:M/Au:N/C:P/I:P/A:N"},
	{oid: "1.3.6.1.4.1.25623.1.0.108018", name: "Cleartext Transmission of Sensitive Information via HTTP", port: "80/tcp", threat: "Low", cvss: "2.6", vector: "AV:N/AC:H/Au:N/C:P/I:N/A:N"},
	{oid: "1.3.6.1.4.1.25623.1.0.100152", name: "MySQL / MariaDB Detection", port: "3306/tcp", threat: "Log", cvss: "0.0"},
	{oid: "1.3.6.1.4.1.25623.1.0.103122", name: "MySQL Weak Password", port: "3306/tcp", threat: "High", cvss: "9.0", vector: "AV:N/AC:L/Au:S/C:C/I:C/A:C"},
	{oid: "1.3.6.1.4.1.25623.1.0.108560", name: "OS End Of Life Detection", port: "general/tcp", threat: "High", cvss: "10.0", vector: "AV:N/AC:L/Au:N/C:C/I:C/A:C"},
	{oid: "1.3.6.1.4.1.25623.1.0.80091", name: "TCP Timestamps Information Disclosure", port: "general/tcp", threat: "Low", cvss: "2.6", vector: "AV:N/AC:H/Au:N/C:P/I:N/A:N"},
	{oid: "1.3.6.1.4.1.25623.1.0.10330", name: "Services", port: "general/tcp", threat: "Log", cvss: "0.0"},
}

var hostServices = []detail{
	{Name: "Services", Value: "22,tcp,ssh"},
	{Name: "Services", Value: "80,tcp,www"},
	{Name: "https", Value: "443/tcp"},
}

// Scan describes one synthetic report.
type Scan struct {
	Name     string
	Date     time.Time
	NumHosts int
	Seed     int64
}

// WriteReport renders scan as an OpenVAS XML report. The same Seed always
// yields the same findings.
func WriteReport(w io.Writer, scan Scan) error {
	r := rand.New(rand.NewSource(scan.Seed))
	reportID := fmt.Sprintf("00000000-0000-4000-8000-%012d", scan.Seed)
	doc := envelope{
		ID:       reportID,
		FormatID: "a994b278-1f62-11e1-96ac-406186ea4fc5",
		Name:     scan.Name,
		Report: inner{
			ID:            reportID,
			ScanRunStatus: "Done",
			Results:       results{Start: 1},
		},
	}

	for i := 0; i < scan.NumHosts; i++ {
		ip := fmt.Sprintf("192.168.1.%d", 100+i)
		host := hostBlock{
			IP:    ip,
			Start: scan.Date.Format(time.RFC3339),
			End:   scan.Date.Add(30 * time.Minute).Format(time.RFC3339),
			Details: append([]detail{
				{Name: "hostname", Value: fmt.Sprintf("host-%d.local", 100+i)},
				{Name: "EXIT_CODE", Value: "EXIT_NOTVULN"},
			}, hostServices...),
		}
		doc.Report.Hosts = append(doc.Report.Hosts, host)

		for _, c := range checks {
			// Roughly half the checks fire on any given host.
			if r.Intn(2) == 0 {
				continue
			}
			doc.Report.Results.Items = append(doc.Report.Results.Items, newResult(len(doc.Report.Results.Items)+1, ip, c))
		}
	}
	doc.Report.Results.Max = len(doc.Report.Results.Items)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

func newResult(n int, ip string, c check) result {
	tags := fmt.Sprintf("summary=%s was detected on the target.|insight=The remote service is affected.|solution=Update the affected component to the latest version.|solution_type=VendorFix", c.name)
	if c.vector != "" {
		tags = "cvss_base_vector=" + c.vector + "|" + tags
	}

	v := nvt{
		OID:      c.oid,
		Name:     c.name,
		CVSSBase: c.cvss,
		Tags:     tags,
	}
	if c.newRef {
		v.Refs = &refs{}
		for _, id := range c.cves {
			v.Refs.Ref = append(v.Refs.Ref, ref{Type: "cve", ID: id})
		}
		if c.bid != "" {
			v.Refs.Ref = append(v.Refs.Ref, ref{Type: "bid", ID: c.bid})
		}
		if c.url != "" {
			v.Refs.Ref = append(v.Refs.Ref, ref{Type: "url", ID: c.url})
		}
	} else {
		v.CVE, v.BID, v.XRef = openvas.NoCVE, openvas.NoBID, openvas.NoXRef
		if len(c.cves) > 0 {
			v.CVE = strings.Join(c.cves, ", ")
		}
		if c.bid != "" {
			v.BID = c.bid
		}
		if c.url != "" {
			v.XRef = "URL:" + c.url
		}
	}

	return result{
		ID:          fmt.Sprintf("result-%d", n),
		Name:        c.name,
		Host:        ip,
		Port:        c.port,
		NVT:         v,
		Threat:      c.threat,
		Description: c.name + " detected.",
	}
}

// Generate writes a baseline, a mid-quarter and a recent scan into outputDir
// and returns their paths.
func Generate(outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	now := time.Now()
	scans := []struct {
		file string
		scan Scan
	}{
		{"scan1_baseline.xml", Scan{Name: "Baseline Scan", Date: now.AddDate(0, 0, -95), NumHosts: 20, Seed: 1}},
		{"scan2_mid.xml", Scan{Name: "Mid-Quarter Scan", Date: now.AddDate(0, 0, -45), NumHosts: 20, Seed: 2}},
		{"scan3_recent.xml", Scan{Name: "Recent Scan", Date: now.AddDate(0, 0, -2), NumHosts: 25, Seed: 3}},
	}

	var paths []string
	for _, s := range scans {
		path := filepath.Join(outputDir, s.file)
		if err := writeFile(path, s.scan); err != nil {
			return paths, fmt.Errorf("generate %s: %w", s.file, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, scan Scan) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteReport(f, scan); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

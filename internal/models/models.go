package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Host represents a unique asset in the environment.
type Host struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	IP          string `gorm:"uniqueIndex;size:50" json:"ip"` // Support IPv6
	Hostnames   string `gorm:"size:1024" json:"hostnames"`     // Comma-separated
	Criticality string `gorm:"size:20;default:'Medium'" json:"criticality"`

	Services []Service `json:"services,omitempty"`
	Scans    []Scan    `gorm:"many2many:host_scans;" json:"scans,omitempty"`
}

// HostnameList splits the stored hostnames.
func (h Host) HostnameList() []string {
	return SplitList(h.Hostnames)
}

// Service is a network service seen on a host.
type Service struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	HostID   uint   `gorm:"uniqueIndex:idx_service_host_port" json:"host_id"`
	Port     string `gorm:"size:50;uniqueIndex:idx_service_host_port" json:"port"`
	Protocol string `gorm:"size:20;uniqueIndex:idx_service_host_port" json:"protocol"`
	Name     string `gorm:"size:100" json:"name"`
}

// Scan represents a single imported OpenVAS report.
type Scan struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ReportID   string    `gorm:"uniqueIndex;size:64" json:"report_id"`
	Name       string    `gorm:"size:255" json:"name"`   // original file name
	Source     string    `gorm:"size:50" json:"source"`  // cli, upload, email
	Plugin     string    `gorm:"size:50" json:"plugin"`
	OutputPath string    `gorm:"size:1024" json:"output_path"`
	ScanStart  time.Time `json:"scan_start"`
	ScanEnd    time.Time `json:"scan_end"`

	// Imported Stats (Snapshot at time of import)
	HostCount     int `json:"host_count"`
	ServiceCount  int `json:"service_count"`
	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	LowCount      int `json:"low_count"`
	OtherCount    int `json:"other_count"`
	IgnoredCount  int `json:"ignored_count"`
}

// Vulnerability is one finding reported on a host or one of its services.
// Rows are kept per scan; nothing is merged across runs.
type Vulnerability struct {
	gorm.Model
	ScanID    uint     `gorm:"index" json:"scan_id"`
	HostID    uint     `gorm:"index" json:"host_id"`
	Host      Host     `json:"host"`
	ServiceID *uint    `gorm:"index" json:"service_id,omitempty"`
	Service   *Service `json:"service,omitempty"`

	Name        string `json:"name"`
	Description string `json:"description"`
	Resolution  string `json:"resolution"`
	Severity    string `gorm:"size:20;index" json:"severity"` // Critical, High, Medium, Low, False Positive
	References  string `json:"references"`                     // Newline-separated
	CVEs        string `json:"cves"`                           // Comma-separated
	Website     string `gorm:"size:255" json:"website,omitempty"`
	Web         bool   `json:"web"`

	// Enrichment
	InKEV bool `json:"in_kev"` // CISA Known Exploited
}

// ReferenceList splits the stored references.
func (v Vulnerability) ReferenceList() []string {
	if v.References == "" {
		return nil
	}
	return strings.Split(v.References, "\n")
}

// CVEList splits the stored CVE identifiers.
func (v Vulnerability) CVEList() []string {
	return SplitList(v.CVEs)
}

// AuditLog tracks critical actions taken in the system.
type AuditLog struct {
	gorm.Model
	User      string `json:"user"`
	Action    string `json:"action"`
	Target    string `json:"target"`
	Details   string `json:"details"`
	IPAddress string `json:"ip_address"`
}

// SplitList splits a comma-separated column, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ExtractCVEs pulls CVE identifiers out of reference strings, which may hold
// several comma-separated IDs each.
func ExtractCVEs(refs []string) []string {
	var cves []string
	seen := make(map[string]bool)
	for _, ref := range refs {
		for _, id := range SplitList(ref) {
			if strings.HasPrefix(id, "CVE-") && !seen[id] {
				seen[id] = true
				cves = append(cves, id)
			}
		}
	}
	return cves
}

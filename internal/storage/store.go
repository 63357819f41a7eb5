package storage

import (
	"github.com/hootmeow/openvas-strix/internal/models"
)

// Store defines the methods required for the persistence layer.
type Store interface {
	// Close closes the database connection.
	Close() error

	// AutoMigrate runs the database migrations.
	AutoMigrate() error

	// UpsertHost creates a host or merges hostnames into the existing one.
	UpsertHost(host *models.Host) error

	// UpsertService creates a service or renames the existing one on the same host/port/protocol.
	UpsertService(svc *models.Service) error

	// CreateVulnerability inserts a finding for the current scan.
	CreateVulnerability(vuln *models.Vulnerability) error

	// SetVulnerabilityKEV flags a vulnerability as known exploited.
	SetVulnerabilityKEV(id uint, inKEV bool) error

	// Dashboard Queries
	GetHostCount() (int64, error)
	GetVulnCount(severity string) (int64, error)
	GetHosts() ([]models.Host, error)
	GetHost(id uint) (*models.Host, error)
	GetVulnerabilities(severity string) ([]models.Vulnerability, error)
	GetVulnerabilitiesForHost(hostID uint) ([]models.Vulnerability, error)

	// Scan Operations
	CreateScan(scan *models.Scan) error
	UpdateScan(scan *models.Scan) error
	AddHostToScan(hostID, scanID uint) error
	GetScans() ([]models.Scan, error)
	GetScan(id uint) (*models.Scan, error)

	CreateAuditLog(entry *models.AuditLog) error
}

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hootmeow/openvas-strix/internal/models"
)

type SQLiteStore struct {
	db *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore initializes a new SQLite database connection.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Host{},
		&models.Service{},
		&models.Scan{},
		&models.Vulnerability{},
		&models.AuditLog{},
	)
}

func (s *SQLiteStore) UpsertHost(host *models.Host) error {
	var existing models.Host
	err := s.db.Where("ip = ?", host.IP).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(host).Error
	}
	if err != nil {
		return err
	}

	// Hostnames only ever accumulate; criticality is owned by the operator.
	existing.Hostnames = mergeList(existing.Hostnames, host.Hostnames)
	if err := s.db.Save(&existing).Error; err != nil {
		return err
	}
	*host = existing
	return nil
}

func (s *SQLiteStore) UpsertService(svc *models.Service) error {
	var existing models.Service
	err := s.db.Where("host_id = ? AND port = ? AND protocol = ?", svc.HostID, svc.Port, svc.Protocol).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(svc).Error
	}
	if err != nil {
		return err
	}

	if svc.Name != "" && svc.Name != existing.Name {
		existing.Name = svc.Name
		if err := s.db.Save(&existing).Error; err != nil {
			return err
		}
	}
	*svc = existing
	return nil
}

func (s *SQLiteStore) CreateVulnerability(vuln *models.Vulnerability) error {
	return s.db.Omit("Host", "Service").Create(vuln).Error
}

func (s *SQLiteStore) SetVulnerabilityKEV(id uint, inKEV bool) error {
	return s.db.Model(&models.Vulnerability{}).Where("id = ?", id).Update("in_kev", inKEV).Error
}

func (s *SQLiteStore) GetHostCount() (int64, error) {
	var count int64
	err := s.db.Model(&models.Host{}).Count(&count).Error
	return count, err
}

func (s *SQLiteStore) GetVulnCount(severity string) (int64, error) {
	var count int64
	q := s.db.Model(&models.Vulnerability{})
	if severity != "" {
		q = q.Where("severity = ?", severity)
	}
	err := q.Count(&count).Error
	return count, err
}

func (s *SQLiteStore) GetHosts() ([]models.Host, error) {
	var hosts []models.Host
	err := s.db.Model(&models.Host{}).Order("ip asc").Find(&hosts).Error
	return hosts, err
}

func (s *SQLiteStore) GetHost(id uint) (*models.Host, error) {
	var host models.Host
	err := s.db.Preload("Services", func(db *gorm.DB) *gorm.DB {
		return db.Order("port asc")
	}).Preload("Scans").First(&host, id).Error
	if err != nil {
		return nil, err
	}
	return &host, nil
}

func (s *SQLiteStore) GetVulnerabilities(severity string) ([]models.Vulnerability, error) {
	var vulns []models.Vulnerability
	q := s.db.Preload("Host").Preload("Service")
	if severity != "" {
		q = q.Where("severity = ?", severity)
	}
	if err := q.Find(&vulns).Error; err != nil {
		return nil, err
	}
	sortBySeverity(vulns)
	return vulns, nil
}

func (s *SQLiteStore) GetVulnerabilitiesForHost(hostID uint) ([]models.Vulnerability, error) {
	var vulns []models.Vulnerability
	if err := s.db.Preload("Service").Where("host_id = ?", hostID).Find(&vulns).Error; err != nil {
		return nil, err
	}
	sortBySeverity(vulns)
	return vulns, nil
}

func (s *SQLiteStore) CreateScan(scan *models.Scan) error {
	return s.db.Create(scan).Error
}

func (s *SQLiteStore) UpdateScan(scan *models.Scan) error {
	return s.db.Save(scan).Error
}

func (s *SQLiteStore) AddHostToScan(hostID, scanID uint) error {
	// Write the many2many join row directly; Association.Append would try to
	// re-insert the scan and trip its unique report_id.
	return s.db.Exec("INSERT OR IGNORE INTO host_scans (host_id, scan_id) VALUES (?, ?)", hostID, scanID).Error
}

func (s *SQLiteStore) GetScans() ([]models.Scan, error) {
	var scans []models.Scan
	err := s.db.Order("scan_start desc").Find(&scans).Error
	return scans, err
}

func (s *SQLiteStore) GetScan(id uint) (*models.Scan, error) {
	var scan models.Scan
	err := s.db.First(&scan, id).Error
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (s *SQLiteStore) CreateAuditLog(entry *models.AuditLog) error {
	return s.db.Create(entry).Error
}

var severityOrder = map[string]int{
	"Critical":       5,
	"High":           4,
	"Medium":         3,
	"Low":            2,
	"False Positive": 1,
}

// sortBySeverity orders Critical first, then by name.
func sortBySeverity(vulns []models.Vulnerability) {
	sort.SliceStable(vulns, func(i, j int) bool {
		si := severityOrder[vulns[i].Severity]
		sj := severityOrder[vulns[j].Severity]
		if si != sj {
			return si > sj
		}
		return vulns[i].Name < vulns[j].Name
	})
}

func mergeList(existing, incoming string) string {
	merged := models.SplitList(existing)
	for _, name := range models.SplitList(incoming) {
		dup := false
		for _, have := range merged {
			if have == name {
				dup = true
				break
			}
		}
		if !dup {
			merged = append(merged, name)
		}
	}
	return strings.Join(merged, ",")
}

package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hootmeow/openvas-strix/internal/models"
	"github.com/hootmeow/openvas-strix/internal/plugin"
)

// Sink persists plugin output into a Store, attaching every vulnerability
// and host to one scan.
type Sink struct {
	store  Store
	scanID uint
}

var _ plugin.Sink = (*Sink)(nil)

func NewSink(store Store, scanID uint) *Sink {
	return &Sink{store: store, scanID: scanID}
}

func (s *Sink) CreateHost(_ context.Context, ip string, hostnames []string) (string, error) {
	host := &models.Host{IP: ip, Hostnames: strings.Join(hostnames, ",")}
	if err := s.store.UpsertHost(host); err != nil {
		return "", err
	}
	if err := s.store.AddHostToScan(host.ID, s.scanID); err != nil {
		return "", fmt.Errorf("link host %s to scan: %w", ip, err)
	}
	return formatID(host.ID), nil
}

func (s *Sink) CreateServiceOnHost(_ context.Context, hostID, name, protocol string, ports []string) (string, error) {
	hid, err := parseID(hostID)
	if err != nil {
		return "", err
	}
	svc := &models.Service{
		HostID:   hid,
		Port:     strings.Join(ports, ","),
		Protocol: protocol,
		Name:     name,
	}
	if err := s.store.UpsertService(svc); err != nil {
		return "", err
	}
	return formatID(svc.ID), nil
}

func (s *Sink) CreateVulnOnHost(_ context.Context, hostID string, v plugin.Vuln) error {
	hid, err := parseID(hostID)
	if err != nil {
		return err
	}
	return s.store.CreateVulnerability(s.vulnerability(hid, nil, v))
}

func (s *Sink) CreateWebVulnOnService(_ context.Context, hostID, serviceID string, v plugin.WebVuln) error {
	hid, err := parseID(hostID)
	if err != nil {
		return err
	}
	sid, err := parseID(serviceID)
	if err != nil {
		return err
	}
	vuln := s.vulnerability(hid, &sid, v.Vuln)
	vuln.Web = true
	vuln.Website = v.Website
	return s.store.CreateVulnerability(vuln)
}

func (s *Sink) CreateVulnOnService(_ context.Context, hostID, serviceID string, v plugin.Vuln) error {
	hid, err := parseID(hostID)
	if err != nil {
		return err
	}
	sid, err := parseID(serviceID)
	if err != nil {
		return err
	}
	return s.store.CreateVulnerability(s.vulnerability(hid, &sid, v))
}

func (s *Sink) vulnerability(hostID uint, serviceID *uint, v plugin.Vuln) *models.Vulnerability {
	return &models.Vulnerability{
		ScanID:      s.scanID,
		HostID:      hostID,
		ServiceID:   serviceID,
		Name:        v.Name,
		Description: v.Description,
		Resolution:  v.Resolution,
		Severity:    v.Severity,
		References:  strings.Join(v.References, "\n"),
		CVEs:        strings.Join(models.ExtractCVEs(v.References), ","),
	}
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid entity id %q: %w", id, err)
	}
	return uint(n), nil
}

package plugin

import (
	"context"
	"fmt"
)

// Tee forwards every call to a primary and a secondary Sink. The primary's
// IDs are returned to the caller; the secondary's are tracked internally.
type Tee struct {
	primary   Sink
	secondary Sink

	hosts    map[string]string
	services map[string]string
}

func NewTee(primary, secondary Sink) *Tee {
	return &Tee{
		primary:   primary,
		secondary: secondary,
		hosts:     make(map[string]string),
		services:  make(map[string]string),
	}
}

func (t *Tee) CreateHost(ctx context.Context, ip string, hostnames []string) (string, error) {
	id, err := t.primary.CreateHost(ctx, ip, hostnames)
	if err != nil {
		return "", err
	}
	sid, err := t.secondary.CreateHost(ctx, ip, hostnames)
	if err != nil {
		return "", fmt.Errorf("tee: secondary host %s: %w", ip, err)
	}
	t.hosts[id] = sid
	return id, nil
}

func (t *Tee) CreateServiceOnHost(ctx context.Context, hostID, name, protocol string, ports []string) (string, error) {
	id, err := t.primary.CreateServiceOnHost(ctx, hostID, name, protocol, ports)
	if err != nil {
		return "", err
	}
	sid, err := t.secondary.CreateServiceOnHost(ctx, t.hosts[hostID], name, protocol, ports)
	if err != nil {
		return "", fmt.Errorf("tee: secondary service %s: %w", name, err)
	}
	t.services[id] = sid
	return id, nil
}

func (t *Tee) CreateVulnOnHost(ctx context.Context, hostID string, v Vuln) error {
	if err := t.primary.CreateVulnOnHost(ctx, hostID, v); err != nil {
		return err
	}
	return t.secondary.CreateVulnOnHost(ctx, t.hosts[hostID], v)
}

func (t *Tee) CreateWebVulnOnService(ctx context.Context, hostID, serviceID string, v WebVuln) error {
	if err := t.primary.CreateWebVulnOnService(ctx, hostID, serviceID, v); err != nil {
		return err
	}
	return t.secondary.CreateWebVulnOnService(ctx, t.hosts[hostID], t.services[serviceID], v)
}

func (t *Tee) CreateVulnOnService(ctx context.Context, hostID, serviceID string, v Vuln) error {
	if err := t.primary.CreateVulnOnService(ctx, hostID, serviceID, v); err != nil {
		return err
	}
	return t.secondary.CreateVulnOnService(ctx, t.hosts[hostID], t.services[serviceID], v)
}

package plugin

import (
	"context"
	"strconv"
	"sync"
)

// Call is one recorded Sink invocation.
type Call struct {
	Method    string
	HostID    string
	ServiceID string

	IP        string
	Hostnames []string

	Service  string
	Protocol string
	Ports    []string

	Vuln    Vuln
	Website string
}

// Recorder is an in-memory Sink. It hands out sequential IDs and keeps every
// call in order; ingest uses it for dry runs.
type Recorder struct {
	mu    sync.Mutex
	next  int
	Calls []Call
}

func (r *Recorder) id() string {
	r.next++
	return strconv.Itoa(r.next)
}

func (r *Recorder) CreateHost(_ context.Context, ip string, hostnames []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.id()
	r.Calls = append(r.Calls, Call{Method: "CreateHost", HostID: id, IP: ip, Hostnames: hostnames})
	return id, nil
}

func (r *Recorder) CreateServiceOnHost(_ context.Context, hostID, name, protocol string, ports []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.id()
	r.Calls = append(r.Calls, Call{
		Method: "CreateServiceOnHost", HostID: hostID, ServiceID: id,
		Service: name, Protocol: protocol, Ports: ports,
	})
	return id, nil
}

func (r *Recorder) CreateVulnOnHost(_ context.Context, hostID string, v Vuln) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, Call{Method: "CreateVulnOnHost", HostID: hostID, Vuln: v})
	return nil
}

func (r *Recorder) CreateWebVulnOnService(_ context.Context, hostID, serviceID string, v WebVuln) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, Call{
		Method: "CreateWebVulnOnService", HostID: hostID, ServiceID: serviceID,
		Vuln: v.Vuln, Website: v.Website,
	})
	return nil
}

func (r *Recorder) CreateVulnOnService(_ context.Context, hostID, serviceID string, v Vuln) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, Call{Method: "CreateVulnOnService", HostID: hostID, ServiceID: serviceID, Vuln: v})
	return nil
}

// Methods returns the recorded method names in call order.
func (r *Recorder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Method
	}
	return out
}

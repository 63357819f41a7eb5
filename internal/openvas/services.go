package openvas

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ServiceEntry pairs a "port/proto" key with a service name.
type ServiceEntry struct {
	Port string
	Name string
}

// ServiceTable is the static port-to-service fallback, searched in order.
type ServiceTable []ServiceEntry

// Lookup returns the first service registered for an exact "port/proto" key.
func (t ServiceTable) Lookup(port string) (string, bool) {
	for _, e := range t {
		if e.Port == port {
			return e.Name, true
		}
	}
	return "", false
}

// DefaultServiceTable covers the ports OpenVAS most often reports without
// host details.
var DefaultServiceTable = ServiceTable{
	{Port: "21/tcp", Name: "ftp"},
	{Port: "22/tcp", Name: "ssh"},
	{Port: "23/tcp", Name: "telnet"},
	{Port: "25/tcp", Name: "smtp"},
	{Port: "53/tcp", Name: "domain"},
	{Port: "53/udp", Name: "domain"},
	{Port: "80/tcp", Name: "http"},
	{Port: "110/tcp", Name: "pop3"},
	{Port: "111/tcp", Name: "sunrpc"},
	{Port: "123/udp", Name: "ntp"},
	{Port: "135/tcp", Name: "msrpc"},
	{Port: "139/tcp", Name: "netbios-ssn"},
	{Port: "143/tcp", Name: "imap"},
	{Port: "161/udp", Name: "snmp"},
	{Port: "389/tcp", Name: "ldap"},
	{Port: "443/tcp", Name: "https"},
	{Port: "445/tcp", Name: "microsoft-ds"},
	{Port: "993/tcp", Name: "imaps"},
	{Port: "995/tcp", Name: "pop3s"},
	{Port: "1433/tcp", Name: "ms-sql-s"},
	{Port: "3306/tcp", Name: "mysql"},
	{Port: "3389/tcp", Name: "ms-wbt-server"},
	{Port: "5432/tcp", Name: "postgresql"},
	{Port: "5900/tcp", Name: "vnc"},
	{Port: "6379/tcp", Name: "redis"},
	{Port: "8080/tcp", Name: "http-alt"},
	{Port: "8443/tcp", Name: "https-alt"},
	{Port: "27017/tcp", Name: "mongodb"},
}

// LoadServiceTable reads an /etc/services style listing:
//
//	ssh   22/tcp   # comment
//
// Blank lines, comments and lines without a "port/proto" column are skipped.
func LoadServiceTable(r io.Reader) (ServiceTable, error) {
	var table ServiceTable
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.Contains(fields[1], "/") {
			continue
		}
		table = append(table, ServiceEntry{Port: fields[1], Name: fields[0]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read service table: %w", err)
	}
	return table, nil
}

// LoadServiceTableFile loads a table from path. An empty path returns
// DefaultServiceTable.
func LoadServiceTableFile(path string) (ServiceTable, error) {
	if path == "" {
		return DefaultServiceTable, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadServiceTable(f)
}

package openvas

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServicesRecordOutranksNumericMatch(t *testing.T) {
	hosts := hostWith("10.0.0.1",
		"tcp_ports", "22",
		"Services", "22,tcp,ssh",
	)
	f := Normalize(RawFinding{Host: "10.0.0.1", Port: "22/tcp"}, hosts, nil)
	assert.Equal(t, "ssh", f.Service)

	// Order must not matter: a later numeric match cannot displace tier 3.
	hosts = hostWith("10.0.0.1",
		"Services", "22,tcp,ssh",
		"tcp_ports", "22",
		"OpenSSH", "22/tcp",
	)
	f = Normalize(RawFinding{Host: "10.0.0.1", Port: "22/tcp"}, hosts, nil)
	assert.Equal(t, "ssh", f.Service)
}

func TestServiceTierRanking(t *testing.T) {
	tests := []struct {
		name     string
		details  []string
		wantName string
		wantTier Tier
	}{
		{
			name:     "slash beats numeric",
			details:  []string{"tcp_ports", "8080", "http-proxy", "8080/tcp"},
			wantName: "http-proxy",
			wantTier: TierSlash,
		},
		{
			name:     "numeric beats colon regardless of order",
			details:  []string{"cpe_port", "8080::cpe:/a:apache", "tcp_ports", "8080"},
			wantName: "tcp_ports",
			wantTier: TierNumeric,
		},
		{
			name:     "colon never overrides an earlier numeric match",
			details:  []string{"tcp_ports", "8080", "cpe_port", "8080::cpe:/a:apache"},
			wantName: "tcp_ports",
			wantTier: TierNumeric,
		},
		{
			name:     "colon alone",
			details:  []string{"cpe_port", "8080::cpe:/a:apache"},
			wantName: "cpe_port",
			wantTier: TierColon,
		},
		{
			name:     "first of equal tiers wins",
			details:  []string{"alpha", "8080/tcp", "beta", "8080/tcp"},
			wantName: "alpha",
			wantTier: TierSlash,
		},
		{
			name:     "non-matching services record falls through",
			details:  []string{"Services", "443,tcp,https", "tcp_ports", "8080"},
			wantName: "tcp_ports",
			wantTier: TierNumeric,
		},
		{
			name:     "short services record is ignored",
			details:  []string{"Services", "8080,tcp"},
			wantName: "",
			wantTier: TierNone,
		},
		{
			name:     "prefix must match exactly",
			details:  []string{"tcp_ports", "80", "www", "80/tcp", "mix", "80801"},
			wantName: "",
			wantTier: TierNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := hostWith("h", tt.details...)["h"].Details
			name, tier := matchService(d, "8080")
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantTier, tier)
		})
	}
}

func TestCPEPortValueResolvesService(t *testing.T) {
	hosts := hostWith("10.0.0.1", "cpe_port", "8080::cpe:/a:apache:tomcat")
	f := Normalize(RawFinding{Host: "10.0.0.1", Port: "8080/tcp"}, hosts, nil)
	assert.Equal(t, "cpe_port", f.Service)

	// A colon match stays below a slash match whatever the detail order.
	hosts = hostWith("10.0.0.1",
		"cpe_port", "8080::cpe:/a:apache:tomcat",
		"http-proxy", "8080/tcp",
	)
	f = Normalize(RawFinding{Host: "10.0.0.1", Port: "8080/tcp"}, hosts, nil)
	assert.Equal(t, "http-proxy", f.Service)
}

func TestMatchServiceNilDetails(t *testing.T) {
	name, tier := matchService(nil, "22")
	assert.Empty(t, name)
	assert.Equal(t, TierNone, tier)
}

func TestLoadServiceTable(t *testing.T) {
	input := `# Network services, Internet style
ftp		21/tcp
ssh		22/tcp				# SSH Remote Login Protocol
domain		53/udp
broken-line
http		80/tcp		www		# WorldWideWeb HTTP
ssh-dup		22/tcp
`
	table, err := LoadServiceTable(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, table, 5)

	name, ok := table.Lookup("22/tcp")
	assert.True(t, ok)
	assert.Equal(t, "ssh", name, "first entry wins")

	name, ok = table.Lookup("80/tcp")
	assert.True(t, ok)
	assert.Equal(t, "http", name)

	_, ok = table.Lookup("53/tcp")
	assert.False(t, ok)
}

func TestLoadServiceTableFileDefault(t *testing.T) {
	table, err := LoadServiceTableFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServiceTable, table)

	_, err = LoadServiceTableFile("testdata/does-not-exist")
	assert.Error(t, err)
}

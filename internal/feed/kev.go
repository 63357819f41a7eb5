// Package feed enriches stored vulnerabilities from public threat feeds.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hootmeow/openvas-strix/internal/storage"
)

type CISAFeed struct {
	Title           string         `json:"title"`
	CatalogVersion  string         `json:"catalogVersion"`
	DateReleased    time.Time      `json:"dateReleased"`
	Count           int            `json:"count"`
	Vulnerabilities []CISAVulnItem `json:"vulnerabilities"`
}

type CISAVulnItem struct {
	CveID             string `json:"cveID"`
	VendorProject     string `json:"vendorProject"`
	Product           string `json:"product"`
	VulnerabilityName string `json:"vulnerabilityName"`
	DateAdded         string `json:"dateAdded"`
	ShortDescription  string `json:"shortDescription"`
	RequiredAction    string `json:"requiredAction"`
	DueDate           string `json:"dueDate"`
}

// FetchKEV downloads the catalog at url.
func FetchKEV(ctx context.Context, client *http.Client, url string) (*CISAFeed, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download KEV feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download KEV feed: %s", resp.Status)
	}

	var feed CISAFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode KEV feed: %w", err)
	}
	return &feed, nil
}

// UpdateKEV downloads the CISA feed and flags every stored vulnerability
// referencing a listed CVE. It returns how many rows changed.
func UpdateKEV(ctx context.Context, store storage.Store, client *http.Client, url string, log logrus.FieldLogger) (int, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "kev")
	log.Info("Starting CISA KEV feed update")

	feed, err := FetchKEV(ctx, client, url)
	if err != nil {
		return 0, err
	}

	kev := make(map[string]bool, len(feed.Vulnerabilities))
	for _, v := range feed.Vulnerabilities {
		kev[v.CveID] = true
	}
	log.WithField("cves", len(kev)).Info("Loaded KEV catalog")

	vulns, err := store.GetVulnerabilities("")
	if err != nil {
		return 0, fmt.Errorf("failed to load vulnerabilities: %w", err)
	}

	updated := 0
	for _, v := range vulns {
		exploited := false
		for _, cve := range v.CVEList() {
			if kev[cve] {
				exploited = true
				break
			}
		}
		if exploited == v.InKEV {
			continue
		}
		if err := store.SetVulnerabilityKEV(v.ID, exploited); err != nil {
			log.WithError(err).WithField("vuln_id", v.ID).Error("Failed to update KEV status")
			continue
		}
		updated++
	}

	log.WithField("updated", updated).Info("CISA KEV update complete")
	return updated, nil
}

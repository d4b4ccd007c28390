package scraper

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"leadscout/config"
	"leadscout/fetch"
	"leadscout/models"
)

// RecordsHandler pulls leads from county-style public records feeds: HTML
// pages carrying a data table, or downloadable CSVs. Each feed names the
// address and owner columns and the distress signal it implies; region is
// ignored because the feeds are already county-scoped.
type RecordsHandler struct {
	cfg    *config.SiteConfig
	client *fetch.Client
}

func NewRecordsHandler(cfg *config.SiteConfig, client *fetch.Client) *RecordsHandler {
	return &RecordsHandler{cfg: cfg, client: client}
}

func (h *RecordsHandler) ID() string {
	return h.cfg.ID
}

func (h *RecordsHandler) Scrape(ctx context.Context, region string, limit int) ([]models.RawLead, error) {
	var leads []models.RawLead
	var failed int

	for _, src := range h.cfg.Sources {
		result, err := h.client.Fetch(ctx, src.URL, nil)
		if err != nil {
			log.Printf("%s: source %s unreachable: %v", h.cfg.ID, src.URL, err)
			failed++
			continue
		}

		var rows []models.RawLead
		switch src.Format {
		case "csv":
			rows, err = parseCSVSource(result.Body, src)
		default:
			rows, err = parseTableSource(result.Body, src)
		}
		if err != nil {
			log.Printf("%s: source %s parse failed: %v", h.cfg.ID, src.URL, err)
			failed++
			continue
		}

		leads = append(leads, rows...)
		if limit > 0 && len(leads) >= limit {
			leads = leads[:limit]
			break
		}
	}

	if failed == len(h.cfg.Sources) && failed > 0 {
		return nil, fmt.Errorf("all %d record sources failed", failed)
	}
	return leads, nil
}

// parseTableSource reads the first table whose header row contains the
// configured address column. Header matching is case-insensitive substring.
func parseTableSource(body []byte, src config.RecordSource) ([]models.RawLead, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var leads []models.RawLead

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		addrIdx, ownerIdx := -1, -1

		table.Find("tr").First().Find("th, td").Each(func(i int, cell *goquery.Selection) {
			header := strings.TrimSpace(cell.Text())
			if headerMatches(header, src.AddressCol) {
				addrIdx = i
			}
			if src.OwnerCol != "" && headerMatches(header, src.OwnerCol) {
				ownerIdx = i
			}
		})
		if addrIdx < 0 {
			return true // not our table, keep looking
		}

		table.Find("tr").Each(func(rowIdx int, row *goquery.Selection) {
			if rowIdx == 0 {
				return
			}
			if src.MaxRows > 0 && len(leads) >= src.MaxRows {
				return
			}

			cells := row.Find("td")
			address := strings.TrimSpace(cells.Eq(addrIdx).Text())
			if address == "" {
				return
			}

			lead := recordLead(address, src)
			if ownerIdx >= 0 {
				lead.OwnerName = strings.TrimSpace(cells.Eq(ownerIdx).Text())
			}
			leads = append(leads, lead)
		})
		return false
	})

	return leads, nil
}

func parseCSVSource(body []byte, src config.RecordSource) ([]models.RawLead, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}

	addrIdx, ownerIdx := -1, -1
	for i, header := range records[0] {
		if headerMatches(header, src.AddressCol) {
			addrIdx = i
		}
		if src.OwnerCol != "" && headerMatches(header, src.OwnerCol) {
			ownerIdx = i
		}
	}
	if addrIdx < 0 {
		return nil, fmt.Errorf("address column %q not found", src.AddressCol)
	}

	var leads []models.RawLead
	for _, row := range records[1:] {
		if src.MaxRows > 0 && len(leads) >= src.MaxRows {
			break
		}
		if addrIdx >= len(row) {
			continue
		}
		address := strings.TrimSpace(row[addrIdx])
		if address == "" {
			continue
		}

		lead := recordLead(address, src)
		if ownerIdx >= 0 && ownerIdx < len(row) {
			lead.OwnerName = strings.TrimSpace(row[ownerIdx])
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func recordLead(address string, src config.RecordSource) models.RawLead {
	return models.RawLead{
		Address:      address,
		Source:       models.SourcePublicRecords,
		SourceURL:    src.URL + "#" + slugify(address),
		DistressType: src.DistressType,
		Status:       "off_market",
	}
}

func headerMatches(header, want string) bool {
	return want != "" && strings.Contains(strings.ToLower(header), strings.ToLower(want))
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify makes a stable URL fragment from an address so re-pulling the same
// feed updates rows instead of duplicating them.
func slugify(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

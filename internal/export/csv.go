// Package export renders committed deliveries as CSV files and stores them
// in object storage for client download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/internal/personalizer"
)

// Row is one lead in a delivery export.
type Row struct {
	LeadID     string
	Email      string
	FirstName  string
	LastName   string
	Title      string
	Company    string
	ProfileURL string
	Icebreaker string
	ColdEmail  string
}

var csvHeader = []string{
	"lead_id", "email", "first_name", "last_name", "title",
	"company", "profile_url", "icebreaker", "cold_email",
}

// BuildRows assigns delivery-scoped lead IDs and merges in personalized
// content where present. Lead IDs are positional within the delivery, of the
// form "<client-slug>-<yyyymmdd>-0001".
func BuildRows(clientName string, deliveredAt time.Time, leads []domain.Lead, messages map[uuid.UUID]personalizer.Message) []Row {
	slug := slugify(clientName)
	date := deliveredAt.Format("20060102")

	rows := make([]Row, len(leads))
	for i, lead := range leads {
		row := Row{
			LeadID:     fmt.Sprintf("%s-%s-%04d", slug, date, i+1),
			Email:      lead.Email,
			FirstName:  lead.FirstName,
			LastName:   lead.LastName,
			Title:      lead.Title,
			Company:    lead.Company,
			ProfileURL: lead.ProfileURL,
		}
		if msg, ok := messages[lead.ID]; ok {
			row.Icebreaker = msg.Icebreaker
			row.ColdEmail = msg.ColdEmail
		}
		rows[i] = row
	}
	return rows
}

// RenderCSV serializes rows with a header line.
func RenderCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.LeadID, row.Email, row.FirstName, row.LastName, row.Title,
			row.Company, row.ProfileURL, row.Icebreaker, row.ColdEmail,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

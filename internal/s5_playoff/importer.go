package s5_playoff

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"github.com/prodigy-ranking/backend/pkg/httputil"
)

// Importer builds a classification list from a member-school HTML table
type Importer struct {
	client *httputil.Client
}

// NewImporter creates an importer; client is only needed for URL sources
func NewImporter(client *httputil.Client) *Importer {
	return &Importer{client: client}
}

// Import reads a file path or an http(s) URL
func (im *Importer) Import(ctx context.Context, source string) ([]School, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if im.client == nil {
			return nil, fmt.Errorf("no http client configured for %s", source)
		}
		body, err := im.client.GetBody(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("fetch member table: %w", err)
		}
		return ParseMemberTable(bytes.NewReader(body))
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open member table: %w", err)
	}
	defer f.Close()

	return ParseMemberTable(f)
}

// ParseMemberTable extracts (name, enrollment) rows from the first table
// whose header names a school column and an enrollment column.
func ParseMemberTable(r io.Reader) ([]School, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var schools []School
	found := false

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		nameCol, enrollCol := -1, -1
		table.Find("tr").First().Find("th, td").Each(func(i int, cell *goquery.Selection) {
			header := strings.ToLower(strings.TrimSpace(cell.Text()))
			switch {
			case strings.Contains(header, "enrollment"):
				enrollCol = i
			case strings.Contains(header, "school") || header == "name" || header == "team":
				nameCol = i
			}
		})
		if nameCol < 0 || enrollCol < 0 {
			return true
		}
		found = true

		seen := make(map[string]struct{})
		table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= max(nameCol, enrollCol) {
				return
			}

			name := strings.Join(strings.Fields(cells.Eq(nameCol).Text()), " ")
			enrollment, ok := parseEnrollment(cells.Eq(enrollCol).Text())
			if name == "" || !ok {
				return
			}

			id := Slug(name)
			if _, dup := seen[id]; dup {
				return
			}
			seen[id] = struct{}{}

			schools = append(schools, School{TeamID: id, Name: name, Enrollment: enrollment})
		})
		return false
	})

	if !found {
		return nil, fmt.Errorf("no table with school and enrollment columns")
	}
	return schools, nil
}

// EncodeReferenceList renders schools as a classification YAML document
func EncodeReferenceList(w io.Writer, version string, schools []School) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()

	if err := enc.Encode(ReferenceList{Version: version, Schools: schools}); err != nil {
		return fmt.Errorf("encode classification list: %w", err)
	}
	return nil
}

// Slug turns a school name into a team id: "St. Paul's School" → "st-pauls-school"
func Slug(name string) string {
	return strings.ReplaceAll(Normalize(name), " ", "-")
}

func parseEnrollment(s string) (int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

package analytics

import (
	"context"
	"fmt"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

type Dimension string

const (
	DimensionDevice  Dimension = "device"
	DimensionBrowser Dimension = "browser"
	DimensionOS      Dimension = "os"
	DimensionCountry Dimension = "country"
)

// UnknownLabel is shown for visitors that never reported the attribute.
const UnknownLabel = "Unknown"

var dimensionColumns = map[Dimension]string{
	DimensionDevice:  "device",
	DimensionBrowser: "browser",
	DimensionOS:      "os",
	DimensionCountry: "country",
}

type BreakdownItem struct {
	Name       string  `json:"name"`
	Label      string  `json:"label"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GetBreakdown groups the active visitors of the range (those with at least
// one session starting in it) by one visitor attribute. Percentages are of
// the active-visitor total.
func GetBreakdown(ctx context.Context, db *gorm.DB, params QueryParams, dim Dimension) ([]BreakdownItem, error) {
	column, ok := dimensionColumns[dim]
	if !ok {
		return nil, fmt.Errorf("unknown breakdown dimension %q", dim)
	}
	from, to := params.bounds()

	var rows []struct {
		Name  string
		Count int64
	}
	query := fmt.Sprintf(`
		SELECT COALESCE(%s, '') AS name, COUNT(*) AS count
		FROM visitors
		WHERE id IN (
			SELECT DISTINCT visitor_id FROM sessions WHERE started_at BETWEEN ? AND ?
		)
		GROUP BY name
		ORDER BY count DESC, name ASC`, column)
	if err := db.WithContext(ctx).Raw(query, from, to).Scan(&rows).Error; err != nil {
		return nil, unavailable("fetching "+string(dim)+" breakdown", err)
	}

	var total int64
	for _, r := range rows {
		total += r.Count
	}

	label := labeler(dim)
	items := make([]BreakdownItem, len(rows))
	for i, r := range rows {
		items[i] = BreakdownItem{
			Name:       r.Name,
			Label:      label(r.Name),
			Count:      r.Count,
			Percentage: percentage(r.Count, total),
		}
	}
	return items, nil
}

func labeler(dim Dimension) func(string) string {
	switch dim {
	case DimensionCountry:
		countries := gountries.New()
		upper := cases.Upper(language.AmericanEnglish)
		return func(code string) string {
			if code == "" {
				return UnknownLabel
			}
			country, err := countries.FindCountryByAlpha(code)
			if err != nil {
				return upper.String(code)
			}
			return country.Name.Common
		}
	case DimensionDevice:
		title := cases.Title(language.AmericanEnglish)
		return func(device string) string {
			if device == "" {
				return UnknownLabel
			}
			return title.String(device)
		}
	default:
		return func(name string) string {
			if name == "" {
				return UnknownLabel
			}
			return name
		}
	}
}

// Package scorer finds the ranking table of a fetched contest page.
//
// Every tabular region of the page (html tables, embedded json arrays) becomes a
// TableCandidate, candidates are scored on structural features only, and the best one wins.
package scorer

import (
	"bytes"
	"fmt"
	"vjudge-crawler/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// TableCandidate is a structural view over one tabular region of a document.
type TableCandidate struct {
	// Source says where the candidate came from, ex. "table[2]" or "script:dataRank".
	Source  string
	Headers []string
	Rows    [][]string
	Score   float64
}

// Columns is the widest of the header row and every data row.
func (c TableCandidate) Columns() int {
	width := len(c.Headers)
	for _, row := range c.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

func rowCells(tr *goquery.Selection) []string {
	cells := tr.ChildrenFiltered("th, td")
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, htmlutil.CellText(cell))
	})
	return out
}

// tableCandidate reads the rows that belong to `table` itself, rows of nested tables are
// left to their own candidate.
func tableCandidate(idx int, table *goquery.Selection) TableCandidate {
	candidate := TableCandidate{Source: fmt.Sprintf("table[%d]", idx)}

	var headerRow *goquery.Selection
	var dataRows []*goquery.Selection

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !tr.Closest("table").IsSelection(table) {
			return
		}
		if tr.ChildrenFiltered("th, td").Length() == 0 {
			return
		}
		section := tr.Parent()
		switch {
		case section.Is("tfoot"):
			return
		case section.Is("thead"):
			// the last thead row sits right above the data, earlier ones are banners
			headerRow = tr
			return
		case headerRow == nil && len(dataRows) == 0:
			headerRow = tr
			return
		}
		dataRows = append(dataRows, tr)
	})

	if headerRow != nil {
		candidate.Headers = rowCells(headerRow)
	}
	for _, tr := range dataRows {
		candidate.Rows = append(candidate.Rows, rowCells(tr))
	}
	return candidate
}

// htmlCandidates enumerates every table of an html document plus every ranking array
// embedded in its scripts.
func htmlCandidates(body []byte) ([]TableCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var candidates []TableCandidate
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		candidates = append(candidates, tableCandidate(i, table))
	})

	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		candidates = append(candidates, scriptCandidates(script.Text())...)
	})

	return candidates, nil
}

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"vjudge-crawler/internal/normalize"
	"vjudge-crawler/internal/ranking"
	"vjudge-crawler/internal/scorer"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var inspectLimit int

func init() {
	inspectCmd.Flags().IntVarP(&inspectLimit, "limit", "n", 20, "The number of records to print, 0 prints all of them.")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <saved page>",
	Short: "Shows how a saved contest page (html or json) would be scored and parsed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc := ranking.RawDocument{
			URL:         args[0],
			Body:        body,
			ContentType: "text/html",
			Origin:      ranking.OriginDirect,
		}
		if strings.EqualFold(filepath.Ext(args[0]), ".json") {
			doc.ContentType = "application/json"
		}
		return inspect(cmd, doc)
	},
}

func inspect(cmd *cobra.Command, doc ranking.RawDocument) error {
	w := cmd.OutOrStdout()

	candidates, err := scorer.Candidates(doc)
	if err != nil {
		return err
	}
	best, selectErr := scorer.Select(candidates)

	t := newTable(w)
	t.SetTitle("Table candidates")
	t.AppendHeader(table.Row{"", "Source", "Rows", "Columns", "Score", "Headers"})
	for _, c := range candidates {
		marker := ""
		if selectErr == nil && c.Source == best.Source {
			marker = "*"
		}
		score := "disqualified"
		if c.Score != scorer.Disqualified {
			score = fmt.Sprintf("%.1f", c.Score)
		}
		t.AppendRow(table.Row{marker, c.Source, len(c.Rows), c.Columns(), score, strings.Join(firstLines(c.Headers), " | ")})
	}
	t.Render()

	if selectErr != nil {
		return selectErr
	}

	result, err := normalize.Normalize(best)
	for _, dropped := range result.Dropped {
		fmt.Fprintln(w, "dropped:", dropped)
	}
	if err != nil {
		return err
	}

	records := result.Records
	if inspectLimit > 0 && len(records) > inspectLimit {
		records = records[:inspectLimit]
	}

	fmt.Fprintln(w)
	rt := newTable(w)
	rt.SetTitle(fmt.Sprintf("Records (%d of %d)", len(records), len(result.Records)))
	header := table.Row{"Rank", "Team", "Score", "Penalty", "Solved"}
	for _, label := range result.Problems {
		header = append(header, label)
	}
	rt.AppendHeader(header)
	for _, r := range records {
		row := table.Row{r.Rank, r.Team, r.Score, r.Penalty, r.Solved}
		for _, p := range r.Problems {
			row = append(row, p.Raw)
		}
		rt.AppendRow(row)
	}
	rt.Render()
	return nil
}

func firstLines(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i], _, _ = strings.Cut(h, "\n")
	}
	return out
}

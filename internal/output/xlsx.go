package output

import (
	"context"
	"fmt"
	"os"
	"vjudge-crawler/internal/components/chrono"
	"vjudge-crawler/internal/ranking"

	"github.com/xuri/excelize/v2"
)

type XlsxWriter struct {
	Dir   string
	Clock chrono.API
}

func (w XlsxWriter) Write(ctx context.Context, result ranking.ContestResult) (string, error) {
	err := checkWritable(result)
	if err != nil {
		return "", err
	}

	book, err := workbook(result)
	if err != nil {
		return "", err
	}
	defer book.Close()

	file, path, err := createUnique(w.Dir, Basename(result.ContestID, w.Clock), ".xlsx")
	if err != nil {
		return "", err
	}
	err = book.Write(file)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// workbook lays the ranking out on the first sheet, numeric columns stay numbers so they
// can be sorted in a spreadsheet.
func workbook(result ranking.ContestResult) (*excelize.File, error) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)

	setRow := func(idx int, values []any) error {
		cell, err := excelize.CoordinatesToCellName(1, idx)
		if err != nil {
			return err
		}
		return book.SetSheetRow(sheet, cell, &values)
	}

	header := Header(result)
	values := make([]any, len(header))
	for i, h := range header {
		values[i] = h
	}
	err := setRow(1, values)
	if err != nil {
		book.Close()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}

	for i, record := range result.Records {
		values := []any{record.Rank, record.Team, record.Score, record.Penalty, record.Solved}
		for _, p := range record.Problems {
			values = append(values, p.Raw)
		}
		err = setRow(i+2, values)
		if err != nil {
			book.Close()
			return nil, fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	return book, nil
}

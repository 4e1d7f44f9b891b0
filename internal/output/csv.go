package output

import (
	"context"
	"encoding/csv"
	"os"
	"vjudge-crawler/internal/components/chrono"
	"vjudge-crawler/internal/ranking"
)

// BOM is the UTF-8 byte order mark, Excel on Windows needs it to read non ASCII team names.
var BOM = []byte{0xEF, 0xBB, 0xBF}

type CsvWriter struct {
	Dir   string
	BOM   bool
	Clock chrono.API
}

func (w CsvWriter) Write(ctx context.Context, result ranking.ContestResult) (string, error) {
	err := checkWritable(result)
	if err != nil {
		return "", err
	}

	file, path, err := createUnique(w.Dir, Basename(result.ContestID, w.Clock), ".csv")
	if err != nil {
		return "", err
	}
	err = w.write(file, result)
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

func (w CsvWriter) write(file *os.File, result ranking.ContestResult) error {
	if w.BOM {
		_, err := file.Write(BOM)
		if err != nil {
			return err
		}
	}

	out := csv.NewWriter(file)
	err := out.Write(Header(result))
	if err != nil {
		return err
	}
	for _, record := range result.Records {
		err = out.Write(Row(record))
		if err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

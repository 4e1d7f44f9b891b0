package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes each http message dump into its own file under a directory,
// it satisfies telemetry.MessageOutput.
type FilesystemOutput struct {
	directory string
	prefix    string
}

// NewFilesystemOutput clears `dir` and prepares it to receive message dumps. Files are
// named `<prefix>-<id>.txt`.
func NewFilesystemOutput(dir, prefix string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir, prefix: prefix}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	name := fmt.Sprintf("%s-%s.txt", o.prefix, id)
	err := os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

// Package report writes machine-readable run summaries for later
// inspection by automation.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Summary is the JSON artifact written after each orchestration or probe
// run. Nothing in-process consumes it.
type Summary struct {
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`   // "ingest" or "probe"
	Status    string    `json:"status"` // "ok" or "failed"
	Source    string    `json:"source,omitempty"`
	Counts    any       `json:"counts,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Write persists the summary under logDir as <mode>-<timestamp>.json and
// returns the file path.
func Write(logDir string, s Summary) (string, error) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "report: create log dir %s", logDir)
	}

	name := fmt.Sprintf("%s-%s.json", s.Mode, s.Timestamp.Format("20060102T150405Z"))
	path := filepath.Join(logDir, name)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "report: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "report: write %s", path)
	}

	zap.L().Debug("run summary written", zap.String("path", path))
	return path, nil
}

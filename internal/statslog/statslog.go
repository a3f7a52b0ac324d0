// Package statslog appends one CSV row per logged training episode.
package statslog

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

var header = []string{"episode", "total_reward", "episode_length", "loss"}

type Row struct {
	Episode       int
	TotalReward   float64
	EpisodeLength int
	Loss          float64
}

type Logger struct {
	f *os.File
	w *csv.Writer
}

// Open appends to path, creating it (and its directory) with a header row
// when it does not exist yet.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create stats dir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open stats file %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	l := &Logger{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.write(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

func (l *Logger) LogEpisode(episode int, totalReward float64, length int, loss float64) error {
	return l.write([]string{
		strconv.Itoa(episode),
		strconv.FormatFloat(totalReward, 'f', -1, 64),
		strconv.Itoa(length),
		strconv.FormatFloat(loss, 'f', -1, 64),
	})
}

func (l *Logger) write(record []string) error {
	if err := l.w.Write(record); err != nil {
		return errors.Wrap(err, "write stats row")
	}
	l.w.Flush()
	return errors.Wrap(l.w.Error(), "flush stats row")
}

func (l *Logger) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return errors.Wrap(err, "flush stats")
	}
	return l.f.Close()
}

// ReadFile parses a stats file written by Logger.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) ([]Row, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse stats")
	}
	if len(records) == 0 {
		return nil, nil
	}
	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, errors.Errorf("line %d: want %d columns, got %d", i+2, len(header), len(rec))
		}
		var row Row
		var perr error
		parseInt := func(s string) int {
			v, err := strconv.Atoi(s)
			if err != nil && perr == nil {
				perr = err
			}
			return v
		}
		parseFloat := func(s string) float64 {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil && perr == nil {
				perr = err
			}
			return v
		}
		row.Episode = parseInt(rec[0])
		row.TotalReward = parseFloat(rec[1])
		row.EpisodeLength = parseInt(rec[2])
		row.Loss = parseFloat(rec[3])
		if perr != nil {
			return nil, errors.Wrapf(perr, "line %d", i+2)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

package main

import (
	"flag"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"blockdodge-rl/internal/report"
	"blockdodge-rl/internal/statslog"
)

func main() {
	out := flag.String("out", "learning_curves.html", "output HTML file")
	title := flag.String("title", "Block dodge ablation", "page title")
	flag.Usage = func() {
		os.Stderr.WriteString("usage: plot [-out file.html] name=stats.csv ...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var series []report.Series
	for _, arg := range flag.Args() {
		name, path, ok := strings.Cut(arg, "=")
		if !ok {
			path = arg
			name = arg
		}
		rows, err := statslog.ReadFile(path)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Fatal("read stats")
		}
		series = append(series, report.Series{Name: name, Rows: rows})
		logrus.WithFields(logrus.Fields{"name": name, "episodes": len(rows)}).Info("loaded run")
	}

	f, err := os.Create(*out)
	if err != nil {
		logrus.WithError(err).Fatal("create output")
	}
	if err := report.LearningCurves(f, *title, series); err != nil {
		f.Close()
		logrus.WithError(err).Fatal("render")
	}
	if err := f.Close(); err != nil {
		logrus.WithError(err).Fatal("close output")
	}
	logrus.WithField("out", *out).Info("wrote learning curves")
}

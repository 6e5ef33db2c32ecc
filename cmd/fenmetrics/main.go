// Command fenmetrics prints the metric report of one or more FEN strings.
//
//	fenmetrics [-engine corentings|notnil] [-pretty] FEN [FEN...]
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/park285/chess-metrics/internal/metric"
	"github.com/park285/chess-metrics/internal/obslog"
	"github.com/park285/chess-metrics/internal/position"
	"github.com/park285/chess-metrics/internal/rules"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type output struct {
	FEN    string         `json:"fen"`
	Report *metric.Report `json:"metrics,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fenmetrics", flag.ContinueOnError)
	fs.SetOutput(stderr)
	engineName := fs.String("engine", "corentings", "rules engine (corentings, notnil)")
	pretty := fs.Bool("pretty", false, "indent JSON output")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: fenmetrics [-engine name] [-pretty] FEN [FEN...]")
		return 2
	}

	logger := obslog.L()
	engine, err := rules.New(*engineName)
	if err != nil {
		fmt.Fprintf(stderr, "fenmetrics: %v\n", err)
		return 2
	}
	calc := metric.NewCalculator(nil)

	enc := json.NewEncoder(stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}

	code := 0
	for _, fen := range fs.Args() {
		out := output{FEN: fen}
		snap, err := position.New(engine, fen)
		if err == nil {
			out.Report, err = calc.Calculate(snap)
		}
		if err != nil {
			out.Report = nil
			out.Error = err.Error()
			code = 1
			if errors.Is(err, position.ErrInvalidPosition) {
				logger.Debug("invalid position", zap.String("fen", fen), zap.Error(err))
			} else {
				logger.Warn("metric calculation failed", zap.String("fen", fen), zap.Error(err))
			}
		}
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "fenmetrics: write: %v\n", err)
			return 1
		}
	}
	return code
}

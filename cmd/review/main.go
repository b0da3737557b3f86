// Command review runs a single review step from the command line: it loads a
// patient record and a candidate from files, evaluates them, and writes the
// review feedback as JSON.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/imagingworks/protoloop/internal/adapter/groq"
	"github.com/imagingworks/protoloop/internal/adapter/plausibility"
	"github.com/imagingworks/protoloop/internal/adapter/renal"
	"github.com/imagingworks/protoloop/internal/config"
	"github.com/imagingworks/protoloop/internal/logger"
	"github.com/imagingworks/protoloop/internal/port/ruleeval"
	"github.com/imagingworks/protoloop/internal/resilience"
	"github.com/imagingworks/protoloop/internal/service"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <record.(json|csv|txt)> <candidate.json> <out.json>\n", filepath.Base(os.Args[0]))
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2], os.Args[3]); err != nil {
		slog.Error("review failed", "error", err)
		os.Exit(1)
	}
}

func run(recordPath, candidatePath, outPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	record, err := loadRecord(recordPath)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	var candidate map[string]any
	if err := readJSONFile(candidatePath, &candidate); err != nil {
		return fmt.Errorf("load candidate: %w", err)
	}

	client := groq.NewClient(cfg.Groq)
	client.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	reviews := service.NewReviewService(
		[]ruleeval.Evaluator{renal.NewEvaluator()},
		groq.NewScorer(client),
		groq.NewReviewer(client),
		plausibility.NewAnalyzer(),
		nil,
		log,
	)

	result, err := reviews.Review(context.Background(), record, candidate)
	if err != nil {
		return fmt.Errorf("review: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	log.Info("review written", "out", outPath, "confidence", result.Confidence)
	return nil
}

// loadRecord reads a patient record from JSON, from the first data row of a
// CSV, or from plain text wrapped as a raw_text field.
func loadRecord(path string) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var record map[string]any
		if err := readJSONFile(path, &record); err != nil {
			return nil, err
		}
		return record, nil
	case ".csv":
		return loadCSVRecord(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return map[string]any{"raw_text": string(data)}, nil
	}
}

func loadCSVRecord(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv row: %w", err)
	}
	if len(row) != len(header) {
		return nil, fmt.Errorf("csv row has %d fields, header has %d", len(row), len(header))
	}

	record := make(map[string]any, len(header))
	for i, key := range header {
		value := strings.TrimSpace(row[i])
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			record[key] = n
		} else {
			record[key] = value
		}
	}
	return record, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

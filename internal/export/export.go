// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/portfolio"
)

// Format - формат файла выгрузки
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat разбирает формат из флага командной строки.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", raw)
	}
}

// Options настраивает выгрузку.
type Options struct {
	Format      Format
	Owner       string // для CreatedOnly и поля is_creator
	CreatedOnly bool
	NonZeroOnly bool
	OutputDir   string
}

// Summary - сводка по выгруженным токенам.
type Summary struct {
	TotalTokens   int            `json:"total_tokens"`
	CreatedTokens int            `json:"created_tokens"`
	BySource      map[string]int `json:"by_source"`
}

// TokenExporter выгружает список токенов кошелька.
type TokenExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewTokenExporter(logger *zap.Logger) *TokenExporter {
	return &TokenExporter{logger: logger.Named("export"), now: time.Now}
}

// CSVHeaders - заголовки колонок CSV.
func CSVHeaders() []string {
	return []string{"mint", "name", "symbol", "decimals", "balance", "supply", "source", "is_creator", "uri", "has_metadata"}
}

func toCSV(r portfolio.TokenRecord, owner string) []string {
	return []string{
		r.Mint,
		r.Name,
		r.Symbol,
		strconv.Itoa(int(r.Decimals)),
		r.UIBalance(),
		r.Supply,
		r.Source.String(),
		strconv.FormatBool(r.IsCreator(owner)),
		r.URI,
		strconv.FormatBool(r.HasMetadata),
	}
}

// ExportTokens пишет файл в OutputDir и возвращает его путь.
func (te *TokenExporter) ExportTokens(records []portfolio.TokenRecord, options Options) (string, error) {
	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, te.generateFilename(options))

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	n, err := te.Write(file, records, options)
	if err != nil {
		return "", err
	}

	te.logger.Info("Tokens exported",
		zap.String("file", outputPath),
		zap.Int("count", n),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

// Write пишет отфильтрованные записи в w и возвращает их число.
func (te *TokenExporter) Write(w io.Writer, records []portfolio.TokenRecord, options Options) (int, error) {
	filtered := filterTokens(records, options)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Symbol < filtered[j].Symbol
	})

	var err error
	switch options.Format {
	case FormatCSV:
		err = writeCSV(w, filtered, options.Owner)
	case FormatJSON, "":
		err = te.writeJSON(w, filtered, options.Owner)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return 0, err
	}
	return len(filtered), nil
}

func filterTokens(records []portfolio.TokenRecord, options Options) []portfolio.TokenRecord {
	var filtered []portfolio.TokenRecord
	for _, r := range records {
		if options.CreatedOnly && !r.IsCreator(options.Owner) {
			continue
		}
		if options.NonZeroOnly && !r.Balance.IsPositive() {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func (te *TokenExporter) generateFilename(options Options) string {
	prefix := "tokens_all"
	if options.CreatedOnly {
		prefix = "tokens_created"
	}
	format := options.Format
	if format == "" {
		format = FormatJSON
	}
	return fmt.Sprintf("%s_%s.%s", prefix, te.now().Format("20060102_150405"), format)
}

func writeCSV(w io.Writer, records []portfolio.TokenRecord, owner string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(toCSV(r, owner)); err != nil {
			return fmt.Errorf("failed to write token: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (te *TokenExporter) writeJSON(w io.Writer, records []portfolio.TokenRecord, owner string) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if records == nil {
		records = []portfolio.TokenRecord{}
	}
	exportData := struct {
		ExportTime time.Time               `json:"export_time"`
		Owner      string                  `json:"owner,omitempty"`
		Tokens     []portfolio.TokenRecord `json:"tokens"`
		Summary    Summary                 `json:"summary"`
	}{
		ExportTime: te.now(),
		Owner:      owner,
		Tokens:     records,
		Summary:    Summarize(records, owner),
	}
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize считает токены по источникам.
func Summarize(records []portfolio.TokenRecord, owner string) Summary {
	summary := Summary{
		TotalTokens: len(records),
		BySource:    make(map[string]int),
	}
	for _, r := range records {
		summary.BySource[r.Source.String()]++
		if r.IsCreator(owner) {
			summary.CreatedTokens++
		}
	}
	return summary
}

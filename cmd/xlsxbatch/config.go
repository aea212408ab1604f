package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/cellref"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// SheetConfig describes how one sheet is read. It is loaded from the YAML
// file given with --config and overridden by command line flags.
type SheetConfig struct {
	Sheet          string            `yaml:"sheet"`
	BatchSize      int               `yaml:"batch_size"`
	SkipRows       uint32            `yaml:"skip_rows"`
	Left           string            `yaml:"left"`
	Right          string            `yaml:"right"`
	Header         bool              `yaml:"header"`
	SkipUntil      map[string]string `yaml:"skip_until"`
	ReadBefore     map[string]string `yaml:"read_before"`
	SkipMatched    map[string]string `yaml:"skip_matched"`
	SkipMatchedAny bool              `yaml:"skip_matched_any"`
	HeaderCheck    map[string]string `yaml:"header_check"`
	Capture        map[string]string `yaml:"capture"`
}

func loadConfig(path string) (SheetConfig, error) {
	var cfg SheetConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// addSheetFlags binds the sheet flags of cmd to cfg.
func addSheetFlags(cmd *cobra.Command, cfg *SheetConfig) {
	f := cmd.Flags()
	f.StringVarP(&cfg.Sheet, "sheet", "s", "", "Sheet name (default: first visible sheet)")
	f.IntVar(&cfg.BatchSize, "batch-size", xlsxbatch.DefaultBatchSize, "Rows per batch")
	f.Uint32Var(&cfg.SkipRows, "skip-rows", 0, "Skip rows numbered up to this value")
	f.StringVar(&cfg.Left, "left", "", "First column to read (letters)")
	f.StringVar(&cfg.Right, "right", "", "Last column to read (letters); rows are padded to it")
	f.BoolVar(&cfg.Header, "header", false, "Treat the first row read as the header")
	f.StringToStringVar(&cfg.SkipUntil, "skip-until", nil, "Skip rows until COL=value[|value] all match")
	f.StringToStringVar(&cfg.ReadBefore, "read-before", nil, "Stop before the row where COL=value[|value] all match")
	f.StringToStringVar(&cfg.SkipMatched, "skip-matched", nil, "Drop rows where COL=value[|value] match")
	f.BoolVar(&cfg.SkipMatchedAny, "skip-matched-any", false, "Drop rows when any skip-matched condition matches")
	f.StringToStringVar(&cfg.HeaderCheck, "header-check", nil, "Require header cells COL=value[|value]")
	f.StringToStringVar(&cfg.Capture, "capture", nil, "Capture ADDR=key values above the header")
}

// sheetConfig returns the config file values with every flag the user set
// on cmd applied on top.
func sheetConfig(cmd *cobra.Command, flags SheetConfig) (SheetConfig, error) {
	cfg := SheetConfig{BatchSize: xlsxbatch.DefaultBatchSize}
	if configPath != "" {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	set := cmd.Flags().Changed
	if set("sheet") {
		cfg.Sheet = flags.Sheet
	}
	if set("batch-size") {
		cfg.BatchSize = flags.BatchSize
	}
	if set("skip-rows") {
		cfg.SkipRows = flags.SkipRows
	}
	if set("left") {
		cfg.Left = flags.Left
	}
	if set("right") {
		cfg.Right = flags.Right
	}
	if set("header") {
		cfg.Header = flags.Header
	}
	if set("skip-until") {
		cfg.SkipUntil = flags.SkipUntil
	}
	if set("read-before") {
		cfg.ReadBefore = flags.ReadBefore
	}
	if set("skip-matched") {
		cfg.SkipMatched = flags.SkipMatched
	}
	if set("skip-matched-any") {
		cfg.SkipMatchedAny = flags.SkipMatchedAny
	}
	if set("header-check") {
		cfg.HeaderCheck = flags.HeaderCheck
	}
	if set("capture") {
		cfg.Capture = flags.Capture
	}
	return cfg, nil
}

func column(letters string) (models.ColNum, error) {
	if letters == "" {
		return 0, nil
	}
	return cellref.ColumnToNumber(letters)
}

// Options converts the config to sheet options.
func (c SheetConfig) Options() (xlsxbatch.SheetOptions, error) {
	left, err := column(c.Left)
	if err != nil {
		return xlsxbatch.SheetOptions{}, fmt.Errorf("left: %w", err)
	}
	right, err := column(c.Right)
	if err != nil {
		return xlsxbatch.SheetOptions{}, fmt.Errorf("right: %w", err)
	}
	return xlsxbatch.SheetOptions{
		BatchSize:        c.BatchSize,
		SkipRows:         models.RowNum(c.SkipRows),
		LeftCol:          left,
		RightCol:         right,
		FirstRowIsHeader: c.Header,
	}, nil
}

// open opens the configured sheet of b with every row predicate applied.
func (c SheetConfig) open(b *xlsxbatch.Book) (*xlsxbatch.Sheet, error) {
	name := c.Sheet
	if name == "" {
		visible := b.VisibleSheets()
		if len(visible) == 0 {
			return nil, fmt.Errorf("%w: workbook has no visible sheets", xlsxbatch.ErrSheetNotFound)
		}
		name = visible[0]
	}
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	s, err := b.OpenSheet(name, opts)
	if err != nil {
		return nil, err
	}
	if err := c.apply(s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (c SheetConfig) apply(s *xlsxbatch.Sheet) error {
	if len(c.SkipUntil) > 0 {
		if err := s.WithSkipUntil(c.SkipUntil); err != nil {
			return err
		}
	}
	if len(c.ReadBefore) > 0 {
		if err := s.WithReadBefore(c.ReadBefore); err != nil {
			return err
		}
	}
	if len(c.SkipMatched) > 0 {
		mode := xlsxbatch.MatchAll
		if c.SkipMatchedAny {
			mode = xlsxbatch.MatchAny
		}
		if err := s.WithSkipMatched(c.SkipMatched, mode); err != nil {
			return err
		}
	}
	if len(c.HeaderCheck) > 0 {
		if err := s.WithHeaderCheck(c.HeaderCheck); err != nil {
			return err
		}
	}
	if len(c.Capture) > 0 {
		if err := s.WithCaptureValues(c.Capture); err != nil {
			return err
		}
	}
	return nil
}

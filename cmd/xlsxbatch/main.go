// Package main provides the CLI entry point for xlsxbatch-go.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/cellref"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/convert"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/output"
)

var (
	configPath string
	verbose    bool
	logger     = zap.NewNop()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xlsxbatch",
		Short: "Stream rows out of Excel files in batches",
		Long: `xlsxbatch-go reads .xlsx worksheets row by row without loading them
into memory, and dumps or copies the rows it decodes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if verbose {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file with sheet settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newSheetsCmd(), newDumpCmd(), newCopyCmd(), newMergedCmd())
	return rootCmd
}

func openBook(path string) (*xlsxbatch.Book, error) {
	return xlsxbatch.Open(path, xlsxbatch.OpenOptions{Logger: logger})
}

func newSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets [input.xlsx]",
		Short: "List the sheets of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBook(args[0])
			if err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			for _, name := range b.VisibleSheets() {
				fmt.Fprintln(out, name)
			}
			for _, name := range b.HiddenSheets() {
				fmt.Fprintf(out, "%s (hidden)\n", name)
			}
			return nil
		},
	}
}

func newDumpCmd() *cobra.Command {
	var (
		flags      SheetConfig
		format     string
		outputPath string
		pretty     bool
		rowNumbers bool
		light      bool
	)
	cmd := &cobra.Command{
		Use:   "dump [input.xlsx]",
		Short: "Write the rows of a sheet as JSON or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sheetConfig(cmd, flags)
			if err != nil {
				return err
			}
			b, err := openBook(args[0])
			if err != nil {
				return err
			}
			defer b.Close()

			s, err := cfg.open(b)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch format {
			case "json":
				mode := xlsxbatch.ModeStandard
				if light {
					mode = xlsxbatch.ModeLight
				}
				return dumpJSON(out, s, mode, pretty)
			case "csv":
				return dumpCSV(out, s, rowNumbers)
			default:
				return fmt.Errorf("invalid format: %s (must be json or csv)", format)
			}
		},
	}
	addSheetFlags(cmd, &flags)
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, csv")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	cmd.Flags().BoolVar(&rowNumbers, "row-numbers", false, "Start CSV records with the row number")
	cmd.Flags().BoolVar(&light, "light", false, "Skip merged ranges in JSON output")
	return cmd
}

func dumpJSON(out io.Writer, s *xlsxbatch.Sheet, mode xlsxbatch.Mode, pretty bool) error {
	data, err := xlsxbatch.ReadSheetData(s, mode)
	if err != nil {
		return err
	}
	jsonData, err := output.SheetToJSON(&data, pretty)
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	_, err = fmt.Fprintln(out, string(jsonData))
	return err
}

func dumpCSV(out io.Writer, s *xlsxbatch.Sheet, rowNumbers bool) error {
	w := output.NewCSVWriter(out, rowNumbers)
	if s.Options().FirstRowIsHeader {
		header, err := s.HeaderRow()
		if err != nil {
			return err
		}
		if err := w.WriteHeader(*header); err != nil {
			return err
		}
	}
	for batch, err := range s.Batches() {
		if err != nil {
			return err
		}
		if err := w.WriteBatch(batch); err != nil {
			return err
		}
	}
	return w.Flush()
}

func newCopyCmd() *cobra.Command {
	var (
		flags      SheetConfig
		target     string
		prefix     string
		rowNumbers bool
	)
	cmd := &cobra.Command{
		Use:   "copy [input.xlsx] [output.xlsx]",
		Short: "Stream the rows of a sheet into a new workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sheetConfig(cmd, flags)
			if err != nil {
				return err
			}
			b, err := openBook(args[0])
			if err != nil {
				return err
			}
			defer b.Close()

			s, err := cfg.open(b)
			if err != nil {
				return err
			}
			defer s.Close()

			name := target
			if name == "" {
				name = s.SheetName()
			}
			n, err := copySheet(s, args[1], name, prefix, rowNumbers)
			if err != nil {
				return err
			}
			logger.Info("sheet copied",
				zap.String("sheet", s.SheetName()),
				zap.String("output", args[1]),
				zap.Int("rows", n))
			return nil
		},
	}
	addSheetFlags(cmd, &flags)
	cmd.Flags().StringVar(&target, "target", "", "Sheet name in the output workbook (default: source name)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Value written in front of every row")
	cmd.Flags().BoolVar(&rowNumbers, "row-numbers", false, "Write the source row number in front of every row")
	return cmd
}

func copySheet(s *xlsxbatch.Sheet, path, sheet, prefix string, rowNumbers bool) (int, error) {
	w, err := output.NewWriter(logger)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	var prefixCells []models.CellValue
	if prefix != "" {
		prefixCells = []models.CellValue{models.String(prefix)}
	}

	if s.Options().FirstRowIsHeader {
		header, err := s.HeaderRow()
		if err != nil {
			return 0, err
		}
		columns := make([]string, 0, len(prefixCells)+1+len(header.Cells))
		for range prefixCells {
			columns = append(columns, "")
		}
		if rowNumbers {
			columns = append(columns, "row")
		}
		for _, v := range header.Cells {
			columns = append(columns, cellText(v))
		}
		if err := w.WithColumns(sheet, columns, true); err != nil {
			return 0, err
		}
	}

	n := 0
	for batch, err := range s.Batches() {
		if err != nil {
			return n, err
		}
		if err := w.AppendBatch(sheet, batch, rowNumbers, prefixCells); err != nil {
			return n, err
		}
		n += batch.Len()
	}
	if !w.HasSheet(sheet) {
		if err := w.AppendRows(sheet, nil, nil, nil); err != nil {
			return n, err
		}
	}
	return n, w.SaveAs(path)
}

func cellText(v models.CellValue) string {
	s, _, _ := convert.Default.String(v)
	return s
}

func newMergedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merged [input.xlsx] [sheet]",
		Short: "List the merged ranges of a sheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBook(args[0])
			if err != nil {
				return err
			}
			defer b.Close()

			c, err := b.OpenCachedSheet(args[1], xlsxbatch.SheetOptions{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range c.MergedRanges() {
				ref, err := cellref.FormatRange(m)
				if err != nil {
					return err
				}
				// Blocks outside the decoded rows print without a value.
				v, _ := c.CellValue(strings.SplitN(ref, ":", 2)[0])
				fmt.Fprintf(out, "%s\t%s\n", ref, cellText(v))
			}
			return nil
		},
	}
}

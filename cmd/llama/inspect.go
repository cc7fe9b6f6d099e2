package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/mitlibraries/llama/pkg/sapfile"
)

type filters struct {
	recordType string
	vendor     string
}

func (f *filters) match(r sapfile.Record) bool {
	if f.recordType != "" && !strings.EqualFold(r["type"], f.recordType) {
		return false
	}
	if f.vendor != "" && !strings.Contains(strings.ToLower(r["vname"]), strings.ToLower(f.vendor)) {
		return false
	}
	return true
}

type FileProcessor struct {
	logger    *log.Logger
	inspector *sapfile.Inspector
	filters   *filters
	printer   *pp.PrettyPrinter
	out       io.Writer
}

var cliFilters filters

func NewFileProcessor(logger *log.Logger, filters *filters, out io.Writer) *FileProcessor {
	printer := pp.New()
	printer.SetOutput(out)
	if f, ok := out.(*os.File); !ok || f != os.Stdout {
		printer.SetColoringEnabled(false)
	}
	return &FileProcessor{
		logger:    logger,
		inspector: sapfile.New(logger),
		filters:   filters,
		printer:   printer,
		out:       out,
	}
}

func (p *FileProcessor) ProcessDirectory(inputDir string) error {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if err := p.ProcessFile(filepath.Join(inputDir, entry.Name())); err != nil {
			p.logger.Warn("error processing file", "error", err)
		}
	}

	return nil
}

func (p *FileProcessor) ProcessFile(inputPath string) error {
	fileBytes, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	res, err := p.inspector.Inspect(fileBytes, filepath.Base(inputPath))
	if err != nil {
		return fmt.Errorf("failed to process file: %w", err)
	}

	if res.Type == sapfile.DataFile {
		kept := res.Records[:0]
		for _, r := range res.Records {
			if p.filters.match(r) {
				kept = append(kept, r)
			}
		}
		res.Records = kept
	}
	p.printer.Println(res)

	if res.Type == sapfile.DataFile {
		return p.checkControl(inputPath, string(fileBytes))
	}
	return nil
}

// checkControl compares the control file next to a data file with the one
// recomputed from it.
func (p *FileProcessor) checkControl(dataPath, data string) error {
	controlPath := sapfile.ControlName(dataPath)
	control, err := os.ReadFile(controlPath)
	if errors.Is(err, fs.ErrNotExist) {
		recomputed, err := sapfile.RecomputeControl(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(p.out, "No control file %s, recomputed control:\n%s", controlPath, recomputed)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read control file: %w", err)
	}

	ok, err := sapfile.VerifyControl(data, string(control))
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(p.out, "Control file %s matches\n", controlPath)
	} else {
		fmt.Fprintf(p.out, "Control file %s does NOT match the data file\n", controlPath)
	}
	return nil
}

var inspectSAPFileCmd = &cobra.Command{
	Use:   "inspect-sap-file [flags] <path>",
	Short: "Decode SAP data and control files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(logLevel)
		processor := NewFileProcessor(logger, &cliFilters, cmd.OutOrStdout())

		matches, err := filepath.Glob(args[0])
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("no files found matching pattern %s", args[0])
		}
		sort.Strings(matches)

		for _, match := range matches {
			fileInfo, err := os.Stat(match)
			if err != nil {
				logger.Warn("failed to stat file", "error", err, "file", match)
				continue
			}

			if fileInfo.IsDir() {
				if err := processor.ProcessDirectory(match); err != nil {
					logger.Warn("failed to process directory", "error", err, "dir", match)
				}
			} else {
				if err := processor.ProcessFile(match); err != nil {
					logger.Warn("failed to process file", "error", err, "file", match)
				}
			}
		}
		return nil
	},
}

func init() {
	inspectSAPFileCmd.Flags().StringVar(&cliFilters.recordType, "type", "", "Only show data records of this type (B, C or D)")
	inspectSAPFileCmd.Flags().StringVar(&cliFilters.vendor, "vendor", "", "Only show header records whose vendor name contains this (case insensitive)")
}

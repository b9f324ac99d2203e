package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/changeset/internal/changeset"
)

// FileValidation holds the validation result of one changeset file.
type FileValidation struct {
	File   string                      `json:"file"`
	Valid  bool                        `json:"valid"`
	Table  string                      `json:"table,omitempty"`
	Errors []changeset.ValidationError `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

func newValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate changeset files without applying them",
		Long: `Check changeset files against the changeset schema and for internal
consistency. Every problem in every file is reported. Nothing is written
to the database.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts.formatter(cmd), args)
		},
	}
}

func runValidate(f *OutputFormatter, paths []string) error {
	_, result := loadChangesets(paths)
	if !result.Valid {
		return outputValidationErrors(f, result)
	}

	if f.JSON() {
		return f.Success(result)
	}
	for _, fv := range result.Files {
		fmt.Fprintf(f.Writer, "✓ %s (%s)\n", fv.File, fv.Table)
	}
	return nil
}

// loadChangesets loads every file, collecting problems instead of
// stopping at the first one. The changesets are only usable when the
// result is valid.
func loadChangesets(paths []string) ([]*changeset.Changeset, ValidationResult) {
	result := ValidationResult{Valid: true}
	sets := make([]*changeset.Changeset, 0, len(paths))

	for _, path := range paths {
		fv := FileValidation{File: path, Valid: true}
		cs, err := changeset.Load(path)
		if err != nil {
			fv.Valid = false
			result.Valid = false
			fv.Errors = toValidationErrors(err)
		} else {
			fv.Table = cs.Table
			sets = append(sets, cs)
		}
		result.Files = append(result.Files, fv)
	}
	return sets, result
}

func toValidationErrors(err error) []changeset.ValidationError {
	var verrs changeset.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	code := ErrCodeLoadFailed
	if errors.Is(err, os.ErrNotExist) {
		code = ErrCodeNotFound
	}
	return []changeset.ValidationError{{Field: "file", Message: err.Error(), Code: code}}
}

// outputValidationErrors reports invalid files and returns an ExitFailure.
func outputValidationErrors(f *OutputFormatter, result ValidationResult) error {
	invalid := 0
	for _, fv := range result.Files {
		if !fv.Valid {
			invalid++
		}
	}
	msg := fmt.Sprintf("%d of %d changeset(s) invalid", invalid, len(result.Files))

	if f.JSON() {
		if err := f.Failure(ErrCodeInvalid, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	writeValidationText(f.Writer, result)
	return NewExitError(ExitFailure, msg)
}

func writeValidationText(w io.Writer, result ValidationResult) {
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s (%s)\n", fv.File, fv.Table)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", fv.File)
		for _, e := range fv.Errors {
			fmt.Fprintf(w, "  %s %s: %s\n", e.Code, e.Field, e.Message)
		}
	}
}

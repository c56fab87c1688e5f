package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/canonxml/internal/c14n"
	"github.com/roach88/canonxml/internal/stage"
)

// CanonicalizeResult is the JSON payload of a successful canonicalize.
type CanonicalizeResult struct {
	Algorithm    string `json:"algorithm"`
	CanonicalXML string `json:"canonical_xml"`
}

// NewCanonicalizeCommand creates the canonicalize command.
func NewCanonicalizeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canonicalize [file]",
		Short: "Canonicalize a single XML document",
		Long: `Canonicalize one XML document read from a file, or from stdin when no
file is given, and print the canonical form.

Examples:
  canonxml canonicalize invoice.xml
  cat invoice.xml | canonxml canonicalize --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanonicalize(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runCanonicalize(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		formatter.VerboseLog("Reading %s", args[0])
		data, err = os.ReadFile(args[0])
	} else {
		formatter.VerboseLog("Reading stdin")
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read document", err)
	}

	engine := c14n.NewEngine()
	switch out := engine.Canonicalize(string(data)).(type) {
	case c14n.Success:
		if opts.Format == "json" {
			return formatter.Success(CanonicalizeResult{
				Algorithm:    engine.Algorithm(),
				CanonicalXML: out.CanonicalXML,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.CanonicalXML)
		return nil
	case c14n.Failure:
		_ = formatter.Error(stage.ErrorCode, out.Message, map[string]string{"kind": string(out.Kind)})
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", stage.ErrorCode, out.Message))
	default:
		return NewExitError(ExitFailure, "unknown canonicalization outcome")
	}
}

package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// stepSchema is the CUE definition a .cue step file is unified with.
// It is closed, so unknown keys fail, and it carries the defaults.
const stepSchema = `
#Step: {
	name:         *"xml_canonicalize" | (string & !="")
	input_field:  string & !=""
	output_field: *"canonical_xml" | (string & !="")
	copies:       *1 | (int & >=1 & <=64)
}
`

// loadCUE parses a CUE step file, unifies it with #Step and decodes the
// concrete result.
func loadCUE(path string) (Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Step{}, fmt.Errorf("failed to read config file: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(stepSchema, cue.Filename("step_schema.cue"))
	if err := schema.Err(); err != nil {
		return Step{}, fmt.Errorf("building step schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return Step{}, fmt.Errorf("loading CUE config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Step")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Step{}, fmt.Errorf("validating CUE config: %w", err)
	}

	var step Step
	if err := unified.Decode(&step); err != nil {
		return Step{}, fmt.Errorf("decoding CUE config: %w", err)
	}
	return step, nil
}

// Package config loads and validates the step configuration.
//
// Configuration files are YAML (strict: unknown keys are rejected) or CUE
// (validated against the embedded #Step schema, which also supplies
// defaults). Both paths end in the same defaults + validator pass.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/canonxml/internal/stage"
)

// MaxCopies bounds the number of concurrent step copies.
const MaxCopies = 64

// Step is the configuration of one canonicalization step.
type Step struct {
	// Name is the step name, stamped as origin on the appended field.
	Name string `yaml:"name" json:"name" validate:"fieldname"`

	// InputField names the text field holding the XML document.
	InputField string `yaml:"input_field" json:"input_field" validate:"required,fieldname"`

	// OutputField names the appended field. Default: "canonical_xml".
	OutputField string `yaml:"output_field" json:"output_field" validate:"required,fieldname"`

	// Copies is the number of independent step instances. Default: 1.
	Copies int `yaml:"copies" json:"copies" validate:"gte=1,lte=64"`
}

// Default returns a Step with every optional field set.
func Default() Step {
	return Step{
		Name:        stage.DefaultStepName,
		OutputField: stage.DefaultOutputField,
		Copies:      1,
	}
}

// ApplyDefaults fills empty optional fields.
func (s *Step) ApplyDefaults() {
	d := Default()
	if s.Name == "" {
		s.Name = d.Name
	}
	if s.OutputField == "" {
		s.OutputField = d.OutputField
	}
	if s.Copies == 0 {
		s.Copies = d.Copies
	}
}

// StageConfig converts the step to the processor configuration.
func (s Step) StageConfig() stage.Config {
	return stage.Config{
		InputField:  s.InputField,
		OutputField: s.OutputField,
		StepName:    s.Name,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("fieldname", validateFieldName); err != nil {
		panic(fmt.Sprintf("config: register fieldname validator: %v", err))
	}
	return v
}

// validateFieldName rejects names with control characters or surrounding
// whitespace. The empty string is left to "required".
func validateFieldName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" {
		return true
	}
	if strings.TrimSpace(name) != name {
		return false
	}
	return strings.IndexFunc(name, unicode.IsControl) < 0
}

// Validate checks the step. Call ApplyDefaults first.
func (s Step) Validate() error {
	if err := validate.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid step config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid step config: %w", err)
	}
	if s.InputField == s.OutputField {
		return fmt.Errorf("invalid step config: output_field must differ from input_field %q", s.InputField)
	}
	return nil
}

// Load reads a step file. The format is chosen by extension: .yaml/.yml or .cue.
// Defaults are applied; validation is left to the caller so flags can
// override file values first.
func Load(path string) (Step, error) {
	var (
		step Step
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		step, err = loadYAML(path)
	case ".cue":
		step, err = loadCUE(path)
	default:
		return Step{}, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", filepath.Ext(path))
	}
	if err != nil {
		return Step{}, err
	}
	step.ApplyDefaults()
	return step, nil
}

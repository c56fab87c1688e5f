package stage

import (
	"log/slog"
	"time"

	"github.com/roach88/canonxml/internal/c14n"
	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/schema"
)

// DefaultOutputField is the appended field name when none is configured.
const DefaultOutputField = "canonical_xml"

// DefaultStepName is the origin stamped on the appended field.
const DefaultStepName = "xml_canonicalize"

// ErrorCode is the fixed code carried by every ErrorRecord.
const ErrorCode = "C14N001"

// Config names the fields a Processor works on.
type Config struct {
	InputField  string
	OutputField string
	StepName    string
}

func (c Config) withDefaults() Config {
	if c.OutputField == "" {
		c.OutputField = DefaultOutputField
	}
	if c.StepName == "" {
		c.StepName = DefaultStepName
	}
	return c
}

// ErrorRecord is a record diverted to the error channel.
type ErrorRecord struct {
	Seq     int64
	Record  row.Record // original record, unmodified
	Code    string     // always ErrorCode
	Kind    string     // "parse" or "canonicalize"
	Message string     // never empty
	Field   string     // configured input field
}

// Result is what a Processor produces for one record.
// Only Emit and Divert implement it.
type Result interface {
	result() // Sealed
}

// Emit is the success path: Record is aligned to Schema.
// Schema is shared by every Emit of a Processor and must not be modified.
type Emit struct {
	Seq    int64
	Schema row.Schema
	Record row.Record
}

func (Emit) result() {}

// Divert is the error path.
type Divert struct {
	Error ErrorRecord
}

func (Divert) result() {}

// Observer receives per-record notifications. Implementations must be cheap;
// they run inline on the record path.
type Observer interface {
	RecordEmitted(elapsed time.Duration)
	RecordDiverted(kind string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) RecordEmitted(time.Duration)         {}
func (nopObserver) RecordDiverted(string, time.Duration) {}

// Option configures a Processor.
type Option func(*Processor)

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// Processor is one running instance of the step.
//
// Thread-safety: NOT safe for concurrent use. Process must be called from
// one goroutine at a time.
type Processor struct {
	cfg      Config
	state    Lifecycle
	pctx     *ProcessingContext
	initErr  error // sticky: a failed initialization fails every later call
	observer Observer
	logger   *slog.Logger
}

// New creates an uninitialized Processor.
func New(cfg Config, opts ...Option) *Processor {
	p := &Processor{
		cfg:      cfg.withDefaults(),
		state:    Uninitialized,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration, defaults applied.
func (p *Processor) Config() Config {
	return p.cfg
}

// State returns the instance lifecycle state.
func (p *Processor) State() Lifecycle {
	return p.state
}

// Context returns the processing context, or nil before the first record.
func (p *Processor) Context() *ProcessingContext {
	return p.pctx
}

// initialize performs the one-time Uninitialized → Initialized transition.
// Calling it again is a no-op that returns the first result.
func (p *Processor) initialize(in row.Schema) error {
	if p.state == Initialized {
		return nil
	}
	if p.initErr != nil {
		return p.initErr
	}

	res, err := schema.Resolve(in, p.cfg.InputField, p.cfg.OutputField, p.cfg.StepName)
	if err != nil {
		p.initErr = NewConfigurationError(p.cfg.InputField, err)
		return p.initErr
	}

	p.pctx = newProcessingContext(res)
	p.state = Initialized

	p.logger.Info("step initialized",
		"step", p.cfg.StepName,
		"input_field", p.cfg.InputField,
		"input_index", res.InputIndex,
		"output_field", p.cfg.OutputField,
		"output_index", res.OutputIndex,
		"algorithm", p.pctx.engine.Algorithm(),
	)
	return nil
}

// Process transforms one record.
//
// in is the schema of rec; it is resolved on the first call only.
// A non-nil error is fatal (*StepError) and the run must stop. Otherwise
// exactly one of Emit or Divert is returned.
func (p *Processor) Process(seq int64, in row.Schema, rec row.Record) (Result, error) {
	if err := p.initialize(in); err != nil {
		return nil, err
	}
	pctx := p.pctx

	if len(rec) != pctx.inputWidth() {
		return nil, NewRecordShapeError(seq, len(rec), pctx.inputWidth())
	}

	// ReadField + TypeCheck. Null is not text.
	value := rec[pctx.inputIndex]
	text, ok := value.(row.Text)
	if !ok {
		return nil, NewTypeMismatchError(p.cfg.InputField, seq, row.Describe(value))
	}

	// Parse + Canonicalize
	start := time.Now()
	outcome := pctx.engine.Canonicalize(string(text))
	elapsed := time.Since(start)

	switch out := outcome.(type) {
	case c14n.Success:
		p.observer.RecordEmitted(elapsed)
		widened := rec.Widen(len(pctx.outputSchema))
		widened[pctx.outputIndex] = row.Text(out.CanonicalXML)
		return Emit{Seq: seq, Schema: pctx.outputSchema, Record: widened}, nil
	case c14n.Failure:
		p.observer.RecordDiverted(string(out.Kind), elapsed)
		return p.divert(seq, rec, string(out.Kind), out.Message), nil
	default:
		panic("stage: unknown c14n outcome")
	}
}

func (p *Processor) divert(seq int64, rec row.Record, kind, message string) Divert {
	p.logger.Debug("record diverted",
		"seq", seq,
		"field", p.cfg.InputField,
		"kind", kind,
		"message", message,
	)
	return Divert{Error: ErrorRecord{
		Seq:     seq,
		Record:  rec.Clone(),
		Code:    ErrorCode,
		Kind:    kind,
		Message: message,
		Field:   p.cfg.InputField,
	}}
}

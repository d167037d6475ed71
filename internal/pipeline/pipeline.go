// Package pipeline turns a natural-language question into executed SQL. It
// links schema elements, classifies the question, routes it to a difficulty
// prompt, generates and cleans the query, executes it, and attempts one
// repair on failure. Model misbehavior never escapes this package: every
// generation or extraction failure degrades to the sentinel statement.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlscribe/sqlscribe/internal/executor"
	"github.com/sqlscribe/sqlscribe/internal/extract"
	"github.com/sqlscribe/sqlscribe/internal/llm"
	"github.com/sqlscribe/sqlscribe/internal/observability"
	"github.com/sqlscribe/sqlscribe/internal/prompt"
)

// SentinelSQL is the degraded-output statement substituted whenever the model
// produces nothing usable. It is valid SQL on every supported engine and
// returns an empty result rather than an error.
const SentinelSQL = "SELECT"

// State names the pipeline stages for transition logging.
type State string

const (
	StateSchemaLinking    State = "schema_linking"
	StateClassifyDispatch State = "classify_dispatch"
	StateGenerate         State = "generate"
	StateClean            State = "clean"
	StateExecute          State = "execute"
	StateRepair           State = "repair"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// SchemaSource provides the prompt-ready schema renderings. The introspector
// implements it against a live connection; tests stub it.
type SchemaSource interface {
	Fields(ctx context.Context, dbName string) (string, error)
	ForeignKeys(ctx context.Context, dbName string) (string, error)
	PrimaryKeys(ctx context.Context, dbName string) (string, error)
}

// Pipeline wires the stages together. Dialect names the SQL dialect fed to
// the clean prompt ("postgres", "duckdb", "presto").
type Pipeline struct {
	Schema  SchemaSource
	LLM     llm.Generator
	Runner  executor.Runner
	Prompts *prompt.Renderer
	Logger  *slog.Logger
	Dialect string
}

// Answer is the full trace of one question through the pipeline. ExecError is
// data, not an error: when both execution attempts fail the formatted failure
// text is returned here and the pipeline still completes normally.
type Answer struct {
	Question       string
	Database       string
	SchemaLinks    string
	Classification Classification
	Variant        prompt.Variant
	SQL            string
	Repaired       bool
	Columns        []string
	Rows           [][]any
	ExecError      string
	Duration       time.Duration
}

// Ask runs the whole pipeline: translate the question, execute the query, and
// repair once on failure. Only infrastructure faults (schema introspection,
// template rendering) return an error; everything the model can get wrong is
// absorbed into the Answer.
func (p *Pipeline) Ask(ctx context.Context, question, dbName string) (Answer, error) {
	start := time.Now()

	answer, err := p.Translate(ctx, question, dbName)
	if err != nil {
		return Answer{}, err
	}

	p.transition(ctx, StateClean, StateExecute)
	result, execErr := p.Runner.Execute(ctx, answer.SQL)
	if execErr == nil {
		answer.Columns = result.Columns
		answer.Rows = result.Rows
		p.finish(ctx, &answer, start, StateDone)
		return answer, nil
	}

	p.transition(ctx, StateExecute, StateRepair)
	repairedSQL := p.repairQuery(ctx, answer.SQL, failureMessage(execErr))

	result, execErr = p.Runner.Execute(ctx, repairedSQL)
	if execErr == nil {
		answer.SQL = repairedSQL
		answer.Repaired = true
		answer.Columns = result.Columns
		answer.Rows = result.Rows
		observability.ObserveRepair(true)
		p.finish(ctx, &answer, start, StateDone)
		return answer, nil
	}

	observability.ObserveRepair(false)
	answer.SQL = repairedSQL
	answer.Repaired = true
	answer.ExecError = fmt.Sprintf("query execution failed after repair: %s", failureMessage(execErr))
	p.finish(ctx, &answer, start, StateFailed)
	return answer, nil
}

// Translate runs the pipeline up to (and including) the clean pass, without
// touching the data source beyond schema introspection.
func (p *Pipeline) Translate(ctx context.Context, question, dbName string) (Answer, error) {
	links, err := p.SchemaLinks(ctx, question, dbName)
	if err != nil {
		return Answer{}, err
	}

	p.transition(ctx, StateSchemaLinking, StateClassifyDispatch)
	classification, err := p.ClassifyQuestion(ctx, question, dbName, links)
	if err != nil {
		return Answer{}, err
	}

	p.transition(ctx, StateClassifyDispatch, StateGenerate)
	rawSQL, variant, err := p.GenerateSQL(ctx, question, dbName, links, classification)
	if err != nil {
		return Answer{}, err
	}

	p.transition(ctx, StateGenerate, StateClean)
	cleanedSQL, err := p.Clean(ctx, question, dbName, rawSQL)
	if err != nil {
		return Answer{}, err
	}

	return Answer{
		Question:       question,
		Database:       dbName,
		SchemaLinks:    links,
		Classification: classification,
		Variant:        variant,
		SQL:            cleanedSQL,
	}, nil
}

// SchemaLinks asks the model which schema elements the question references.
// The result is an opaque blob passed downstream verbatim; a failed call or a
// missing <links> tag yields the empty string.
func (p *Pipeline) SchemaLinks(ctx context.Context, question, dbName string) (string, error) {
	fields, err := p.Schema.Fields(ctx, dbName)
	if err != nil {
		return "", fmt.Errorf("introspect fields: %w", err)
	}
	foreignKeys, err := p.Schema.ForeignKeys(ctx, dbName)
	if err != nil {
		return "", fmt.Errorf("introspect foreign keys: %w", err)
	}

	promptText, err := p.Prompts.Render(prompt.VariantSchemaLinking, prompt.Fields{
		"fields":       fields,
		"foreign_keys": foreignKeys,
		"question":     question,
	})
	if err != nil {
		return "", err
	}

	observability.ObserveGeneration(string(prompt.VariantSchemaLinking))
	out, err := p.LLM.Generate(ctx, promptText, llm.Options{
		StopSequences:   []string{prompt.ExampleTagEnd},
		AssistantPrefix: `A: Let's think step by step. In the question "` + question + `", we are asked:`,
	})
	if err != nil {
		observability.IncrementGenerationFailure()
		p.logger().WarnContext(ctx, "schema_linking_generation_failed", slog.String("error", err.Error()))
		return "", nil
	}

	links, offset := extract.Tag(out, prompt.LinksTagName, true)
	if offset < 0 {
		observability.IncrementExtractionMiss()
		p.logger().WarnContext(ctx, "schema_links_tag_missing", slog.Int("output_length", len(out)))
		return "", nil
	}
	return links, nil
}

// ClassifyQuestion labels the question EASY, NON-NESTED, or NESTED. Anything
// the model gets wrong collapses to LabelUnknown, which routes to the
// sentinel.
func (p *Pipeline) ClassifyQuestion(ctx context.Context, question, dbName, schemaLinks string) (Classification, error) {
	fields, err := p.Schema.Fields(ctx, dbName)
	if err != nil {
		return Classification{}, fmt.Errorf("introspect fields: %w", err)
	}
	foreignKeys, err := p.Schema.ForeignKeys(ctx, dbName)
	if err != nil {
		return Classification{}, fmt.Errorf("introspect foreign keys: %w", err)
	}

	promptText, err := p.Prompts.Render(prompt.VariantClassification, prompt.Fields{
		"fields":       fields,
		"foreign_keys": foreignKeys,
		"question":     question,
		"schema_links": schemaLinks,
	})
	if err != nil {
		return Classification{}, err
	}

	observability.ObserveGeneration(string(prompt.VariantClassification))
	out, err := p.LLM.Generate(ctx, promptText, llm.Options{
		StopSequences:   []string{prompt.ExampleTagEnd},
		AssistantPrefix: "A: Let's think step by step.",
	})
	if err != nil {
		observability.IncrementGenerationFailure()
		p.logger().WarnContext(ctx, "classification_generation_failed", slog.String("error", err.Error()))
		return Classification{Label: LabelUnknown}, nil
	}

	payload, offset := extract.Tag(out, prompt.LabelTagName, false)
	if offset < 0 {
		observability.IncrementExtractionMiss()
		p.logger().WarnContext(ctx, "classification_label_missing", slog.Int("output_length", len(out)))
		return Classification{Label: LabelUnknown}, nil
	}
	return ParseClassification(payload), nil
}

// GenerateSQL routes the classified question to its difficulty prompt and
// extracts the fenced SQL from the model output. Unknown labels and any
// generation or extraction failure produce the sentinel.
func (p *Pipeline) GenerateSQL(ctx context.Context, question, dbName, schemaLinks string, classification Classification) (string, prompt.Variant, error) {
	routed := p.dispatch(ctx, question, classification)
	if !routed.recognized {
		observability.IncrementSentinelFallback()
		p.logger().WarnContext(ctx, "classification_unrecognized",
			slog.String("label", string(classification.Label)))
		return SentinelSQL, "", nil
	}

	fields, err := p.Schema.Fields(ctx, dbName)
	if err != nil {
		return "", "", fmt.Errorf("introspect fields: %w", err)
	}
	promptFields := prompt.Fields{
		"fields":       fields,
		"question":     question,
		"schema_links": schemaLinks,
	}
	if routed.variant != prompt.VariantEasy {
		foreignKeys, err := p.Schema.ForeignKeys(ctx, dbName)
		if err != nil {
			return "", "", fmt.Errorf("introspect foreign keys: %w", err)
		}
		promptFields["foreign_keys"] = foreignKeys
	}
	if routed.variant == prompt.VariantHard {
		promptFields["sub_questions"] = routed.subQuestions
	}

	promptText, err := p.Prompts.Render(routed.variant, promptFields)
	if err != nil {
		return "", "", err
	}

	observability.ObserveGeneration(string(routed.variant))
	out, err := p.LLM.Generate(ctx, promptText, llm.Options{
		StopSequences:   []string{prompt.ExampleTagEnd},
		AssistantPrefix: routed.assistantPrefix,
	})
	if err != nil {
		observability.IncrementGenerationFailure()
		observability.IncrementSentinelFallback()
		p.logger().WarnContext(ctx, "sql_generation_failed",
			slog.String("variant", string(routed.variant)),
			slog.String("error", err.Error()))
		return SentinelSQL, routed.variant, nil
	}

	sqlText, ok := extract.SQL(out)
	if !ok {
		observability.IncrementExtractionMiss()
		observability.IncrementSentinelFallback()
		p.logger().WarnContext(ctx, "sql_fence_missing",
			slog.String("variant", string(routed.variant)),
			slog.Int("output_length", len(out)))
		return SentinelSQL, routed.variant, nil
	}
	return sqlText, routed.variant, nil
}

// Clean runs the mandatory post-generation pass: the model reviews the query
// against the full schema (fields, foreign keys, primary keys) and the target
// dialect, and returns a corrected statement. This runs on every query, the
// sentinel included; newlines in the output are collapsed to spaces before
// fence extraction.
func (p *Pipeline) Clean(ctx context.Context, question, dbName, sqlText string) (string, error) {
	fields, err := p.Schema.Fields(ctx, dbName)
	if err != nil {
		return "", fmt.Errorf("introspect fields: %w", err)
	}
	foreignKeys, err := p.Schema.ForeignKeys(ctx, dbName)
	if err != nil {
		return "", fmt.Errorf("introspect foreign keys: %w", err)
	}
	primaryKeys, err := p.Schema.PrimaryKeys(ctx, dbName)
	if err != nil {
		return "", fmt.Errorf("introspect primary keys: %w", err)
	}

	schemaBlob := fields + "Foreign_keys = " + foreignKeys + "\n" + "Primary_keys = " + primaryKeys
	promptText, err := p.Prompts.Render(prompt.VariantClean, prompt.Fields{
		"fields":      schemaBlob,
		"question":    question,
		"sql_query":   sqlText,
		"sql_dialect": p.Dialect,
	})
	if err != nil {
		return "", err
	}

	observability.ObserveGeneration(string(prompt.VariantClean))
	out, err := p.LLM.Generate(ctx, promptText, llm.Options{
		StopSequences: []string{prompt.ExampleTagEnd},
	})
	if err != nil {
		observability.IncrementGenerationFailure()
		observability.IncrementSentinelFallback()
		p.logger().WarnContext(ctx, "clean_generation_failed", slog.String("error", err.Error()))
		return SentinelSQL, nil
	}

	cleaned, ok := extract.SQL(strings.ReplaceAll(out, "\n", " "))
	if !ok {
		observability.IncrementExtractionMiss()
		observability.IncrementSentinelFallback()
		p.logger().WarnContext(ctx, "clean_fence_missing", slog.Int("output_length", len(out)))
		return SentinelSQL, nil
	}
	return cleaned, nil
}

type route struct {
	recognized      bool
	variant         prompt.Variant
	assistantPrefix string
	subQuestions    string
}

// dispatch maps a classification onto a prompt variant and its reply prefix.
// A NESTED label without an embedded questions marker downgrades silently to
// the non-nested prompt.
func (p *Pipeline) dispatch(ctx context.Context, question string, classification Classification) route {
	const sqlPrefix = "SQL: " + extract.SQLFenceStart

	switch classification.Label {
	case LabelEasy:
		return route{recognized: true, variant: prompt.VariantEasy, assistantPrefix: sqlPrefix}
	case LabelNonNested:
		return route{recognized: true, variant: prompt.VariantMedium, assistantPrefix: sqlPrefix}
	case LabelNested:
		subQuestions, ok := extract.SubQuestions(classification.Payload)
		if !ok {
			p.logger().InfoContext(ctx, "nested_without_sub_questions_downgraded")
			return route{recognized: true, variant: prompt.VariantMedium, assistantPrefix: sqlPrefix}
		}
		prefix := `A: Let's think step by step. "` + question +
			`" can be solved by knowing the answer to the following sub-question "` + subQuestions +
			`". The SQL query for the sub-question "`
		return route{recognized: true, variant: prompt.VariantHard, assistantPrefix: prefix, subQuestions: subQuestions}
	default:
		return route{}
	}
}

// repairQuery asks the model for a corrected statement given the failing SQL
// and the driver error text, quoted verbatim. Extraction failure degrades to
// the sentinel like every other generation stage.
func (p *Pipeline) repairQuery(ctx context.Context, failingSQL, errorMessage string) string {
	promptText := fmt.Sprintf(
		"Please provide a new SQL query that correctly fixes the invalid SQL statement below using the SQL Error information.\n"+
			"Only provide one new SQL query in your response and use begin and end tags of %q and %q respectively:\n"+
			"Invalid SQL Statement: %s\n"+
			"SQL Error: %s\n",
		extract.SQLFenceStart, extract.SQLFenceEnd, failingSQL, errorMessage)

	observability.ObserveGeneration("repair")
	out, err := p.LLM.Generate(ctx, promptText, llm.Options{})
	if err != nil {
		observability.IncrementGenerationFailure()
		observability.IncrementSentinelFallback()
		p.logger().WarnContext(ctx, "repair_generation_failed", slog.String("error", err.Error()))
		return SentinelSQL
	}

	repaired, ok := extract.SQL(out)
	if !ok {
		observability.IncrementExtractionMiss()
		observability.IncrementSentinelFallback()
		p.logger().WarnContext(ctx, "repair_fence_missing", slog.Int("output_length", len(out)))
		return SentinelSQL
	}
	return repaired
}

func (p *Pipeline) finish(ctx context.Context, answer *Answer, start time.Time, terminal State) {
	answer.Duration = time.Since(start)
	observability.ObservePipelineDuration(answer.Duration)
	p.transition(ctx, StateExecute, terminal)
	p.logger().InfoContext(ctx, "pipeline_finished",
		slog.String("state", string(terminal)),
		slog.String("variant", string(answer.Variant)),
		slog.Bool("repaired", answer.Repaired),
		slog.Duration("duration", answer.Duration))
}

func (p *Pipeline) transition(ctx context.Context, from, to State) {
	p.logger().DebugContext(ctx, "pipeline_transition",
		slog.String("from", string(from)),
		slog.String("to", string(to)))
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func failureMessage(err error) string {
	var failure *executor.Failure
	if errors.As(err, &failure) {
		return failure.Message
	}
	return err.Error()
}

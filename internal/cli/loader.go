package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/engine"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/queryir"
	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/rules"
	"github.com/roach88/pushplan/internal/store"
)

// LoadError is a failure to load one of a command's inputs.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// report prints err through f and returns the ExitError for it. Load errors
// keep their own code; anything else is generic.
func report(f *OutputFormatter, exitCode int, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return f.Fail(exitCode, loadErr.Code, loadErr.Message, errString(loadErr.Err))
	}
	return f.Fail(exitCode, ErrCodeGeneric, err.Error(), nil)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

// loadCatalog compiles the catalog at path and, when st is not nil, applies
// the row counts recorded in it.
func loadCatalog(ctx context.Context, path string, st *store.Store) (*catalog.Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog not found: %s", path)}
	}
	cat, err := catalog.LoadPath(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCatalog, Message: "catalog failed to compile", Err: err}
	}
	if st == nil {
		return cat, nil
	}
	counts, err := st.RowCounts(ctx)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Message: "reading table statistics", Err: err}
	}
	if len(counts) > 0 {
		slog.Debug("applying table statistics", "tables", len(counts))
	}
	return cat.WithRowCounts(counts), nil
}

// readPlan reads plan text from path, or from in when path is "-".
func readPlan(path string, in io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("plan file not found: %s", path)}
		}
		return "", &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading plan %s", path), Err: err}
	}
	return string(data), nil
}

// parseCorrelations parses --correlation values of the form
// "$cor0=ID:INTEGER,NAME:VARCHAR" into row types.
func parseCorrelations(specs []string) (map[string]queryir.RowType, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]queryir.RowType, len(specs))
	for _, spec := range specs {
		name, fields, ok := strings.Cut(spec, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || fields == "" {
			return nil, &LoadError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("correlation %q: want NAME=FIELD:TYPE,...", spec)}
		}
		var row queryir.RowType
		for _, field := range strings.Split(fields, ",") {
			fieldName, typeName, ok := strings.Cut(field, ":")
			if !ok {
				return nil, &LoadError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("correlation %s: field %q has no type", name, field)}
			}
			dt, err := ir.ParseDataType(typeName)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("correlation %s", name), Err: err}
			}
			row = append(row, queryir.Field{Name: strings.TrimSpace(fieldName), Type: dt})
		}
		out[name] = row
	}
	return out, nil
}

// planInput is a parsed plan and everything it was parsed against.
type planInput struct {
	Root         rel.Node
	Catalog      *catalog.Catalog
	Correlations map[string]queryir.RowType
}

// loadPlan reads and parses the plan at path against the configured
// catalog.
func loadPlan(ctx context.Context, opts *RootOptions, path string, correlations []string, in io.Reader, st *store.Store) (*planInput, error) {
	cat, err := loadCatalog(ctx, opts.Config.Catalog, st)
	if err != nil {
		return nil, err
	}
	corr, err := parseCorrelations(correlations)
	if err != nil {
		return nil, err
	}
	text, err := readPlan(path, in)
	if err != nil {
		return nil, err
	}
	root, err := rel.ParseExplain(text, cat, corr)
	if err != nil {
		return nil, &LoadError{Code: ErrCodePlanParse, Message: "plan failed to parse", Err: err}
	}
	return &planInput{Root: root, Catalog: cat, Correlations: corr}, nil
}

// openStore opens the configured history database. It returns nil without
// error when none is configured and required is false.
func openStore(opts *RootOptions, required bool) (*store.Store, error) {
	path := opts.Config.Database
	if path == "" {
		if required {
			return nil, &LoadError{Code: ErrCodeNoDatabase, Message: "no history database configured (use --db or PUSHPLAN_DATABASE)"}
		}
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Message: fmt.Sprintf("opening database %s", path), Err: err}
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// newEngine builds an engine for ruleSet from the resolved config. Sessions
// are recorded in st when it is not nil, with sequence numbers continuing
// the stored history.
func newEngine(ctx context.Context, opts *RootOptions, ruleSet []rules.Rule, st *store.Store) (*engine.Engine, error) {
	engineOpts := opts.Config.EngineOptions()
	if st != nil {
		last, err := st.LastSeq(ctx)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeDatabase, Message: "reading history sequence", Err: err}
		}
		engineOpts = append(engineOpts, engine.WithStore(st), engine.WithClock(engine.NewClockAt(last)))
	}
	return engine.New(ruleSet, nil, engineOpts...), nil
}

// selectRules resolves rule names, trimming blanks left by comma lists.
func selectRules(names []string) ([]rules.Rule, error) {
	names = lo.Compact(lo.Map(names, func(n string, _ int) string { return strings.TrimSpace(n) }))
	ruleSet, err := rules.ByName(names...)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidInput, Message: "unknown rule", Err: err}
	}
	return ruleSet, nil
}

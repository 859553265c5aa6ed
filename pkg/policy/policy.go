package policy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// Query evaluated by dispatch policies. Policies declare
//
//	package dispatch
//	domains contains "physical" if { ... }
const Query = "data.dispatch.domains"

// Input is the document handed to the policy as `input`
type Input struct {
	Text    string             `json:"text"`
	Hints   model.Hints        `json:"hints"`
	Profile *model.UserProfile `json:"profile,omitempty"`
}

// printHook forwards Rego print() statements to the context logger
type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Dispatch selects domains with a Rego policy
type Dispatch struct {
	query *rego.PreparedEvalQuery
}

// Load reads a .rego file, or every .rego file of a directory, and prepares
// the dispatch query. It returns nil without error when no file is found.
func Load(ctx context.Context, path string) (*Dispatch, error) {
	files, err := policyFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+2)
	options = append(options, rego.Query(Query), rego.EnablePrintStatements(true))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare dispatch query", goerr.V("path", path))
	}
	return &Dispatch{query: &prepared}, nil
}

func policyFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat policy path", goerr.V("path", path))
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := filepath.Glob(filepath.Join(path, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("path", path))
	}
	return files, nil
}

// Domains evaluates the policy. Unknown domain names are an error. An
// undefined result gives an empty list.
func (d *Dispatch) Domains(ctx context.Context, input *Input) ([]model.Domain, error) {
	rs, err := d.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate dispatch policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	values, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, goerr.New("dispatch policy must produce a set of domain names",
			goerr.V("value", rs[0].Expressions[0].Value))
	}

	var domains []model.Domain
	for _, v := range values {
		name, ok := v.(string)
		if !ok {
			return nil, goerr.New("domain name must be a string", goerr.V("value", v))
		}
		domain := model.Domain(name)
		if err := domain.Validate(); err != nil {
			return nil, goerr.Wrap(err, "dispatch policy returned unknown domain", goerr.V("domain", name))
		}
		domains = append(domains, domain)
	}
	return domains, nil
}

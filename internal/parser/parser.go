package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/model"
)

// Format selects the serialization of the EXPLAIN document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	// FormatAuto sniffs the first significant byte: '[' or '{' means JSON.
	FormatAuto Format = "auto"
)

// Options controls parsing.
type Options struct {
	Format Format
	// Strict rejects Node Type values outside the known set instead of
	// degrading them to model.Unknown.
	Strict bool
}

// ParseJSON reads a PostgreSQL EXPLAIN (FORMAT JSON) document and produces an Explain structure.
func ParseJSON(r io.Reader) (*model.Explain, error) {
	return Parse(r, Options{Format: FormatJSON})
}

// ParseYAML reads a PostgreSQL EXPLAIN (FORMAT YAML) document.
func ParseYAML(r io.Reader) (*model.Explain, error) {
	return Parse(r, Options{Format: FormatYAML})
}

// Parse decodes the first plan record of an EXPLAIN document.
func Parse(r io.Reader, opts Options) (*model.Explain, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeMalformedInput, "read explain input")
	}

	format := opts.Format
	if format == "" {
		format = FormatJSON
	}
	if format == FormatAuto {
		format = sniff(data)
	}
	if format == FormatYAML {
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeMalformedInput, "decode explain yaml")
		}
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, errs.Wrap(err, errs.CodeMalformedInput, "decode explain json")
	}

	entry, err := pickFirstEntry(payload)
	if err != nil {
		return nil, err
	}

	planVal, ok := entry["Plan"]
	if !ok {
		return nil, errs.New(errs.CodeMalformedInput, "explain json: missing Plan root")
	}
	planMap, err := asObject(planVal)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeMalformedInput, "explain json: invalid Plan node")
	}

	p := &planParser{strict: opts.Strict}
	root, err := p.node(planMap, "0")
	if err != nil {
		return nil, err
	}

	top := newFields(entry, "explain")
	top.seen["Plan"] = struct{}{}
	explain := &model.Explain{
		Plan:          root,
		PlanningTime:  top.optional("Planning Time"),
		ExecutionTime: top.optional("Execution Time"),
		TotalRuntime:  top.optional("Total Runtime"),
		Triggers:      top.triggers("Triggers"),
		Settings:      parseSettings(entry["Settings"]),
	}
	top.seen["Settings"] = struct{}{}
	if top.err != nil {
		return nil, top.err
	}
	explain.Extra = top.extra()

	return explain, nil
}

func sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatYAML
}

func pickFirstEntry(payload any) (map[string]any, error) {
	switch v := payload.(type) {
	case []any:
		if len(v) == 0 {
			return nil, errs.New(errs.CodeMalformedInput, "explain json: empty payload")
		}
		obj, err := asObject(v[0])
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeMalformedInput, "explain json: invalid entry")
		}
		return obj, nil
	case map[string]any:
		return v, nil
	default:
		return nil, errs.Newf(errs.CodeMalformedInput, "explain json: unexpected top-level type %T", payload)
	}
}

type planParser struct {
	strict bool
}

func (p *planParser) node(data map[string]any, path string) (*model.PlanNode, error) {
	f := newFields(data, path)

	node := &model.PlanNode{
		ID:                 path,
		Operator:           p.operator(f),
		ParentRelationship: f.str("Parent Relationship"),
		SubplanName:        f.str("Subplan Name"),
		StartupCost:        f.required("Startup Cost"),
		TotalCost:          f.required("Total Cost"),
		PlanRows:           f.required("Plan Rows"),
		PlanWidth:          f.required("Plan Width"),
		ActualStartupTime:  f.optional("Actual Startup Time"),
		ActualTotalTime:    f.optional("Actual Total Time"),
		ActualRows:         f.optional("Actual Rows"),
		ActualLoops:        f.optional("Actual Loops"),
		ParallelAware:      f.boolean("Parallel Aware"),
		WorkersPlanned:     f.number("Workers Planned"),
		WorkersLaunched:    f.number("Workers Launched"),
		Workers:            f.workers("Workers"),
		Output:             f.strings("Output"),
	}

	children := f.slice("Plans")
	if f.err != nil {
		return nil, f.err
	}

	for i, childVal := range children {
		childPath := fmt.Sprintf("%s.%d", path, i)
		childMap, err := asObject(childVal)
		if err != nil {
			return nil, errs.Wrapf(err, errs.CodeMalformedInput, "explain json: node %s", childPath)
		}
		child, err := p.node(childMap, childPath)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	node.Extra = f.extra()
	return node, nil
}

func (p *planParser) operator(f *fields) model.Operator {
	nodeType := f.requiredString("Node Type")
	if f.err != nil {
		return nil
	}

	switch nodeType {
	case model.TypeAggregate:
		op := model.Aggregate{
			Strategy:    model.Strategy(f.requiredString("Strategy")),
			PartialMode: model.PartialMode(f.str("Partial Mode")),
			GroupKey:    f.strings("Group Key"),
		}
		f.enum("Strategy", string(op.Strategy), op.Strategy.Valid())
		if op.PartialMode != "" {
			f.enum("Partial Mode", string(op.PartialMode), op.PartialMode.Valid())
		}
		return op
	case model.TypeHashJoin:
		op := model.HashJoin{
			JoinType:    model.JoinType(f.requiredString("Join Type")),
			InnerUnique: f.boolean("Inner Unique"),
			HashCond:    f.requiredString("Hash Cond"),
		}
		f.enum("Join Type", string(op.JoinType), op.JoinType.Valid())
		return op
	case model.TypeMergeJoin:
		op := model.MergeJoin{
			JoinType:  model.JoinType(f.requiredString("Join Type")),
			MergeCond: f.str("Merge Cond"),
		}
		f.enum("Join Type", string(op.JoinType), op.JoinType.Valid())
		return op
	case model.TypeNestedLoop:
		op := model.NestedLoop{
			JoinType:   model.JoinType(f.requiredString("Join Type")),
			JoinFilter: f.str("Join Filter"),
		}
		f.enum("Join Type", string(op.JoinType), op.JoinType.Valid())
		return op
	case model.TypeSort, model.TypeIncrementalSort:
		keys := f.strings("Sort Key")
		if len(keys) == 0 {
			f.fail("missing %q", "Sort Key")
		}
		return model.Sort{SortKey: keys, Incremental: nodeType == model.TypeIncrementalSort}
	case model.TypeSeqScan:
		return model.SeqScan{Relation: f.relation(), Filter: f.str("Filter")}
	case model.TypeIndexScan, model.TypeIndexOnlyScan:
		return model.IndexScan{
			Relation:      f.relation(),
			IndexName:     f.requiredString("Index Name"),
			ScanDirection: f.str("Scan Direction"),
			IndexCond:     f.str("Index Cond"),
			IndexOnly:     nodeType == model.TypeIndexOnlyScan,
		}
	case model.TypeBitmapIndexScan:
		return model.BitmapIndexScan{
			IndexName: f.requiredString("Index Name"),
			IndexCond: f.str("Index Cond"),
		}
	case model.TypeBitmapHeapScan:
		return model.BitmapHeapScan{Relation: f.relation(), RecheckCond: f.str("Recheck Cond")}
	case model.TypeCTEScan:
		return model.CTEScan{CTEName: f.requiredString("CTE Name"), Alias: f.str("Alias")}
	case model.TypeFunctionScan:
		return model.FunctionScan{FunctionName: f.str("Function Name"), Alias: f.str("Alias")}
	case model.TypeModifyTable:
		op := model.ModifyTable{
			Operation: model.Operation(f.requiredString("Operation")),
			Relation:  f.relation(),
		}
		f.enum("Operation", string(op.Operation), op.Operation.Valid())
		return op
	case model.TypeSetOp:
		op := model.SetOp{
			Strategy: model.Strategy(f.requiredString("Strategy")),
			Command:  f.str("Command"),
		}
		f.enum("Strategy", string(op.Strategy), op.Strategy.Valid())
		return op
	}

	if _, ok := model.GenericTypes[nodeType]; ok {
		return model.Generic{Type: nodeType}
	}
	if p.strict {
		f.fail("unknown Node Type %q", nodeType)
		return nil
	}
	return model.Unknown{Type: nodeType}
}

func parseSettings(val any) map[string]string {
	if val == nil {
		return nil
	}

	result := map[string]string{}
	switch typed := val.(type) {
	case []any:
		for _, entry := range typed {
			item, err := asObject(entry)
			if err != nil {
				continue
			}
			name := asString(item["Name"])
			if name == "" {
				name = asString(item["name"])
			}
			value := asString(item["Setting"])
			if value == "" {
				value = asString(item["value"])
			}
			if name != "" && value != "" {
				result[name] = value
			}
		}
	case map[string]any:
		for k, v := range typed {
			result[k] = asString(v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

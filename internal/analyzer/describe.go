package analyzer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mickamy/pgdot/internal/model"
)

// MaxInfoLength is the number of characters kept by Describe before truncation.
const MaxInfoLength = 80

// Describe returns the salient parameter of an operator, e.g. "inner join on (a.id = b.id)".
// Kinds without parameters yield an empty string.
func Describe(op model.Operator) string {
	var info string
	switch o := op.(type) {
	case model.Aggregate:
		if len(o.GroupKey) > 0 {
			info = "by " + strings.Join(o.GroupKey, ", ")
		}
	case model.HashJoin:
		info = fmt.Sprintf("%s join on %s", o.JoinType, o.HashCond)
	case model.MergeJoin:
		info = o.JoinType.String() + " join"
		if o.MergeCond != "" {
			info += " on " + o.MergeCond
		}
	case model.NestedLoop:
		info = o.JoinType.String() + " join"
		if o.JoinFilter != "" {
			info += " filter " + o.JoinFilter
		}
	case model.Sort:
		info = "by " + strings.Join(o.SortKey, ", ")
	case model.SeqScan:
		info = "on " + o.Relation.String()
	case model.IndexScan:
		info = fmt.Sprintf("using %s on %s", o.IndexName, o.Relation)
	case model.BitmapIndexScan:
		info = "using " + o.IndexName
	case model.BitmapHeapScan:
		info = "on " + o.Relation.String()
	case model.CTEScan:
		info = "on " + o.CTEName
	case model.FunctionScan:
		if o.FunctionName != "" {
			info = "on " + o.FunctionName
		}
	case model.ModifyTable:
		info = fmt.Sprintf("%s on %s", strings.ToLower(string(o.Operation)), o.Relation)
	case model.SetOp:
		info = strings.ToLower(string(o.Strategy))
		if o.Command != "" {
			info += " " + strings.ToLower(o.Command)
		}
	}
	return truncate(info, MaxInfoLength)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

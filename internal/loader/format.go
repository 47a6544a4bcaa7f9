package loader

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/elektrokombinacija/planilp/internal/core"
)

// Format writes p in the description syntax. Types and predicates are always
// written so that parsing the output yields the same domain. Exclusivity
// group parameters are written by name; their types are recovered from the
// predicate slots they fill.
func Format(w io.Writer, p *core.Problem) error {
	bw := bufio.NewWriter(w)
	d := p.Domain

	if p.Name != "" {
		fmt.Fprintf(bw, "name: %s\n", p.Name)
	}

	byType := map[core.TypeName][]string{}
	var untyped []string
	for _, o := range d.Objects() {
		if len(o.Types) == 0 {
			untyped = append(untyped, o.Name)
		}
		for _, t := range o.Types {
			byType[t] = append(byType[t], o.Name)
		}
	}
	for _, t := range d.Types() {
		if objs := byType[t]; len(objs) > 0 {
			fmt.Fprintf(bw, "types: %s(%s)\n", t, strings.Join(objs, ","))
		}
	}
	if len(untyped) > 0 {
		fmt.Fprintf(bw, "types: %s(%s)\n", core.AnyType, strings.Join(untyped, ","))
	}

	if preds := d.Predicates(); len(preds) > 0 {
		parts := make([]string, len(preds))
		for i, pr := range preds {
			parts[i] = pr.String()
		}
		fmt.Fprintf(bw, "predicates: %s\n", strings.Join(parts, " & "))
	}

	// One initial line per predicate keeps large states readable.
	var order []string
	groups := map[string][]string{}
	for _, f := range p.Init {
		if _, ok := groups[f.Predicate]; !ok {
			order = append(order, f.Predicate)
		}
		groups[f.Predicate] = append(groups[f.Predicate], f.String())
	}
	for _, pred := range order {
		fmt.Fprintf(bw, "initial: %s\n", strings.Join(groups[pred], " & "))
	}

	if len(p.Goal) > 0 {
		parts := make([]string, len(p.Goal))
		for i, g := range p.Goal {
			parts[i] = g.String()
		}
		fmt.Fprintf(bw, "goals: %s\n", strings.Join(parts, " & "))
	}

	for _, g := range d.Exclusive() {
		s := core.Schema{Params: g.Params}
		parts := make([]string, len(g.Atoms))
		for i, a := range g.Atoms {
			parts[i] = s.FormatAtom(a)
		}
		fmt.Fprintf(bw, "exclusive: %s\n", strings.Join(parts, " | "))
	}

	for _, s := range d.Schemas() {
		fmt.Fprintf(bw, "action: %s\n", formatSchema(s))
	}

	if !p.AllowIdle {
		fmt.Fprintln(bw, "idle: false")
	}
	// a cost= option implies minimize: true when the line is absent
	costs := slices.ContainsFunc(d.Schemas(), func(s *core.Schema) bool { return s.Cost != core.DefaultCost })
	if p.Minimize != costs {
		fmt.Fprintf(bw, "minimize: %v\n", p.Minimize)
	}
	fmt.Fprintf(bw, "t_max: %d\n", p.Horizon)
	return bw.Flush()
}

func formatSchema(s *core.Schema) string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		if p.Type == core.AnyType || p.Type == "" {
			params[i] = p.Name
		} else {
			params[i] = p.Name + ":" + string(p.Type)
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(%s)", s.Name, strings.Join(params, ", "))
	if s.Cost != core.DefaultCost {
		fmt.Fprintf(&sb, " cost=%d", s.Cost)
	}
	if s.Symmetric {
		sb.WriteString(" symmetric")
	}
	lits := func(ls []core.Literal) string {
		parts := make([]string, len(ls))
		for i, l := range ls {
			parts[i] = s.FormatAtom(l.Atom)
			if l.Negated {
				parts[i] = "~" + parts[i]
			}
		}
		return strings.Join(parts, " & ")
	}
	fmt.Fprintf(&sb, "; %s; %s", lits(s.Pre), lits(s.Eff))
	return sb.String()
}

// Package loader reads and writes the textual problem description.
//
// A description is a sequence of "keyword: body" lines:
//
//	initial: At(L1) & Road(L1,L2)
//	goals: Supplied(L2) & ~Blocked(L2)
//	action: Go(x,y); At(x) & Road(x,y); At(y) & ~At(x)
//	t_max: 20
//
// Optional lines declare types, predicates, exclusivity groups and the idle
// and objective policies. '#' starts a comment.
package loader

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/elektrokombinacija/planilp/internal/core"
)

type atomSyntax struct {
	pred string
	args []string
	neg  bool
}

type paramSyntax struct {
	name string
	typ  string
}

type actionSyntax struct {
	line      int
	name      string
	params    []paramSyntax
	cost      int
	hasCost   bool
	symmetric bool
	pre, eff  []atomSyntax
}

type declSyntax struct {
	line int
	atom atomSyntax
}

type groupSyntax struct {
	line  int
	atoms []atomSyntax
}

// document is the parsed but unresolved form of a description.
type document struct {
	name       string
	types      []declSyntax
	predicates []declSyntax
	initial    []declSyntax
	goals      []declSyntax
	actions    []actionSyntax
	exclusive  []groupSyntax

	horizon    int
	hasHorizon bool
	idle       bool
	minimize   bool

	// without a minimize line, minimize follows whether any action
	// declares a cost
	hasMinimize bool
}

// Parse reads a description. name is used when the text has no name line.
func Parse(r io.Reader, name string) (*core.Problem, error) {
	doc, err := parseDocument(r)
	if err != nil {
		return nil, err
	}
	if doc.name == "" {
		doc.name = name
	}
	return doc.build()
}

// ParseString parses a description held in memory.
func ParseString(src, name string) (*core.Problem, error) {
	return Parse(strings.NewReader(src), name)
}

// LoadFile parses the description at path, naming the problem after the
// file when the text does not.
func LoadFile(path string) (*core.Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	base := filepath.Base(path)
	return Parse(f, strings.TrimSuffix(base, filepath.Ext(base)))
}

func parseDocument(r io.Reader) (*document, error) {
	doc := &document{idle: true}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		key, body, ok := strings.Cut(text, ":")
		if !ok {
			return nil, errorf(line, "expected \"keyword: ...\"")
		}
		if err := doc.parseLine(strings.TrimSpace(key), body, line); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !doc.hasHorizon {
		return nil, errorf(0, "missing t_max")
	}
	return doc, nil
}

func (doc *document) parseLine(key, body string, line int) error {
	switch key {
	case "name":
		doc.name = strings.TrimSpace(body)
		if doc.name == "" {
			return errorf(line, "empty name")
		}
		return nil
	case "t_max":
		n, err := strconv.Atoi(strings.TrimSpace(body))
		if err != nil || n < 0 {
			return errorf(line, "t_max must be a non-negative integer, got %q", strings.TrimSpace(body))
		}
		if doc.hasHorizon {
			return errorf(line, "t_max given twice")
		}
		doc.horizon, doc.hasHorizon = n, true
		return nil
	case "idle", "minimize":
		v, err := strconv.ParseBool(strings.TrimSpace(body))
		if err != nil {
			return errorf(line, "%s must be true or false, got %q", key, strings.TrimSpace(body))
		}
		if key == "idle" {
			doc.idle = v
		} else {
			doc.minimize, doc.hasMinimize = v, true
		}
		return nil
	}

	c, err := newCursor(body, line)
	if err != nil {
		return err
	}
	switch key {
	case "initial", "types", "predicates":
		atoms, err := parseConjunction(c, false)
		if err != nil {
			return err
		}
		if err := c.end(); err != nil {
			return err
		}
		decls := make([]declSyntax, len(atoms))
		for i, a := range atoms {
			decls[i] = declSyntax{line: line, atom: a}
		}
		switch key {
		case "initial":
			doc.initial = append(doc.initial, decls...)
		case "types":
			doc.types = append(doc.types, decls...)
		default:
			doc.predicates = append(doc.predicates, decls...)
		}
	case "goals", "goal":
		atoms, err := parseConjunction(c, true)
		if err != nil {
			return err
		}
		if err := c.end(); err != nil {
			return err
		}
		for _, a := range atoms {
			doc.goals = append(doc.goals, declSyntax{line: line, atom: a})
		}
	case "action":
		a, err := parseAction(c)
		if err != nil {
			return err
		}
		doc.actions = append(doc.actions, a)
	case "exclusive":
		g, err := parseGroup(c)
		if err != nil {
			return err
		}
		doc.exclusive = append(doc.exclusive, g)
	default:
		return errorf(line, "unknown section %q", key)
	}
	return nil
}

// parseAtom reads [~]Name[(term, ...)]. A term is a name or '*'.
func parseAtom(c *cursor, allowNeg bool) (atomSyntax, error) {
	var a atomSyntax
	if c.accept("~") {
		if !allowNeg {
			return a, errorf(c.line, "negation is not allowed here")
		}
		a.neg = true
	}
	pred, err := c.ident()
	if err != nil {
		return a, err
	}
	a.pred = pred
	if !c.accept("(") {
		return a, nil
	}
	if c.accept(")") {
		return a, nil
	}
	for {
		if c.accept("*") {
			a.args = append(a.args, "*")
		} else {
			arg, err := c.ident()
			if err != nil {
				return a, err
			}
			a.args = append(a.args, arg)
		}
		if c.accept(")") {
			return a, nil
		}
		if err := c.expect(","); err != nil {
			return a, err
		}
	}
}

// parseConjunction reads atoms separated by '&' up to ';' or the end of the
// line. An empty conjunction is allowed.
func parseConjunction(c *cursor, allowNeg bool) ([]atomSyntax, error) {
	if c.atEnd() || c.is(";") {
		return nil, nil
	}
	var out []atomSyntax
	for {
		a, err := parseAtom(c, allowNeg)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		if !c.accept("&") {
			return out, nil
		}
	}
}

func parseAction(c *cursor) (actionSyntax, error) {
	a := actionSyntax{line: c.line, cost: core.DefaultCost}
	name, err := c.ident()
	if err != nil {
		return a, err
	}
	a.name = name
	if err := c.expect("("); err != nil {
		return a, err
	}
	if !c.accept(")") {
		for {
			p, err := c.ident()
			if err != nil {
				return a, err
			}
			ps := paramSyntax{name: p}
			if c.accept(":") {
				if ps.typ, err = c.ident(); err != nil {
					return a, err
				}
			}
			a.params = append(a.params, ps)
			if c.accept(")") {
				break
			}
			if err := c.expect(","); err != nil {
				return a, err
			}
		}
	}

	for !c.is(";") && !c.atEnd() {
		opt, err := c.ident()
		if err != nil {
			return a, err
		}
		switch opt {
		case "symmetric":
			a.symmetric = true
		case "cost":
			if err := c.expect("="); err != nil {
				return a, err
			}
			v, err := c.ident()
			if err != nil {
				return a, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return a, errorf(c.line, "cost must be a non-negative integer, got %q", v)
			}
			a.cost, a.hasCost = n, true
		default:
			return a, errorf(c.line, "unknown action option %q", opt)
		}
	}

	if err := c.expect(";"); err != nil {
		return a, err
	}
	if a.pre, err = parseConjunction(c, true); err != nil {
		return a, err
	}
	if err := c.expect(";"); err != nil {
		return a, err
	}
	if a.eff, err = parseConjunction(c, true); err != nil {
		return a, err
	}
	return a, c.end()
}

func parseGroup(c *cursor) (groupSyntax, error) {
	g := groupSyntax{line: c.line}
	for {
		a, err := parseAtom(c, false)
		if err != nil {
			return g, err
		}
		g.atoms = append(g.atoms, a)
		if !c.accept("|") {
			break
		}
	}
	return g, c.end()
}

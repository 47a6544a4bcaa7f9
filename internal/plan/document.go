package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/planilp/internal/ground"
)

// Document is the YAML form of a plan. Actions are named, so a document
// can be checked against a fresh grounding of the problem.
type Document struct {
	Problem string         `yaml:"problem"`
	Horizon int            `yaml:"horizon"`
	Cost    int            `yaml:"cost"`
	Steps   []DocumentStep `yaml:"steps"`
}

// DocumentStep is one named action.
type DocumentStep struct {
	Time   int      `yaml:"t"`
	Action string   `yaml:"action"`
	Args   []string `yaml:"args,flow"`
}

// Document converts p, a plan over u.
func (p *Plan) Document(u *ground.Universe) Document {
	dom := u.Problem.Domain
	d := Document{Problem: u.Problem.Name, Horizon: p.Horizon, Cost: p.Cost, Steps: []DocumentStep{}}
	for _, s := range p.Steps {
		args := make([]string, len(s.Action.Args))
		for i, o := range s.Action.Args {
			args[i] = dom.Object(o).Name
		}
		d.Steps = append(d.Steps, DocumentStep{Time: s.Time, Action: s.Action.Schema.Name, Args: args})
	}
	return d
}

// Resolve binds the document's actions in u. It does not replay.
func (d Document) Resolve(u *ground.Universe) (*Plan, error) {
	steps := make([]Step, len(d.Steps))
	for i, s := range d.Steps {
		a, err := u.ActionByName(s.Action, s.Args)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps[i] = Step{Time: s.Time, Action: a}
	}
	return New(d.Horizon, steps), nil
}

// Marshal renders the document as YAML.
func (d Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// ParseDocument reads a YAML plan document.
func ParseDocument(data []byte) (Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("failed to parse plan document: %w", err)
	}
	return d, nil
}

// LoadDocument reads a plan document from disk.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read plan document: %w", err)
	}
	return ParseDocument(data)
}

// Save writes the document to disk.
func (d Document) Save(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal plan document: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan document: %w", err)
	}
	return nil
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/plan"
)

const small = "testdata/small.txt"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"PLANILP_SOLVER", "PLANILP_TIMEOUT", "PLANILP_LOG_LEVEL", "PLANILP_MAX_HORIZON"} {
		t.Setenv(k, "")
	}
	cfg := filepath.Join(t.TempDir(), "absent.yaml")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestSolveText(t *testing.T) {
	out, err := run(t, "solve", small)
	require.NoError(t, err)
	assert.Contains(t, out, "problem small: solved at horizon 8")
	assert.Contains(t, out, "Unload(B1,L3)")
	assert.Contains(t, out, "plan: 6 actions, cost 6")
}

func TestSolveYAMLThenValidate(t *testing.T) {
	for _, backend := range []string{"gophersat", "reference"} {
		t.Run(backend, func(t *testing.T) {
			planPath := filepath.Join(t.TempDir(), "plan.yaml")
			out, err := run(t, "--solver", backend, "-o", "yaml", "solve", small, "--horizon", "6", "--plan-out", planPath)
			require.NoError(t, err)

			doc, err := plan.ParseDocument([]byte(out))
			require.NoError(t, err)
			assert.Equal(t, "small", doc.Problem)
			assert.Len(t, doc.Steps, 6)
			assert.Equal(t, 6, doc.Cost)

			out, err = run(t, "validate", small, planPath)
			require.NoError(t, err)
			assert.Equal(t, "plan valid: 6 actions, horizon 6\n", out)
		})
	}
}

func TestSolveInfeasible(t *testing.T) {
	_, err := run(t, "solve", small, "--horizon", "1")
	require.ErrorIs(t, err, errNoPlan)
	assert.EqualError(t, err, "no plan within horizon 1")
}

func TestSearch(t *testing.T) {
	out, err := run(t, "search", small, "--min", "0", "--max", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "solved at horizon 6")

	_, err = run(t, "search", small, "--max", "3")
	assert.ErrorIs(t, err, errNoPlan)
}

func TestGround(t *testing.T) {
	out, err := run(t, "-o", "yaml", "ground", small, "--list")
	require.NoError(t, err)

	var r groundReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &r))
	assert.Equal(t, 3+9+3+3+1+1, r.Facts)
	assert.Equal(t, 4+1+3, r.Actions)
	assert.Equal(t, []string{"Road", "Warehouse"}, r.Static)
	assert.Equal(t, 2, r.Exclusive)
	assert.Len(t, r.FactNames, r.Facts)
	assert.Contains(t, r.ActionNames, "Load(B1,L1)")
}

func TestEncode(t *testing.T) {
	opb := filepath.Join(t.TempDir(), "model.opb")
	out, err := run(t, "encode", small, "--horizon", "3", "--out", opb)
	require.NoError(t, err)
	assert.Contains(t, out, "problem small: horizon 3, serial")
	assert.Contains(t, out, "variables:   104")
	assert.Contains(t, out, "objective:   true")

	data, err := os.ReadFile(opb)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestValidateRejects(t *testing.T) {
	doc := plan.Document{
		Problem: "small",
		Horizon: 2,
		Steps: []plan.DocumentStep{
			{Time: 0, Action: "Go", Args: []string{"L1", "L2"}},
			{Time: 1, Action: "Go", Args: []string{"L1", "L2"}},
		},
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, doc.Save(path))

	_, err := run(t, "validate", small, path)
	require.ErrorIs(t, err, core.ErrPlanInconsistency)
	assert.ErrorContains(t, err, "plan rejected")

	doc = plan.Document{Problem: "small", Horizon: 9, Steps: []plan.DocumentStep{}}
	require.NoError(t, doc.Save(path))
	_, err = run(t, "validate", small, path)
	require.ErrorIs(t, err, core.ErrPlanInconsistency)
	assert.ErrorContains(t, err, "exceeds t_max 8")
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"output format", []string{"-o", "xml", "ground", small}, "output format"},
		{"backend", []string{"--solver", "cplex", "solve", small}, "invalid configuration"},
		{"missing file", []string{"solve", "testdata/none.txt"}, "none.txt"},
		{"arguments", []string{"solve"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAgentsCommand(t *testing.T) {
	out, err := execute(t, "agents")
	require.NoError(t, err)
	assert.Contains(t, out, "TAG")
	assert.Contains(t, out, "research")
	assert.Contains(t, out, "analysis")
	assert.Contains(t, out, "report")
}

func TestRunRequiresTopic(t *testing.T) {
	_, err := execute(t, "run", "--offline")
	assert.EqualError(t, err, "--topic is required")
}

func TestRunOfflineQuickResearch(t *testing.T) {
	out, err := execute(t, "run", "--offline", "--type", "quick_research", "--topic", "solar energy", "-q", "What is new?")
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, "success", env["status"])
	assert.Equal(t, "quick_research", env["task_type"])
	assert.NotEmpty(t, env["task_id"])

	results, ok := env["results"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, results, "research")
}

func TestRunInput(t *testing.T) {
	o := &runOptions{taskType: "custom", topic: "EV", agents: []string{"research", "analysis"}, analysisType: "comprehensive"}
	in := o.input()
	assert.Equal(t, []string{"research", "analysis"}, in["agents"])
	assert.NotContains(t, in, "questions")
}

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersMaintenanceTasks(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "seed", "accrue-leave", "process-payroll", "relay-outbox"}, names)
}

func TestProcessPayrollRequiresPeriod(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"process-payroll"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period")
}

func TestAccrueLeaveRejectsBadDate(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"accrue-leave", "--as-of", "31-01-2025"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

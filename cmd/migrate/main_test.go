package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr  error
	steps  int
	forced int
}

func (f *fakeMigrator) Up() error { return f.upErr }
func (f *fakeMigrator) Steps(n int) error {
	f.steps = n
	return nil
}
func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return nil
}
func (f *fakeMigrator) Version() (uint, bool, error) { return 3, false, nil }

func TestRunCommand(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	require.NoError(t, runCommand(m, nil), "no change is not an error")

	m.upErr = errors.New("dirty database")
	assert.ErrorContains(t, runCommand(m, []string{"up"}), "dirty database")

	require.NoError(t, runCommand(m, []string{"down", "2"}))
	assert.Equal(t, -2, m.steps)
	assert.Error(t, runCommand(m, []string{"down"}))

	require.NoError(t, runCommand(m, []string{"force", "2"}))
	assert.Equal(t, 2, m.forced)
	assert.Error(t, runCommand(m, []string{"force", "x"}))

	require.NoError(t, runCommand(m, []string{"version"}))
	assert.Error(t, runCommand(m, []string{"sideways"}))
}

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ostep-web/wserver/pkg/scheduling"
)

func TestRootCmdDefaults(t *testing.T) {
	cmd, opts := newRootCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := opts.resolve()
	require.NoError(t, err)
	require.Equal(t, ".", cfg.DocRoot)
	require.Equal(t, 10000, cfg.Port)
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, 1, cfg.QueueSlots)
	require.Equal(t, scheduling.FIFO, cfg.Discipline)
	require.Empty(t, cfg.DebugAddr)
}

func TestRootCmdFlagParsing(t *testing.T) {
	cmd, opts := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"-d", "/srv/www", "-p", "8080", "-t", "8", "-b", "16", "-s", "SFF",
	}))

	cfg, err := opts.resolve()
	require.NoError(t, err)
	require.Equal(t, "/srv/www", cfg.DocRoot)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, 16, cfg.QueueSlots)
	require.Equal(t, scheduling.SFF, cfg.Discipline)
}

func TestRootCmdInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "port out of range",
			args: []string{"-p", "70000"},
		},
		{
			name: "negative port",
			args: []string{"-p", "-1"},
		},
		{
			name: "zero threads",
			args: []string{"-t", "0"},
		},
		{
			name: "zero buffers",
			args: []string{"-b", "0"},
		},
		{
			name: "unknown discipline",
			args: []string{"-s", "LIFO"},
		},
		{
			name: "lowercase discipline",
			args: []string{"-s", "sff"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, opts := newRootCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))
			_, err := opts.resolve()
			require.Error(t, err)
		})
	}
}

func TestRootCmdUnknownFlag(t *testing.T) {
	cmd, _ := newRootCmd()
	require.Error(t, cmd.ParseFlags([]string{"-z", "1"}))
}

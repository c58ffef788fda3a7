package cli

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/genesisforge/internal/app"
	"github.com/vk/genesisforge/internal/failure"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name       string
		args       []string
		want       *app.Config
		shouldExit bool
		errCode    int
		errMsg     string
	}{
		{
			name: "defaults",
			args: []string{"all"},
			want: &app.Config{ConfigPath: "genesisforge.hcl", Command: app.CommandAll, LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "every option",
			args: []string{"-config", "ci/pipeline.hcl", "-chain", "staging", "-log-format", "JSON", "-log-level", "debug", "-workers", "8", "bootstrap"},
			want: &app.Config{
				ConfigPath: "ci/pipeline.hcl",
				Command:    app.CommandBootstrap,
				Profile:    "staging",
				Workers:    8,
				LogFormat:  "json",
				LogLevel:   "debug",
			},
		},
		{
			name: "shorthand config wins",
			args: []string{"-config", "a.hcl", "-c", "b.hcl", "types"},
			want: &app.Config{ConfigPath: "b.hcl", Command: app.CommandTypes, LogFormat: "text", LogLevel: "info"},
		},
		{name: "help", args: []string{"-h"}, shouldExit: true},
		{name: "no command", args: []string{}, shouldExit: true},
		{name: "unknown flag", args: []string{"-grid", "x", "all"}, errCode: ExitUsage, errMsg: "flag provided but not defined"},
		{name: "unknown command", args: []string{"deploy"}, errCode: ExitUsage, errMsg: `unknown command "deploy"`},
		{name: "two commands", args: []string{"types", "all"}, errCode: ExitUsage, errMsg: "expected one command"},
		{name: "bad log format", args: []string{"-log-format", "xml", "all"}, errCode: ExitUsage, errMsg: "invalid log-format"},
		{name: "bad log level", args: []string{"-log-level", "trace", "all"}, errCode: ExitUsage, errMsg: "invalid log-level"},
		{name: "negative workers", args: []string{"-workers", "-1", "types"}, errCode: ExitUsage, errMsg: "workers must not be negative"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			cfg, shouldExit, err := Parse(tc.args, out)

			if tc.errMsg != "" {
				require.Error(t, err)
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tc.errCode, exitErr.Code)
				assert.Contains(t, exitErr.Message, tc.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.shouldExit, shouldExit)
			if tc.shouldExit {
				assert.Contains(t, out.String(), "Usage:")
				assert.Nil(t, cfg)
				return
			}
			assert.Equal(t, tc.want, cfg)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, 3, ExitCode(&ExitError{Code: 3}))
	assert.Equal(t, ExitUsage, ExitCode(failure.New(failure.KindConfig, "config.load", "bad")))
	assert.Equal(t, ExitFailure, ExitCode(failure.New(failure.KindBuild, "build.first", "exit status 101")))
	assert.Equal(t, ExitFailure, ExitCode(fmt.Errorf("wrapped: %w", failure.New(failure.KindConversion, "spec.raw", "stale"))))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
}

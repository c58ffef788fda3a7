package proc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "PROC_TEST_HELPER"

// TestMain lets the test binary double as the external process.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(helperMain(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func helperMain(args []string) int {
	switch args[0] {
	case "echo":
		fmt.Println(strings.Join(args[1:], " "))
		return 0
	case "env":
		fmt.Print(os.Getenv(args[1]))
		return 0
	case "fail":
		for i := 0; i < 30; i++ {
			fmt.Fprintf(os.Stderr, "error line %d\n", i)
		}
		return 3
	}
	return 127
}

func helper(args ...string) Command {
	return Command{
		Path:          os.Args[0],
		Args:          args,
		Env:           map[string]string{helperEnv: "1"},
		CaptureStdout: true,
	}
}

func TestRun_CapturesStdout(t *testing.T) {
	res, err := Run(context.Background(), helper("echo", "build-spec", "--chain", "dev"))
	require.NoError(t, err)
	assert.Equal(t, "build-spec --chain dev\n", string(res.Stdout))
}

func TestRun_PassesEnv(t *testing.T) {
	c := helper("env", "SKIP_WASM_BUILD")
	c.Env["SKIP_WASM_BUILD"] = "1"
	res, err := Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "1", string(res.Stdout))
}

func TestRun_FailureKeepsTail(t *testing.T) {
	res, err := Run(context.Background(), helper("fail"))
	require.Error(t, err)

	var procErr *Error
	require.True(t, errors.As(err, &procErr))
	assert.Contains(t, procErr.Error(), "exit status 3")

	lines := strings.Split(res.StderrTail, "\n")
	assert.Len(t, lines, TailLines)
	assert.Equal(t, "error line 10", lines[0])
	assert.Equal(t, "error line 29", lines[len(lines)-1])
}

func TestRun_MissingExecutable(t *testing.T) {
	_, err := Run(context.Background(), Command{Path: "/nonexistent/bunbi-node"})
	var procErr *Error
	require.ErrorAs(t, err, &procErr)
	assert.Contains(t, procErr.Command, "/nonexistent/bunbi-node")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, helper("echo", "never"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"PATH=/bin", "RUST_LOG=info"}, map[string]string{"RUST_LOG": "debug", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "A=1", "RUST_LOG=debug"}, got)
	assert.Equal(t, []string{"X=1"}, mergeEnv([]string{"X=1"}, nil))
}

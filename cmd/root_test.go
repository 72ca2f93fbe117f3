package main

import (
	"errors"
	"os"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/musicdw/internal/pipeline"
)

// stageEnv makes the test binary behave as musicdw so run can re-invoke it
// for its stages.
const stageEnv = "MUSICDW_TEST_AS_MAIN"

func TestMain(m *testing.M) {
	if os.Getenv(stageEnv) == "1" {
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"run", "ingest", "transform", "load", "acquire", "report", "runs", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "musicdw", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRunCommand_Flags(t *testing.T) {
	flag := runCmd.Flags().Lookup("clean")
	require.NotNil(t, flag, "run command should have --clean flag")
	assert.Equal(t, "false", flag.DefValue)

	require.NotNil(t, runCmd.Flags().Lookup("timeout"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "health"} {
		assert.True(t, names[name], "expected runs subcommand %q", name)
	}
}

func TestExitCode(t *testing.T) {
	failure := &pipeline.StepFailure{Step: "transform", Status: 2, Message: "missing column X"}

	assert.Equal(t, 2, exitCode(failure))
	assert.Equal(t, 2, exitCode(eris.Wrap(failure, "run")))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 1, exitCode(&pipeline.StepFailure{Step: "load", Status: -1}))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("12345678-aaaa-bbbb"))
	assert.Equal(t, "short", truncateID("short"))
}

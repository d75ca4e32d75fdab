package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscope/taskscope/internal/log"
)

func TestRootFSPath(t *testing.T) {
	tests := map[string]struct {
		path    string
		expPath string
	}{
		"Absolute paths should lose the leading slash.": {
			path:    "/tmp/snapshots.yaml",
			expPath: "tmp/snapshots.yaml",
		},
		"Paths should be cleaned.": {
			path:    "/tmp/../etc/./taskscope.yaml",
			expPath: "etc/taskscope.yaml",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := rootFSPath(test.path)
			require.NoError(t, err)
			assert.Equal(t, test.expPath, got)
		})
	}
}

func TestRootCommandReadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))

	tests := map[string]struct {
		path    string
		expData string
	}{
		"An empty path should read stdin.": {
			path:    "",
			expData: `{"from":"stdin"}`,
		},
		"A dash should read stdin.": {
			path:    "-",
			expData: `{"from":"stdin"}`,
		},
		"A path should read the file.": {
			path:    path,
			expData: `{"from":"file"}`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			root := &RootCommand{Stdin: strings.NewReader(`{"from":"stdin"}`)}
			got, err := root.ReadInput(test.path)
			require.NoError(t, err)
			assert.Equal(t, test.expData, string(got))
		})
	}
}

func TestRootCommandSanitizer(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sanitize.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("key_patterns: [\"internal_id\"]\n"), 0o600))
	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("max_depth: -1\n"), 0o600))

	tests := map[string]struct {
		path      string
		payload   map[string]any
		expResult any
		expErr    bool
	}{
		"A missing config should use the default rules.": {
			path:      filepath.Join(dir, "missing.yaml"),
			payload:   map[string]any{"internal_id": "abcdefghijkl", "token": "abcdefghijkl"},
			expResult: map[string]any{"internal_id": "abcdefghijkl", "token": "abcd...ijkl (len=12)"},
		},
		"A config should extend the default rules.": {
			path:      cfgPath,
			payload:   map[string]any{"internal_id": "abcdefghijkl", "token": "abcdefghijkl"},
			expResult: map[string]any{"internal_id": "abcd...ijkl (len=12)", "token": "abcd...ijkl (len=12)"},
		},
		"An invalid config should fail.": {
			path:   badPath,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			root := &RootCommand{SanitizeConfig: test.path, Logger: log.Noop}
			s, err := root.Sanitizer(context.Background())
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expResult, s.Sanitize(test.payload))
		})
	}
}

func TestRootCommandPrinter(t *testing.T) {
	var buf bytes.Buffer
	root := &RootCommand{Stdout: &buf}

	require.NoError(t, root.Printer(formatJSON).PrintMessage("hello"))
	assert.JSONEq(t, `{"message":"hello"}`, buf.String())

	buf.Reset()
	require.NoError(t, root.Printer(formatTable).PrintMessage("hello"))
	assert.Equal(t, "hello\n", buf.String())
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codescribe/config"
	"codescribe/internal/core/domain"
	"codescribe/internal/core/ports"
	"codescribe/pkg/errors"
	"codescribe/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct{}

func (fakeGenerator) GenerateDocs(ctx context.Context, input domain.CodeInput) (*domain.Document, error) {
	if strings.Contains(input.Code, "bad") {
		return nil, errors.NewNoDocumentationError(nil)
	}
	return &domain.Document{Documentation: "# Docs\n\n" + strings.TrimSpace(input.Code)}, nil
}

func newTestCLI(t *testing.T) (*CLI, *[]*config.Config) {
	t.Helper()
	manager := config.NewManager("test")
	require.NoError(t, manager.LoadFromEnv())

	var seen []*config.Config
	c := NewCLI(manager, "1.2.3").WithGeneratorFactory(func(cfg *config.Config, log *logger.Logger) (ports.DocumentationService, error) {
		seen = append(seen, cfg)
		return fakeGenerator{}, nil
	})
	return c, &seen
}

func run(c *CLI, stdin string, args ...string) (string, string, error) {
	root := c.GetRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestGenerateLocal(t *testing.T) {
	t.Run("stdin to stdout", func(t *testing.T) {
		c, _ := newTestCLI(t)
		out, _, err := run(c, "x = 1\n", "generate", "-")
		require.NoError(t, err)
		assert.Equal(t, "# Docs\n\nx = 1\n", out)
	})

	t.Run("flags override configuration", func(t *testing.T) {
		c, seen := newTestCLI(t)
		path := writeSource(t, t.TempDir(), "calc.py", "def add(a, b):\n    return a + b\n")

		_, _, err := run(c, "", "generate", path, "--chunk-size", "500", "--concurrency", "3", "--max-tokens", "800")
		require.NoError(t, err)
		require.Len(t, *seen, 1)
		cfg := (*seen)[0]
		assert.Equal(t, 500, cfg.Generator.ChunkSize)
		assert.Equal(t, 3, cfg.Generator.Concurrency)
		assert.Equal(t, 800, cfg.Completion.MaxTokens)
	})

	t.Run("html output file", func(t *testing.T) {
		c, _ := newTestCLI(t)
		dir := t.TempDir()
		path := writeSource(t, dir, "calc.py", "print(1)\n")
		outPath := filepath.Join(dir, "calc.html")

		_, stderr, err := run(c, "", "generate", path, "--format", "html", "--output", outPath)
		require.NoError(t, err)
		assert.Contains(t, stderr, outPath)

		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<title>calc.py</title>")
		assert.Contains(t, string(data), `<h1 id="docs">Docs</h1>`)
	})

	t.Run("several inputs into a directory", func(t *testing.T) {
		c, _ := newTestCLI(t)
		dir := t.TempDir()
		a := writeSource(t, dir, "a.go", "package a\n")
		b := writeSource(t, dir, "b.go", "package b\n")
		outDir := filepath.Join(dir, "docs")

		_, _, err := run(c, "", "generate", a, b, "-o", outDir)
		require.NoError(t, err)

		for name, want := range map[string]string{"a.md": "package a", "b.md": "package b"} {
			data, err := os.ReadFile(filepath.Join(outDir, name))
			require.NoError(t, err)
			assert.Contains(t, string(data), want)
		}
	})

	t.Run("failed input is reported", func(t *testing.T) {
		c, _ := newTestCLI(t)
		dir := t.TempDir()
		good := writeSource(t, dir, "good.py", "ok\n")
		bad := writeSource(t, dir, "bad.py", "bad\n")

		out, stderr, err := run(c, "", "generate", good, bad)
		require.Error(t, err)
		assert.Equal(t, "1 of 2 inputs failed", err.Error())
		assert.Contains(t, out, "==> good.py <==")
		assert.Contains(t, stderr, "bad.py: ⚠️ Failed to generate documentation for any code chunks")
	})

	t.Run("unsupported format", func(t *testing.T) {
		c, _ := newTestCLI(t)
		_, _, err := run(c, "x", "generate", "-", "--format", "pdf")
		assert.ErrorContains(t, err, "unsupported format")
	})

	t.Run("binary input rejected", func(t *testing.T) {
		c, seen := newTestCLI(t)
		path := writeSource(t, t.TempDir(), "logo.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

		_, _, err := run(c, "", "generate", path)
		assert.ErrorContains(t, err, "not a text file")
		assert.Empty(t, *seen)
	})
}

func TestGenerateRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["code"] == "" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"⚠️ Failed to generate documentation for any code chunks"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"documentation": "remote:" + body["code"]})
	}))
	defer server.Close()

	t.Run("success", func(t *testing.T) {
		c, seen := newTestCLI(t)
		out, stderr, err := run(c, "y = 2", "generate", "-", "--server", server.URL, "--chunk-size", "10")
		require.NoError(t, err)
		assert.Equal(t, "remote:y = 2\n", out)
		assert.Contains(t, stderr, "--chunk-size is ignored with --server")
		assert.Empty(t, *seen)
	})

	t.Run("server error detail", func(t *testing.T) {
		c, _ := newTestCLI(t)
		_, stderr, err := run(c, "", "generate", "-", "--server", server.URL)
		require.Error(t, err)
		assert.Contains(t, stderr, "stdin: ⚠️ Failed to generate documentation for any code chunks")
	})
}

func TestChunkCommand(t *testing.T) {
	c, _ := newTestCLI(t)

	out, _, err := run(c, strings.Repeat("a", 25), "chunk", "-", "--chunk-size", "10", "--show")
	require.NoError(t, err)
	assert.Contains(t, out, "stdin: 25 characters, 3 chunks of up to 10")
	assert.Contains(t, out, "--- chunk 3/3 (5 characters) ---\naaaaa\n")
}

func TestHealthCommand(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.Write([]byte(`{"status":"healthy","version":"1.2.3"}`))
		}))
		defer server.Close()

		c, _ := newTestCLI(t)
		out, _, err := run(c, "", "health", "--server", server.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "✅ Server is healthy")
	})

	t.Run("degraded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded"}`))
		}))
		defer server.Close()

		c, _ := newTestCLI(t)
		out, _, err := run(c, "", "health", "--server", server.URL)
		assert.EqualError(t, err, "server is degraded")
		assert.Contains(t, out, "Server status: degraded")
	})
}

func TestVersionCommand(t *testing.T) {
	c, _ := newTestCLI(t)
	out, _, err := run(c, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "CodeScribe v1.2.3\n", out)
}

func TestConfigExport(t *testing.T) {
	c, _ := newTestCLI(t)
	path := filepath.Join(t.TempDir(), "codescribe.yaml")

	out, _, err := run(c, "", "config", "export", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.Generator.ChunkSize)
}

func TestConfigExportDefaultPath(t *testing.T) {
	c, _ := newTestCLI(t)
	dir := t.TempDir()
	t.Chdir(dir)

	out, _, err := run(c, "", "config", "export")
	require.NoError(t, err)
	assert.Contains(t, out, DefaultConfigFile)

	cfg, err := config.LoadFile(filepath.Join(dir, DefaultConfigFile))
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.Generator.ChunkSize)

	_, _, err = run(c, "", "config", "export", "a.yaml", "b.yaml")
	assert.Error(t, err)
}

func TestLocalGenerator(t *testing.T) {
	cfg := config.Default()
	gen, err := LocalGenerator(cfg, logger.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, gen)
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codescribe/chunking"
	"codescribe/cmd/client"
	"codescribe/config"
	"codescribe/internal/adapters/secondary/completion"
	"codescribe/internal/core/domain"
	"codescribe/internal/core/ports"
	"codescribe/internal/core/services"
	"codescribe/pkg/errors"
	"codescribe/pkg/logger"
	"codescribe/prompt"
	"codescribe/utils"

	"github.com/spf13/cobra"
)

const (
	FormatText = "text"
	FormatHTML = "html"

	DefaultServer     = "http://localhost:8000"
	DefaultConfigFile = "codescribe.yaml"
)

// GeneratorFactory builds the in-process generator used when no server is given
type GeneratorFactory func(cfg *config.Config, log *logger.Logger) (ports.DocumentationService, error)

// CLI represents the command line interface
type CLI struct {
	manager      *config.Manager
	newGenerator GeneratorFactory
	version      string
}

// NewCLI creates a new CLI instance
func NewCLI(manager *config.Manager, version string) *CLI {
	return &CLI{
		manager:      manager,
		newGenerator: LocalGenerator,
		version:      version,
	}
}

// WithGeneratorFactory replaces the in-process generator constructor
func (cli *CLI) WithGeneratorFactory(f GeneratorFactory) *CLI {
	cli.newGenerator = f
	return cli
}

// LocalGenerator wires the documentation service against the configured completion API
func LocalGenerator(cfg *config.Config, log *logger.Logger) (ports.DocumentationService, error) {
	client := completion.NewGuardedClient(completion.NewClient(cfg.CompletionClientConfig()), cfg.CompletionGuardConfig(), *log.Logger)
	return services.NewDocumentationService(
		client,
		chunking.NewService(),
		prompt.NewBuilder(),
		nil, // no metrics endpoint in the CLI
		log,
		cfg.GeneratorOptions(),
	)
}

// GetRootCommand returns the root cobra command
func (cli *CLI) GetRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codescribe",
		Short: "CodeScribe - generate documentation for source code",
		Long: `CodeScribe splits source code into chunks, asks a hosted language model to
document each chunk and joins the results into one Markdown document.

Documentation can be generated in-process using the configured completion API,
or through a running CodeScribe server with --server.`,
		Version:       cli.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log generation progress to stderr")

	rootCmd.AddCommand(cli.getGenerateCommand())
	rootCmd.AddCommand(cli.getChunkCommand())
	rootCmd.AddCommand(cli.getHealthCommand())
	rootCmd.AddCommand(cli.getConfigCommand())
	rootCmd.AddCommand(cli.getVersionCommand())

	return rootCmd
}

func (cli *CLI) getGenerateCommand() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate [file...|-]",
		Short: "Generate documentation for source files",
		Long: `Generate documentation for one or more source files, or for stdin with "-".

With several inputs and --output, the output is treated as a directory and one
document per input is written into it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: cli.generateDocs,
	}
	generateCmd.Flags().String("server", "", "CodeScribe server URL (default: generate in-process)")
	generateCmd.Flags().StringP("output", "o", "", "Output file, or directory for several inputs (default: stdout)")
	generateCmd.Flags().StringP("format", "f", FormatText, "Output format (text, html)")
	generateCmd.Flags().Int("chunk-size", 0, "Characters per chunk (in-process only)")
	generateCmd.Flags().Int("concurrency", 0, "Concurrent completion calls per file (in-process only)")
	generateCmd.Flags().Int("max-tokens", 0, "Token limit per completion (in-process only)")
	generateCmd.Flags().Int("parallel", 1, "Files documented at once through --server")
	generateCmd.Flags().Duration("timeout", client.DefaultTimeout, "Request timeout with --server")

	return generateCmd
}

func (cli *CLI) getChunkCommand() *cobra.Command {
	chunkCmd := &cobra.Command{
		Use:   "chunk [file|-]",
		Short: "Show how a file would be split into chunks",
		Long:  "Split a file the same way generation does, without calling the completion API",
		Args:  cobra.ExactArgs(1),
		RunE:  cli.chunkFile,
	}
	chunkCmd.Flags().Int("chunk-size", 0, "Characters per chunk (default: configured chunk size)")
	chunkCmd.Flags().Bool("show", false, "Print every chunk")

	return chunkCmd
}

func (cli *CLI) getHealthCommand() *cobra.Command {
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Long:  "Fetch the health report of a running CodeScribe server",
		Args:  cobra.NoArgs,
		RunE:  cli.checkHealth,
	}
	healthCmd.Flags().String("server", DefaultServer, "CodeScribe server URL")

	return healthCmd
}

func (cli *CLI) getConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	exportCmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Write the effective configuration as YAML (secrets omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := cli.manager.ExportToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Configuration written to %s\n", path)
			return nil
		},
	}

	configCmd.AddCommand(exportCmd)
	return configCmd
}

func (cli *CLI) getVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CodeScribe v%s\n", cli.version)
		},
	}
}

// generateDocs handles the generate command
func (cli *CLI) generateDocs(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	output, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	if format != FormatText && format != FormatHTML {
		return fmt.Errorf("unsupported format %q (use %s or %s)", format, FormatText, FormatHTML)
	}

	sources := make([]client.SourceFile, 0, len(args))
	for _, arg := range args {
		code, err := utils.ReadSource(arg, cmd.InOrStdin())
		if err != nil {
			return err
		}
		sources = append(sources, client.SourceFile{Name: sourceName(arg), Code: code})
	}

	var (
		results []client.BatchResult
		err     error
	)
	if server != "" {
		results, err = cli.generateRemote(cmd, server, sources)
	} else {
		results, err = cli.generateLocal(cmd, sources)
	}
	if err != nil {
		return err
	}

	return writeResults(cmd, results, output, format)
}

func (cli *CLI) generateRemote(cmd *cobra.Command, server string, sources []client.SourceFile) ([]client.BatchResult, error) {
	for _, name := range []string{"chunk-size", "concurrency", "max-tokens"} {
		if cmd.Flags().Changed(name) {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  --%s is ignored with --server\n", name)
		}
	}
	parallel, _ := cmd.Flags().GetInt("parallel")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	c := client.NewClient(client.Config{BaseURL: server, Timeout: timeout})
	return c.BatchGenerate(cmd.Context(), sources, parallel), nil
}

func (cli *CLI) generateLocal(cmd *cobra.Command, sources []client.SourceFile) ([]client.BatchResult, error) {
	cfg := cli.manager.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}

	if v, _ := cmd.Flags().GetInt("chunk-size"); v > 0 {
		cfg.Generator.ChunkSize = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		cfg.Generator.Concurrency = v
	}
	if v, _ := cmd.Flags().GetInt("max-tokens"); v > 0 {
		cfg.Completion.MaxTokens = v
	}
	if cfg.Completion.APIKey == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "⚠️  OPENAI_API_KEY is not set; the completion API will likely reject requests")
	}

	log, err := cliLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	generator, err := cli.newGenerator(cfg, log)
	if err != nil {
		return nil, err
	}

	results := make([]client.BatchResult, 0, len(sources))
	for _, src := range sources {
		doc, err := generator.GenerateDocs(cmd.Context(), domain.CodeInput{Code: src.Code})
		result := client.BatchResult{Name: src.Name, Err: err}
		if err == nil {
			result.Documentation = doc.Documentation
		}
		results = append(results, result)
	}
	return results, nil
}

// chunkFile handles the chunk command
func (cli *CLI) chunkFile(cmd *cobra.Command, args []string) error {
	code, err := utils.ReadSource(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	size, _ := cmd.Flags().GetInt("chunk-size")
	if size <= 0 {
		size = chunking.DefaultChunkSize
		if cfg := cli.manager.GetConfig(); cfg != nil {
			size = cfg.Generator.ChunkSize
		}
	}

	result, err := chunking.NewService().Analyze(code, size)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📄 %s: %d characters, %d chunks of up to %d (average %.0f)\n",
		sourceName(args[0]), result.OriginalSize, result.TotalChunks, size, result.AverageSize)

	if show, _ := cmd.Flags().GetBool("show"); show {
		for _, chunk := range result.Chunks {
			fmt.Fprintf(out, "\n--- chunk %d/%d (%d characters) ---\n%s\n", chunk.Position(), chunk.Total, chunk.Size, chunk.Content)
		}
	}
	return nil
}

// checkHealth handles the health command
func (cli *CLI) checkHealth(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🔍 Checking server health...")

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	report, err := client.NewClient(client.Config{BaseURL: server}).Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to get health status: %w", err)
	}

	healthJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format health status: %w", err)
	}
	fmt.Fprintf(out, "\n%s\n", healthJSON)

	if report.Status == "healthy" {
		fmt.Fprintf(out, "\n✅ Server is healthy\n")
		return nil
	}
	fmt.Fprintf(out, "\n⚠️  Server status: %s\n", report.Status)
	return fmt.Errorf("server is %s", report.Status)
}

// writeResults prints or writes every successful document and reports failures
func writeResults(cmd *cobra.Command, results []client.BatchResult, output, format string) error {
	multi := len(results) > 1
	if multi && output != "" {
		if err := os.MkdirAll(output, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", output, err)
		}
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "❌ %s: %s\n", r.Name, errorDetail(r.Err))
			continue
		}

		content := r.Documentation
		if format == FormatHTML {
			html, err := utils.MarkdownToHTML(r.Name, content)
			if err != nil {
				return err
			}
			content = html
		}

		switch {
		case output == "":
			if multi {
				fmt.Fprintf(cmd.OutOrStdout(), "==> %s <==\n", r.Name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
		case multi:
			path := filepath.Join(output, outputName(r.Name, format))
			if err := writeFile(path, content); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✅ %s -> %s\n", r.Name, path)
		default:
			if err := writeFile(output, content); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✅ Documentation written to %s\n", output)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

func cliLogger(cmd *cobra.Command, cfg *config.Config) (*logger.Logger, error) {
	logCfg := cfg.LoggerConfig()
	logCfg.Format = "console"
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		logCfg.Level = "warn"
	}
	return logger.NewWithWriter(logCfg, cmd.ErrOrStderr())
}

// errorDetail prefers the caller-facing message of typed errors
func errorDetail(err error) string {
	if apiErr, ok := err.(*client.APIError); ok {
		return apiErr.Detail
	}
	if appErr, ok := errors.As(err); ok {
		return appErr.Detail()
	}
	return err.Error()
}

func writeFile(path string, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func sourceName(arg string) string {
	if arg == utils.StdinPath {
		return "stdin"
	}
	return filepath.Base(arg)
}

func outputName(name, format string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if format == FormatHTML {
		return base + ".html"
	}
	return base + ".md"
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/bizassist/internal/api"
	"github.com/kalambet/bizassist/internal/assistant"
	"github.com/kalambet/bizassist/internal/config"
	"github.com/kalambet/bizassist/internal/datastore"
	"github.com/kalambet/bizassist/internal/knowledge"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask the running assistant a question",
	Long: `Ask the running assistant a question.

Examples:
  bizassist ask --system "You help a bike shop." "Which products are low on stock?"
  bizassist ask --system "You are a sales analyst." --company-data --tables sales,customers "Who bought most last month?"
  bizassist ask --system "You answer policy questions." --knowledge-file ./policies.pdf "Can I return an opened item?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildAskRequest(cmd, args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.ask(cmd.Context(), req)
		if err != nil {
			return err
		}

		return printAnswer(cmd.OutOrStdout(), resp)
	},
}

func addAskFlags(cmd *cobra.Command) {
	cmd.Flags().String("system", "", "system prompt for the assistant (required)")
	cmd.Flags().String("knowledge", "", "custom knowledge text")
	cmd.Flags().String("knowledge-file", "", "file with custom knowledge (.txt, .md, .html, .pdf)")
	cmd.Flags().String("tables", "", "comma-separated authorized tables, in order")
	cmd.Flags().Bool("company-data", false, "include a snapshot of the authorized tables")
	cmd.Flags().Float64("temperature", assistant.DefaultTemperature, "sampling temperature")
	cmd.Flags().Int("max-tokens", assistant.DefaultMaxTokens, "maximum completion tokens")
}

func init() {
	addAskFlags(askCmd)
}

// buildAskRequest turns ask flags and arguments into an assistant request.
// Temperature and max tokens are only sent when set explicitly.
func buildAskRequest(cmd *cobra.Command, args []string) (assistant.Request, error) {
	flags := cmd.Flags()
	system, _ := flags.GetString("system")
	knowledgeText, _ := flags.GetString("knowledge")
	knowledgeFile, _ := flags.GetString("knowledge-file")
	tablesStr, _ := flags.GetString("tables")
	useCompanyData, _ := flags.GetBool("company-data")

	if system == "" {
		return assistant.Request{}, fmt.Errorf("--system is required")
	}

	if knowledgeFile != "" {
		text, err := knowledge.Load(knowledgeFile)
		if err != nil {
			return assistant.Request{}, err
		}
		if knowledgeText != "" {
			knowledgeText += "\n\n"
		}
		knowledgeText += text
	}

	req := assistant.Request{
		Message: strings.Join(args, " "),
		Config: assistant.Config{
			SystemPrompt:     system,
			CustomKnowledge:  knowledgeText,
			UseCompanyData:   useCompanyData,
			AuthorizedTables: splitList(tablesStr),
		},
	}

	if flags.Changed("temperature") {
		t, _ := flags.GetFloat64("temperature")
		req.Config.Temperature = &t
	}
	if flags.Changed("max-tokens") {
		n, _ := flags.GetInt("max-tokens")
		req.Config.MaxTokens = &n
	}

	return req, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printAnswer(w io.Writer, resp assistant.Response) error {
	fmt.Fprintln(w, resp.Response)
	if len(resp.Usage) > 0 && string(resp.Usage) != "null" {
		fmt.Fprintf(w, "usage: %s\n", string(resp.Usage))
	}
	return nil
}

// --- tables ---

var tablesCmd = &cobra.Command{
	Use:   "tables [name]",
	Short: "List datastore tables or preview one",
	Long: `List the tables of the configured datastore, or print the first rows of one.

Examples:
  bizassist tables
  bizassist tables customers --limit 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openDatastore(cfg)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("no datastore configured (datastore.driver is none)")
		}
		defer store.Close()

		if len(args) == 0 {
			lister, ok := store.(datastore.TableLister)
			if !ok {
				return fmt.Errorf("the %s datastore cannot list tables; pass a table name", cfg.Datastore.Driver)
			}
			return listTables(cmd.Context(), cmd.OutOrStdout(), lister)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		return previewTable(cmd.Context(), cmd.OutOrStdout(), store, args[0], limit)
	},
}

func init() {
	tablesCmd.Flags().Int("limit", assistant.SnapshotRowLimit, "maximum rows to preview")
}

func listTables(ctx context.Context, w io.Writer, lister datastore.TableLister) error {
	tables, err := lister.Tables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		printWarning("no tables found")
		return nil
	}
	for _, t := range tables {
		fmt.Fprintln(w, t)
	}
	return nil
}

func previewTable(ctx context.Context, w io.Writer, rows datastore.RowReader, table string, limit int) error {
	if limit <= 0 {
		limit = assistant.SnapshotRowLimit
	}
	data, err := rows.Rows(ctx, table, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assistant to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// stdout carries the protocol; logs go to stderr.
		logger := newLogger(cfg)
		slog.SetDefault(logger)

		rt, err := openRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Assistant: rt.svc,
			Tables:    rt.tables(),
			Rows:      rt.rows(),
			Version:   version,
		})

		logger.Info("MCP server started (stdio transport)")
		if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the server is running and how it is configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if err := client.health(cmd.Context()); err != nil {
			printWarning("server: %v", err)
		} else {
			printSuccess("server running at %s", client.baseURL)
		}

		printStatus("model", "%s", cfg.Upstream.Model)
		printStatus("upstream", "%s", cfg.Upstream.BaseURL)
		printStatus("datastore", "%s", cfg.Datastore.Driver)
		if cfg.Upstream.OpenAIAPIKey == "" {
			printStatus("api key", "%s", colorize(colorRed, "missing"))
		} else {
			printStatus("api key", "%s", colorize(colorGreen, "set"))
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

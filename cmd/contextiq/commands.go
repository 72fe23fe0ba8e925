package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contextiq/internal/domain"
	"contextiq/internal/httpapi"
	"contextiq/internal/tui"
)

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func ingest(ctx context.Context, a *app, files []string) (*domain.IngestReport, error) {
	report, err := a.svc.IngestFiles(ctx, files)
	if err != nil {
		return report, fmt.Errorf("ingest failed: %w", err)
	}
	if report.ChunksAdded == 0 {
		var problems []string
		for _, f := range report.Files {
			if f.Error != "" {
				problems = append(problems, f.Path+": "+f.Error)
			}
		}
		return report, fmt.Errorf("no chunks were indexed: %s", strings.Join(problems, "; "))
	}
	return report, nil
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Extract, chunk and index files, then print the ingestion report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, "")
			if err != nil {
				return err
			}
			defer a.close()
			report, err := a.svc.IngestFiles(ctx, args)
			if report != nil {
				if perr := printJSON(cmd, report); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

func newAskCmd() *cobra.Command {
	var (
		question string
		model    string
		topK     int
	)
	cmd := &cobra.Command{
		Use:   "ask FILE... --question QUESTION",
		Short: "Ingest files and answer one question as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" {
				return errors.New("--question is required")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, "")
			if err != nil {
				return err
			}
			defer a.close()
			report, err := ingest(ctx, a, args)
			if err != nil {
				if report != nil {
					_ = printJSON(cmd, report)
				}
				return err
			}
			answer, err := a.svc.Answer(ctx, domain.AskRequest{Query: question, Model: model, TopK: topK})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"query": question, "answer": answer})
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to answer")
	cmd.Flags().StringVarP(&model, "model", "m", "", "generation provider (default from config)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "chunks to retrieve (default from config)")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		query string
		topK  int
	)
	cmd := &cobra.Command{
		Use:   "search FILE... --query QUERY",
		Short: "Ingest files and print the most similar chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query) == "" {
				return errors.New("--query is required")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, "")
			if err != nil {
				return err
			}
			defer a.close()
			if _, err := ingest(ctx, a, args); err != nil {
				return err
			}
			results, err := a.svc.Search(ctx, query, topK)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				cmd.Println("No results found.")
				return nil
			}
			for i, r := range results {
				page := "-"
				if r.Chunk.Meta.Page != nil {
					page = fmt.Sprint(*r.Chunk.Meta.Page)
				}
				cmd.Printf("[%d] %.3f  %s  page %s\n", i+1, r.Score, r.Chunk.Meta.DocumentName, page)
				cmd.Println("    " + strings.Join(strings.Fields(r.Chunk.Text), " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search text")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "results to return (default from config)")
	return cmd
}

func newChatCmd() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "chat FILE...",
		Short: "Ingest files and open the interactive question view",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, logFile)
			if err != nil {
				return err
			}
			defer a.close()
			report, err := ingest(ctx, a, args)
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d files, %d chunks indexed", len(report.Files), report.ChunksAdded)
			timeout := time.Duration(a.cfg.Retrieval.AnswerTimeoutSecs) * time.Second
			m := tui.New(a.svc, summary, a.svc.DefaultModel(), timeout)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "contextiq.log", "log destination while the UI owns the terminal")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, "")
			if err != nil {
				return err
			}
			defer a.close()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if !a.cfg.Log.Development {
				gin.SetMode(gin.ReleaseMode)
			}
			router := httpapi.NewRouter(httpapi.NewHandler(a.svc, a.cfg.Ingest.UploadDir), a.metrics, a.log.Named("http"))
			srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("listening", zap.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

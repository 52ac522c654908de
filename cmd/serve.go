package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abhisek/boardprep/internal/chathistory"
	"github.com/abhisek/boardprep/internal/review"
	"github.com/abhisek/boardprep/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tutoring conversations and chats over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			rt.cfg.Server.Addr = addr
		}

		provider, err := rt.provider(ctx)
		if err != nil {
			return err
		}
		questions, err := rt.questions(ctx)
		if err != nil {
			return err
		}
		snapshots, err := rt.snapshots(ctx)
		if err != nil {
			return err
		}

		chatCfg := rt.chatConfig()
		srv := server.New(server.Deps{
			Questions:    questions,
			Answers:      rt.store.AnswerRepo(),
			Orchestrator: rt.orchestrator(provider),
			Snapshots:    snapshots,
			Drafter:      review.NewDrafter(provider, rt.store.ReviewRepo(), review.DefaultConfig(), rt.log),
			NewChat: func() *chathistory.History {
				return chathistory.New(provider, chatCfg, rt.log)
			},
			ChatSystemPrompt: rt.chatSystemPrompt(),
			IdleTimeout:      rt.cfg.Server.IdleTimeout,
			Log:              rt.log,
		})
		defer srv.Wait()

		// No WriteTimeout: replies stream for as long as the model talks.
		httpSrv := &http.Server{
			Addr:              rt.cfg.Server.Addr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			rt.log.Info("server listening", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		case <-ctx.Done():
		}
		stop()

		rt.log.Info("shutting down", "timeout", rt.cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		rt.log.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

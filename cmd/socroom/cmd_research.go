package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"socroom/internal/research"
)

// researchCmd runs a one-shot lookup against every configured backend, for
// checking research wiring without opening the room.
var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Run a one-shot research query against the configured backends",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	var gateways []research.Gateway
	if researchURL != "" {
		gw, err := research.NewHTTPGateway(researchURL, research.WithAPIKey(researchKey))
		if err != nil {
			return err
		}
		gateways = append(gateways, gw)
	}
	if geminiKey != "" {
		gw, err := research.NewGeminiGateway(cmd.Context(), geminiKey, "")
		if err != nil {
			return err
		}
		gateways = append(gateways, gw)
	}
	if len(gateways) == 0 {
		return fmt.Errorf("no research backend configured (--research-url or --gemini-key)")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 45*time.Second)
	defer cancel()

	results := make([]string, len(gateways))
	g, gctx := errgroup.WithContext(ctx)
	for i, gw := range gateways {
		g.Go(func() error {
			start := time.Now()
			out, err := gw.Query(gctx, query, "")
			if err != nil {
				logger.Warn("backend failed",
					zap.String("backend", gw.Name()),
					zap.Error(err))
				results[i] = fmt.Sprintf("(%s failed: %v)", gw.Name(), err)
				return nil // one failure should not cancel the others
			}
			logger.Debug("backend answered",
				zap.String("backend", gw.Name()),
				zap.Duration("took", time.Since(start)))
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, gw := range gateways {
		fmt.Printf("=== %s ===\n%s\n\n", gw.Name(), results[i])
	}
	return nil
}

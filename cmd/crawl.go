package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/nga-crawler/internal/api"
)

// newCrawlCmd prints the posts of one thread as JSON.
func newCrawlCmd() *cobra.Command {
	var maxComments int
	cmd := &cobra.Command{
		Use:   "crawl <thread-url>",
		Short: "Collect the posts of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res := appInstance.Threads().Crawl(cmd.Context(), args[0], maxComments)
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("crawl failed: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxComments, "max-comments", api.DefaultMaxComments, "maximum posts to return")
	return cmd
}

// newTopicsCmd prints the topic rows of a board listing as JSON.
func newTopicsCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "topics <board-url>",
		Short: "List the topics of a board page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res := appInstance.Topics().List(cmd.Context(), args[0], topK)
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("topic listing failed: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "topk", api.DefaultTopicTopK, "maximum topics to return; 0 returns all")
	return cmd
}

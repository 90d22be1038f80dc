package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/client"
	"github.com/sparklab/sparklab-api/pkg/handlers"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Submit a generation",
	Long: `Submit a prompt to an engine. The generation is queued and completed
asynchronously; pass --wait to poll until it finishes.

Examples:
  sparkctl generate --engine image_engine_a --type image --prompt "a cat" --output-count 3 --wait
  sparkctl generate --engine video_engine_a --type video --prompt "waves" --aspect-ratio 16:9`,
	RunE: runGenerate,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a generation",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your generations, newest first",
	RunE:  runList,
}

func init() {
	generateCmd.Flags().String("engine", "", "engine key")
	generateCmd.Flags().String("type", "image", "generation type (image, video)")
	generateCmd.Flags().String("prompt", "", "prompt text")
	generateCmd.Flags().String("aspect-ratio", "", "aspect ratio, e.g. 16:9")
	generateCmd.Flags().String("style", "", "style preset")
	generateCmd.Flags().Int("steps", 0, "sampling steps")
	generateCmd.Flags().Float64("prompt-strength", 0, "prompt strength between 0 and 1")
	generateCmd.Flags().Int("seed", 0, "seed")
	generateCmd.Flags().String("reference-image", "", "reference image URL")
	generateCmd.Flags().Int("output-count", 0, "number of images")
	generateCmd.Flags().Bool("wait", false, "poll until the generation finishes")
	generateCmd.Flags().Int("max-attempts", client.DefaultPollMaxAttempts, "poll attempts before giving up")
	_ = generateCmd.MarkFlagRequired("engine")
	_ = generateCmd.MarkFlagRequired("prompt")

	listCmd.Flags().Int("limit", 20, "page size")
	listCmd.Flags().Int("offset", 0, "page offset")

	rootCmd.AddCommand(generateCmd, getCmd, listCmd)
}

// buildParams collects the advanced parameter flags the user actually set.
func buildParams(cmd *cobra.Command) (json.RawMessage, error) {
	params := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("aspect-ratio") {
		v, _ := flags.GetString("aspect-ratio")
		params["aspectRatio"] = v
	}
	if flags.Changed("style") {
		v, _ := flags.GetString("style")
		params["style"] = v
	}
	if flags.Changed("steps") {
		v, _ := flags.GetInt("steps")
		params["steps"] = v
	}
	if flags.Changed("prompt-strength") {
		v, _ := flags.GetFloat64("prompt-strength")
		params["promptStrength"] = v
	}
	if flags.Changed("seed") {
		v, _ := flags.GetInt("seed")
		params["seed"] = v
	}
	if flags.Changed("reference-image") {
		v, _ := flags.GetString("reference-image")
		params["referenceImageUrl"] = v
	}
	if flags.Changed("output-count") {
		v, _ := flags.GetInt("output-count")
		params["outputCount"] = v
	}
	if len(params) == 0 {
		return nil, nil
	}
	return json.Marshal(params)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}
	c, err := getClient()
	if err != nil {
		return err
	}

	params, err := buildParams(cmd)
	if err != nil {
		return err
	}
	engineKey, _ := cmd.Flags().GetString("engine")
	typ, _ := cmd.Flags().GetString("type")
	prompt, _ := cmd.Flags().GetString("prompt")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	created, err := c.CreateGeneration(ctx, handlers.CreateGenerationRequest{
		EngineKey: engineKey,
		Type:      typ,
		Prompt:    prompt,
		Params:    params,
	})
	if err != nil {
		printError(err)
		return err
	}

	wait, _ := cmd.Flags().GetBool("wait")
	if !wait {
		if jsonOut {
			return printJSON(created)
		}
		fmt.Printf("Generation %s is %s. %s\n", created.ID, created.Status, created.Message)
		return nil
	}

	maxAttempts, _ := cmd.Flags().GetInt("max-attempts")
	fmt.Fprintf(os.Stderr, "Waiting for generation %s...\n", created.ID)
	done, err := client.NewPoller(c).WithMaxAttempts(maxAttempts).Wait(ctx, created.ID)
	if err != nil {
		if errors.Is(err, client.ErrPollTimeout) {
			fmt.Fprintf(os.Stderr, "Generation %s is taking longer than expected. Check back later with 'sparkctl get %s'.\n", created.ID, created.ID)
		}
		return err
	}
	return printGeneration(done)
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid generation id %q", args[0])
	}
	c, err := getClient()
	if err != nil {
		return err
	}
	g, err := c.GetGeneration(context.Background(), id)
	if err != nil {
		printError(err)
		return err
	}
	return printGeneration(g)
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	page, err := c.ListGenerations(context.Background(), limit, offset)
	if err != nil {
		printError(err)
		return err
	}
	if jsonOut {
		return printJSON(page)
	}
	if len(page.Items) == 0 {
		fmt.Println("No generations found")
		return nil
	}

	w := newTable()
	fmt.Fprintln(w, "ID\tENGINE\tTYPE\tSTATUS\tCREATED\tPROMPT")
	for _, g := range page.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			g.ID, g.Engine, g.Type, g.Status, g.CreatedAt.Format("2006-01-02 15:04"), truncate(g.Prompt, 40))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if page.Pagination.HasMore {
		fmt.Printf("\nShowing %d of %d. Use --offset %d for more.\n",
			len(page.Items), page.Pagination.Total, page.Pagination.Offset+page.Pagination.Limit)
	}
	return nil
}

func printGeneration(g *handlers.GenerationResponse) error {
	if jsonOut {
		return printJSON(g)
	}
	fmt.Printf("ID:      %s\n", g.ID)
	fmt.Printf("Engine:  %s (%s)\n", g.Engine, g.Type)
	fmt.Printf("Status:  %s\n", g.Status)
	fmt.Printf("Prompt:  %s\n", g.Prompt)
	if g.URL != nil {
		fmt.Printf("URL:     %s\n", *g.URL)
	}
	if g.Error != nil {
		fmt.Printf("Error:   %s\n", *g.Error)
	}
	var meta struct {
		URLs []string `json:"urls"`
	}
	if len(g.Meta) > 0 && json.Unmarshal(g.Meta, &meta) == nil && len(meta.URLs) > 1 {
		for i, u := range meta.URLs {
			fmt.Printf("  [%d] %s\n", i+1, u)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

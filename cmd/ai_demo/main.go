// README: Generates one itinerary with one provider and prints the normalized trip.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"tripbench/internal/ai"
	"tripbench/internal/config"
	"tripbench/internal/itinerary"
	"tripbench/internal/modules/trip"
)

func main() {
	provider := flag.String("provider", "gemini", "Provider id")
	model := flag.String("model", "gemini-2.5-flash", "Model id")
	prompt := flag.String("prompt", "Four days in Kyoto and Nara in autumn, temples and food", "Traveler request")
	startDate := flag.String("start-date", time.Now().AddDate(0, 1, 0).Format("2006-01-02"), "Trip start date")
	flag.Parse()

	if err := run(*provider, *model, *prompt, *startDate); err != nil {
		slog.Error("ai demo failed", "error", err)
		os.Exit(1)
	}
}

func run(provider, model, prompt, startDate string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	client, err := ai.NewClient(ctx, cfg.Providers.ClientConfig(), cfg.Catalog)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Printf("%s/%s: %s\n", provider, model, prompt)
	res, err := client.Generate(ctx, ai.Request{
		Provider: provider,
		Model:    model,
		Prompt:   ai.BuildItineraryPrompt(ai.PromptInput{Prompt: prompt, StartDate: startDate}),
	})
	if err != nil {
		f := ai.AsFailure(err, provider, model)
		return fmt.Errorf("%s: %s", f.Code, f.Message)
	}
	m := res.Meta
	fmt.Printf("latency %dms, attempts %d, endpoint %s\n", m.LatencyMs, m.Attempts, m.Endpoint)
	if m.Usage.EstimatedCostUSD != nil {
		fmt.Printf("estimated cost $%.6f (%s)\n", *m.Usage.EstimatedCostUSD, m.Usage.CostSource)
	}

	report, it := itinerary.Validate(res.Data)
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if !report.SchemaValid {
		return fmt.Errorf("itinerary failed validation: %v", report.Errors)
	}
	out, err := json.MarshalIndent(trip.Build(it, startDate, trip.BuildOptions{Provider: provider, Model: model, Now: time.Now()}), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

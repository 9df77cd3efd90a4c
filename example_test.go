package parley_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/scripted"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/schema"
)

const weatherYAML = `
id: weather
version: 1.0
domain: weather
start:
  - intent: forecast
    continuation: forecast
responses:
  forecast:
    text: "Sunny in {{.city}}."
    slots:
      city: string
`

// ExampleNew_handlers builds an engine around an in-process scripted handler.
func ExampleNew_handlers() {
	def, err := schema.Parse([]byte(weatherYAML))
	if err != nil {
		log.Fatal(err)
	}
	weather, err := scripted.New(def)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	eng, err := parley.New(ctx, "", parley.WithHandlers(weather))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close(ctx)

	res, err := eng.Process(ctx, domain.TurnRequest{
		Client: domain.ClientContext{UserID: "u1", ClientID: "kitchen"},
		Hypotheses: []domain.Hypothesis{{
			Domain:     "weather",
			Intent:     "forecast",
			Confidence: 0.9,
			Slots:      []domain.Slot{{Name: "city", Value: "Lisbon"}},
		}},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(res.Code, res.Handler)
	fmt.Println(res.Response.Text)
	// Output:
	// success weather@1.0
	// Sunny in Lisbon.
}

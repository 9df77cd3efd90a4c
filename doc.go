/*
Package parley routes the turns of a spoken or typed conversation to the
handler that should answer them.

Each turn arrives as a ranked list of hypotheses (domain, intent, slots and
confidence) produced by a language understanding layer. Parley keeps a stack
of conversation frames per user and device, lets handlers boost or suppress
candidates, arbitrates between them, dispatches the winner and writes the
resulting conversation state back asynchronously.

# Handlers

Handlers implement ports.Handler. The quickest way to write one is a YAML
definition compiled by pkg/adapters/scripted:

	id: weather
	version: 1.0
	domain: weather
	start:
	  - intent: forecast
	    continuation: forecast
	responses:
	  forecast:
	    text: "Sunny in {{.city}}."

# Usage

	eng, err := parley.New(ctx, "./handlers")
	if err != nil {
		log.Fatal(err)
	}
	res, err := eng.Process(ctx, domain.TurnRequest{
		Client: domain.ClientContext{UserID: "u1", ClientID: "kitchen"},
		Hypotheses: []domain.Hypothesis{
			{Domain: "weather", Intent: "forecast", Confidence: 0.92},
		},
	})

State lives in memory by default. Production deployments pass a Redis store
with WithStateCache, WithProfileStore and WithCaches, and a Redis locker with
WithLocker so that turns of the same user never overlap across replicas.
*/
package parley

/*
Package dsl builds scripted handlers in Go instead of YAML.

The builder produces the same schema.Definition a YAML file would, so
everything the YAML format supports is validated the same way.

	weather, err := dsl.New("weather", "1.0").
		Start("forecast", "", "forecast").
		Respond("forecast", dsl.Say("Sunny in {{.city}}.").Slot("city", "string")).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	eng, err := parley.New(ctx, "", parley.WithHandlers(weather))

Domain defaults to the handler ID.
*/
package dsl

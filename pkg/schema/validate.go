package schema

import "sort"

// Schema is a map of slot names to their expected types.
// Example: {"date": String(), "party_size": Int()}
type Schema map[string]Type

// Names returns the slot names in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate parses every slot the schema names out of values and returns the
// typed results. All failures are reported together.
func Validate(schema Schema, values map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(schema))
	if len(schema) == 0 {
		return out, nil
	}

	var errs []error
	for _, name := range schema.Names() {
		raw, exists := values[name]
		if !exists {
			errs = append(errs, &ValidationError{Key: name, Reason: "required"})
			continue
		}

		v, err := schema[name].Parse(raw)
		if err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: raw})
			continue
		}
		out[name] = v
	}

	if len(errs) > 0 {
		return out, &AggregateError{Errors: errs}
	}
	return out, nil
}

// Missing lists the slots the schema requires that values lacks.
func Missing(schema Schema, values map[string]string) []string {
	var missing []string
	for _, name := range schema.Names() {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

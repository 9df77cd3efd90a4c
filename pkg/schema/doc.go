// Package schema describes handlers as YAML documents and types their slots.
//
// A Definition names a handler, its conversation graph, and the response
// each continuation produces:
//
//	id: weather
//	version: 1.0
//	domain: weather
//	start:
//	  - intent: forecast
//	    continuation: forecast
//	responses:
//	  forecast:
//	    text: "It will be sunny in {{.city}}."
//	    slots:
//	      city: string
//
// Slot values arrive from the recognizer as strings. A Schema maps slot
// names to Types that parse them:
//
//	s, err := schema.ParseTypeMap(map[string]string{"party_size": "int"})
//	values, err := schema.Validate(s, map[string]string{"party_size": "4"})
//
// Validate reports every failing slot at once through an AggregateError.
package schema

// Package config loads the parley configuration file.
//
// The file is YAML. Values may reference environment variables with
// ${VAR_NAME}, which is how secrets such as the Redis password and the
// encryption key are usually supplied:
//
//	server:
//	  http_addr: ":8080"
//	dialog:
//	  min_handler_confidence: 0.75
//	  max_side_speech_confidence: 0.8
//	  cached_action_grace: "30s"
//	state:
//	  backend: redis           # memory, redis
//	  ttl: "24h"
//	  lock_ttl: "10s"
//	  redis:
//	    addr: "localhost:6379"
//	    password: "${REDIS_PASSWORD}"
//	  encryption:
//	    key: "${PARLEY_STATE_KEY}"  # base64, 32 bytes
//	  pii_patterns: ["^phone", "email"]
//	handlers:
//	  dir: "./handlers"
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Durations use time.ParseDuration syntax. Keys left out keep the values of
// Default.
package config

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const bookingYAML = `
id: booking
version: 1.0
domain: booking
start:
  - intent: book
    target: ask_time
    continuation: start
nodes:
  - id: ask_time
    edges:
      - intent: set_time
        target: done
        continuation: confirm
  - id: done
responses:
  start:
    text: "What time?"
    next_turn: locked
    slots:
      party_size: int
    session:
      party: "{{.party_size}}"
  confirm:
    text: "Booked for {{.session.party}} at {{.time}}."
`

func writeHandler(t *testing.T) (dir, file string) {
	t.Helper()
	dir = t.TempDir()
	file = filepath.Join(dir, "booking.yaml")
	require.NoError(t, os.WriteFile(file, []byte(bookingYAML), 0o600))
	return dir, file
}

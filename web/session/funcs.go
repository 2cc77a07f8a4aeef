package session

import "github.com/zeptools/invoicer/sec"

const idBytes = 18

// GenerateWebSessionID returns a random URL-safe session id. It doubles as the invoice session id.
func GenerateWebSessionID() (string, error) {
	return sec.GenerateOpaqueToken(idBytes)
}

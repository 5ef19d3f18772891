package pgutils

import (
	"strings"

	"github.com/google/uuid"
)

// UUIDArray renders ids as a Postgres array literal, to be cast with $n::uuid[].
func UUIDArray(ids []uuid.UUID) string {
	var b strings.Builder

	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(id.String())
	}
	b.WriteByte('}')

	return b.String()
}

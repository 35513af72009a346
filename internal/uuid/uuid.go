package uuid

import (
	"github.com/hashicorp/go-uuid"
)

// Generate returns a random uuid
func Generate() string {
	id, err := uuid.GenerateUUID()
	if err != nil {
		panic(err)
	}
	return id
}

// Short returns the first block of the uuid for logs and tables
func Short(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}

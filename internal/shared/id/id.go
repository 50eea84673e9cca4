// Package id provides centralized ID generation for the kernel.
//
// IDs are prefixed ULIDs: lexicographically sortable, unique across the
// system, and readable in logs (proc_*, msg_*, svc_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProcessID identifies a process record
type ProcessID string

// MessageID identifies an IPC message
type MessageID string

// ServiceID identifies a registered service
type ServiceID string

const (
	ProcessPrefix = "proc"
	MessagePrefix = "msg"
	ServicePrefix = "svc"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewProcessID generates a new process ID
func NewProcessID() ProcessID {
	return ProcessID(Default().GenerateWithPrefix(ProcessPrefix))
}

// NewMessageID generates a new message ID
func NewMessageID() MessageID {
	return MessageID(Default().GenerateWithPrefix(MessagePrefix))
}

// NewServiceID generates a new service ID
func NewServiceID() ServiceID {
	return ServiceID(Default().GenerateWithPrefix(ServicePrefix))
}

func (id ProcessID) String() string { return string(id) }
func (id MessageID) String() string { return string(id) }
func (id ServiceID) String() string { return string(id) }

// IsValid checks if an ID carries a valid ULID after its prefix
func IsValid(id string) bool {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	_, err := ulid.Parse(id)
	return err == nil
}

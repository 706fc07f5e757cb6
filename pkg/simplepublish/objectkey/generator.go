package objectkey

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies.
// Generated names must be collision resistant and never derived solely from
// user input.
type Generator interface {
	// GenerateKey creates an object key under prefix
	GenerateKey(prefix string, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName    string
	ContentType string
}

// FlatGenerator produces {prefix}/{uuid}{ext}.
type FlatGenerator struct {
	NewID func() uuid.UUID
}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{NewID: uuid.New}
}

func (g *FlatGenerator) GenerateKey(prefix string, metadata *KeyMetadata) string {
	name := g.NewID().String() + extensionOf(metadata)
	return join(prefix, name)
}

// ShardedGenerator spreads keys over two-character shard directories:
// {prefix}/{ab}/{cdef...}{ext}
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
	NewID       func() uuid.UUID
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2, NewID: uuid.New}
}

func (g *ShardedGenerator) GenerateKey(prefix string, metadata *KeyMetadata) string {
	id := strings.ReplaceAll(g.NewID().String(), "-", "")
	shard := g.ShardLength
	if shard <= 0 || shard >= len(id) {
		shard = 2
	}
	name := fmt.Sprintf("%s/%s%s", id[:shard], id[shard:], extensionOf(metadata))
	return join(prefix, name)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(prefix string, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(prefix string, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(prefix string, metadata *KeyMetadata) string {
	return g.GenerateFunc(prefix, metadata)
}

// New returns the generator for a layout name ("flat" or "sharded").
func New(layout string) (Generator, error) {
	switch layout {
	case "", "flat":
		return NewFlatGenerator(), nil
	case "sharded":
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key layout %q", layout)
	}
}

// Extension returns a safe, lowercased extension (with the dot) for a file,
// preferring the original name and falling back to the MIME type.
func Extension(fileName, contentType string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(fileName, "\\", "/")))
	if isSafeExt(ext) {
		return ext
	}
	if contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			if isSafeExt(exts[0]) {
				return exts[0]
			}
		}
	}
	return ""
}

func extensionOf(metadata *KeyMetadata) string {
	if metadata == nil {
		return ""
	}
	return Extension(metadata.FileName, metadata.ContentType)
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func join(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks registered names per scope and resolves collisions
// by applying numeric suffixes when duplicates are detected.
type CollisionResolver struct {
	seen   map[string]map[string]string // scope → name → source
	logger *slog.Logger
}

// NewCollisionResolver creates a new collision resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seen:   make(map[string]map[string]string),
		logger: logger,
	}
}

// Register registers a name within a scope and returns the resolved name.
// If a collision occurs, applies a numeric suffix and logs a warning.
func (c *CollisionResolver) Register(scope, name, source string) string {
	if c.seen[scope] == nil {
		c.seen[scope] = make(map[string]string)
	}
	return c.resolveCollision(name, c.seen[scope], source)
}

// Exists checks if a name is already registered within a scope.
func (c *CollisionResolver) Exists(scope, name string) bool {
	if names, ok := c.seen[scope]; ok {
		_, exists := names[name]
		return exists
	}
	return false
}

// resolveCollision attempts to register a name in the given map.
// If the name already exists, finds the next available numeric suffix.
func (c *CollisionResolver) resolveCollision(name string, seen map[string]string, source string) string {
	if _, exists := seen[name]; !exists {
		seen[name] = source
		return name
	}

	existingSource := seen[name]
	c.logger.Warn("naming collision detected, applying suffix",
		slog.String("name", name),
		slog.String("existing_source", existingSource),
		slog.String("new_source", source),
	)

	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s%d", name, i)
		if _, exists := seen[suffixed]; !exists {
			seen[suffixed] = source
			return suffixed
		}
	}
}

package chunk

import "strings"

// registry is the name-to-factory lookup table, populated once at package
// init and read thereafter. ChunkingOptions.Strategy stays a closed set of
// string constants, so there is no runtime registration API.
var registry = map[string]func() Strategy{}

func init() {
	registry["auto"] = func() Strategy { return AutoStrategy{} }
	registry["fixedsize"] = func() Strategy { return FixedSizeStrategy{} }
	registry["fixed_size"] = func() Strategy { return FixedSizeStrategy{} }
	registry["paragraph"] = func() Strategy { return ParagraphStrategy{} }
	registry["smart"] = func() Strategy { return SmartStrategy{} }
	registry["domstructure"] = func() Strategy { return DomStructureStrategy{} }
	registry["dom_structure"] = func() Strategy { return DomStructureStrategy{} }
	registry["semantic"] = func() Strategy { return SemanticStrategy{} }
	registry["intelligent"] = func() Strategy { return IntelligentStrategy{} }
	registry["memoryoptimized"] = func() Strategy { return MemoryOptimizedStrategy{} }
	registry["memory_optimized"] = func() Strategy { return MemoryOptimizedStrategy{} }
}

// CreateStrategy looks a strategy up by name (case-insensitive), matching
// the values model.ChunkingOptions.Strategy accepts. An empty name is
// treated as "auto".
func CreateStrategy(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "auto"
	}
	factory, ok := registry[key]
	if !ok {
		return nil, &Error{Message: "unknown chunking strategy: " + name, Cause: ErrCauseInvalidOptions}
	}
	return factory(), nil
}

// GetAvailableStrategies returns the fixed set of strategy names
// CreateStrategy accepts.
func GetAvailableStrategies() []string {
	return []string{"Auto", "FixedSize", "Paragraph", "Smart", "Semantic", "Intelligent", "MemoryOptimized", "DomStructure"}
}

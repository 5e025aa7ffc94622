package utils

// DeepMergeMaps layers override on top of base, recursing into values that
// are maps on both sides. Neither input is mutated; the result is a new map.
// Used for merging user node configuration over per-node-type defaults.
func DeepMergeMaps(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for key, value := range base {
		merged[key] = value
	}

	for key, value := range override {
		baseMap, baseIsMap := merged[key].(map[string]any)
		overrideMap, overrideIsMap := value.(map[string]any)
		if baseIsMap && overrideIsMap {
			merged[key] = DeepMergeMaps(baseMap, overrideMap)
			continue
		}
		merged[key] = value
	}

	return merged
}

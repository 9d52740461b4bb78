package anthropic

// BuildCachedSystemBlocks returns a single system block with an ephemeral
// cache breakpoint. The extraction prompt is identical across documents, so
// repeated calls within ttl read it from the prompt cache.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}

package decompression

// Database provides the animated data of clips whose segments were moved out of the clip buffer.
// Tier 0 holds the coarsest samples, tier 1 the next ones.
//
// TierData returns the resident blob of a tier, or false when the tier is not resident.
// The context re-fetches tier data on every seek, so implementations are free to evict between
// seeks but must keep a returned blob untouched until the next seek of the reading context.
type Database interface {
	TierData(clipHash uint32, tier uint8) ([]byte, bool)
}

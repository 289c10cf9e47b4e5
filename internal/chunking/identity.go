package chunking

import "fmt"

// ChunkID derives the index id of chunk index out of count. A document with a
// single chunk keeps the bare "<prefix>_<id>" form.
func ChunkID(prefix, documentID string, index, count int) string {
	if count == 1 {
		return fmt.Sprintf("%s_%s", prefix, documentID)
	}
	return fmt.Sprintf("%s_%s_chunk_%03d", prefix, documentID, index)
}

// ChunkIDs returns every id of a document indexed with count chunks.
func ChunkIDs(prefix, documentID string, count int) []string {
	if count <= 0 {
		return nil
	}
	ids := make([]string, count)
	for i := range ids {
		ids[i] = ChunkID(prefix, documentID, i, count)
	}
	return ids
}

// StaleChunkIDs lists the ids of a previous run with previousCount chunks that
// a run producing newCount chunks no longer overwrites.
func StaleChunkIDs(prefix, documentID string, previousCount, newCount int) []string {
	current := make(map[string]struct{}, newCount)
	for _, id := range ChunkIDs(prefix, documentID, newCount) {
		current[id] = struct{}{}
	}

	var stale []string
	for _, id := range ChunkIDs(prefix, documentID, previousCount) {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}

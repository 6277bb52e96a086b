package redisstore

// --- Redis Keys ---
// Every key embeds the resource, so collections never share keys.

// docKey is a String holding the JSON body of one document.
func docKey(resource, id string) string {
	return "doc:" + resource + ":" + id
}

// indexKey is a Sorted Set of document ids scored by creation time in milliseconds.
func indexKey(resource string) string {
	return "idx:" + resource
}

// voteKey is a String holding one user's vote record on one content item.
func voteKey(resource, recordKey string) string {
	return "vote:" + resource + ":" + recordKey
}

// votersKey is a Set of user ids with a live vote on one content item. Remove uses it to cascade.
func votersKey(resource, contentID string) string {
	return "voters:" + resource + ":" + contentID
}

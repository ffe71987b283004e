package cachekey

import "fmt"

// Redis key builders shared between the engine (invalidation), the export
// view (caching) and the presence consumer (writes).

func ExportView(userID, orgID string) string {
	return fmt.Sprintf("workinghours:export:%s:%s", userID, orgID)
}

func Presence(userID string) string {
	return "presence:" + userID
}

// internal/workers/synthetic/purge-expired-sessions/models.go
package purgeexpiredsessions

// The purge takes no input; every session past its expiry is in scope.

type Output struct {
	PurgedSessions  int64 `json:"purgedSessions"`
	PurgedEntities  int64 `json:"purgedEntities"`
	PurgedVectors   int64 `json:"purgedVectors"`
	PurgedScores    int64 `json:"purgedScores"`
	PurgedBaselines int64 `json:"purgedBaselines"`
}

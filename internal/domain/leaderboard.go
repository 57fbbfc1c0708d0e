package domain

import (
	"math"
	"strconv"
	"time"
)

// GroupKey identifies one leaderboard.
type GroupKey struct {
	CategoryID   string     `bson:"categoryId" json:"categoryId"`
	Difficulty   Difficulty `bson:"difficulty" json:"difficulty"`
	NumQuestions int        `bson:"numQuestions" json:"numQuestions"`
}

func (k GroupKey) String() string {
	return k.CategoryID + "|" + string(k.Difficulty) + "|" + strconv.Itoa(k.NumQuestions)
}

// LeaderboardEntry is one user's standing within a group.
type LeaderboardEntry struct {
	GroupKey      `bson:",inline"`
	UserID        string    `bson:"userId" json:"userId"`
	BestScore     int       `bson:"bestScore" json:"bestScore"`
	BestTimeMs    *int64    `bson:"bestTimeMs" json:"bestTimeMs"`
	BestAttemptID string    `bson:"bestAttemptId" json:"bestAttemptId"`
	Attempts      int64     `bson:"attempts" json:"attempts"`
	LastAttemptAt time.Time `bson:"lastAttemptAt" json:"lastAttemptAt"`
	DisplayName   string    `bson:"displayName" json:"displayName"`
	AvatarURL     string    `bson:"avatarUrl" json:"avatarUrl"`
	CategoryName  string    `bson:"categoryName" json:"categoryName"`
}

// Beats reports whether e ranks strictly ahead of other: a higher score,
// or the same score with a strictly lower time. A missing time is the worst time.
func (e LeaderboardEntry) Beats(other LeaderboardEntry) bool {
	if e.BestScore != other.BestScore {
		return e.BestScore > other.BestScore
	}
	return TimeBefore(e.BestTimeMs, other.BestTimeMs)
}

// TimeBefore compares two optional durations treating nil as infinite.
func TimeBefore(a, b *int64) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a < *b
}

// GroupStats is the full aggregate over a group's entries.
type GroupStats struct {
	GroupKey          `bson:",inline"`
	ParticipantsCount int64     `bson:"participantsCount" json:"participantsCount"`
	TopScore          int       `bson:"topScore" json:"topScore"`
	AvgScore          float64   `bson:"avgScore" json:"avgScore"`
	TotalAttempts     int64     `bson:"totalAttempts" json:"totalAttempts"`
	BestTimeMs        *int64    `bson:"bestTimeMs" json:"bestTimeMs"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updatedAt"`
}

// RankedEntry is an entry with its position in a listing.
type RankedEntry struct {
	Rank int `json:"rank"`
	LeaderboardEntry
}

// GroupUpdate is broadcast to live subscribers after a group changes.
type GroupUpdate struct {
	Key       GroupKey   `json:"key"`
	Stats     GroupStats `json:"stats"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// AggregateStats recomputes group statistics from all of the group's entries.
func AggregateStats(key GroupKey, entries []LeaderboardEntry, now time.Time) GroupStats {
	stats := GroupStats{GroupKey: key, UpdatedAt: now}
	if len(entries) == 0 {
		return stats
	}
	sum := 0
	for i, e := range entries {
		stats.ParticipantsCount++
		stats.TotalAttempts += e.Attempts
		sum += e.BestScore
		if i == 0 || e.BestScore > stats.TopScore {
			stats.TopScore = e.BestScore
		}
		if e.BestTimeMs != nil && (stats.BestTimeMs == nil || *e.BestTimeMs < *stats.BestTimeMs) {
			t := *e.BestTimeMs
			stats.BestTimeMs = &t
		}
	}
	stats.AvgScore = RoundScore(float64(sum) / float64(len(entries)))
	return stats
}

// RoundScore rounds to two decimals.
func RoundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

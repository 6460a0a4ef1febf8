// models/level.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Level is one rung of a wealth or charm ladder.
type Level struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Kind      string             `json:"kind" bson:"kind"` // "wealth" or "charm"
	Level     int                `json:"level" bson:"level"`
	Threshold int64              `json:"threshold" bson:"threshold"`
	IconPath  string             `json:"iconPath,omitempty" bson:"iconPath,omitempty"`
}

type NextLevel struct {
	Level       int   `json:"level"`
	Requirement int64 `json:"requirement"`
}

type LevelProgress struct {
	CurrentValue      int64      `json:"currentValue"`
	CurrentLevel      int        `json:"currentLevel"`
	NextLevel         *NextLevel `json:"nextLevel"`
	DistanceToUpgrade int64      `json:"distanceToUpgrade"`
}

// ProgressFor computes a user's position on a ladder. Levels must be sorted
// ascending by threshold.
func ProgressFor(levels []Level, value int64) LevelProgress {
	progress := LevelProgress{CurrentValue: value}
	for _, l := range levels {
		if value >= l.Threshold {
			progress.CurrentLevel = l.Level
			continue
		}
		progress.NextLevel = &NextLevel{Level: l.Level, Requirement: l.Threshold}
		progress.DistanceToUpgrade = l.Threshold - value
		break
	}
	return progress
}

package engine

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Luciuswang/douyin-treasure/databases"
)

// Engine applies the game rules on top of the treasure and user stores.
// All mutations are single conditional writes so concurrent callers never
// need cross-document locking.
type Engine struct {
	Treasures databases.TreasureDatabase
	Users     databases.UserDatabase
}

// New creates an engine over the given stores
func New(treasures databases.TreasureDatabase, users databases.UserDatabase) *Engine {
	return &Engine{Treasures: treasures, Users: users}
}

// now is stubbed in tests
var now = time.Now

// successRateStage recomputes stats.successRate from the counters already
// updated earlier in the same pipeline, so the derived field can never
// drift from its inputs
func successRateStage() bson.D {
	return bson.D{{Key: "$set", Value: bson.M{
		"stats.successRate": bson.M{"$cond": bson.A{
			bson.M{"$gt": bson.A{"$stats.attempts", 0}},
			bson.M{"$round": bson.A{
				bson.M{"$multiply": bson.A{
					bson.M{"$divide": bson.A{"$stats.discoveries", "$stats.attempts"}},
					100,
				}},
				0,
			}},
			0,
		}},
		"updatedAt": "$$NOW",
	}}}
}

// attemptPipeline bumps stats.attempts and recomputes the success rate
func attemptPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"stats.attempts": bson.M{"$add": bson.A{"$stats.attempts", 1}},
		}}},
		successRateStage(),
	}
}

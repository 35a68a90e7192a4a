package engine

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrTreasureNotFound rejects operations against a missing treasure
var ErrTreasureNotFound = errors.New("treasure not found")

// ToggleLike flips the user's like on a treasure in a single pipeline
// write: set membership flips first, then stats.likes is re-derived from
// the set size, so the counter can never drift from the set no matter how
// the toggles interleave.
func (e *Engine) ToggleLike(ctx context.Context, treasureID, userID primitive.ObjectID) (*LikeResult, error) {
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"likedBy": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{userID, "$likedBy"}},
				bson.M{"$setDifference": bson.A{"$likedBy", bson.A{userID}}},
				bson.M{"$concatArrays": bson.A{"$likedBy", bson.A{userID}}},
			}},
		}}},
		bson.D{{Key: "$set", Value: bson.M{
			"stats.likes": bson.M{"$size": "$likedBy"},
			"updatedAt":   "$$NOW",
		}}},
	}

	after := options.After
	treasure, err := e.Treasures.FindOneAndUpdate(ctx,
		bson.M{"_id": treasureID},
		update,
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrTreasureNotFound
		}
		return nil, err
	}

	return &LikeResult{
		Liked: treasure.IsLikedBy(userID),
		Likes: treasure.Stats.Likes,
	}, nil
}

package engine

import (
	"context"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Luciuswang/douyin-treasure/models"
)

// ValidCoordinate reports whether lat/lng form a usable coordinate
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Location is a caller-supplied coordinate pair
type Location struct {
	Lat float64
	Lng float64
}

// AttemptDiscovery runs one discovery attempt for the user. Checks run in
// a fixed order: missing treasure, already discovered, expired, capacity,
// distance. The distance gate only applies when the caller supplied a
// location; a nil loc skips it. Admission itself is a single conditional
// write, so two users racing for the last slot can never both get in; the
// loser is reclassified by re-reading the document.
func (e *Engine) AttemptDiscovery(ctx context.Context, treasureID, userID primitive.ObjectID, loc *Location, proof *models.DiscoveryProof, rating int) DiscoveryResult {
	if loc != nil && !ValidCoordinate(loc.Lat, loc.Lng) {
		return DiscoveryResult{Kind: OutcomeInvalidInput, Message: "无效的坐标"}
	}
	if rating != 0 && (rating < 1 || rating > 5) {
		return DiscoveryResult{Kind: OutcomeInvalidInput, Message: "无效的评分"}
	}

	treasure, err := e.Treasures.FindOne(ctx, bson.M{"_id": treasureID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return DiscoveryResult{Kind: OutcomeNotFound, Message: "宝藏不存在"}
		}
		zap.S().Errorw("failed to load treasure for discovery", "treasureID", treasureID.Hex(), "error", err)
		return DiscoveryResult{Kind: OutcomeUnavailable, Message: "服务暂时不可用"}
	}

	ts := now()

	if treasure.IsDiscoveredBy(userID) {
		return DiscoveryResult{Kind: OutcomeAlreadyDiscovered, Message: "你已经发现过这个宝藏了"}
	}

	if treasure.IsExpired(ts) {
		e.recordAttempt(ctx, treasureID)
		return DiscoveryResult{Kind: OutcomeExpired, Message: "宝藏已过期"}
	}

	if !treasure.HasCapacity() {
		e.recordAttempt(ctx, treasureID)
		return DiscoveryResult{Kind: OutcomeCapacityReached, Message: "发现人数已满"}
	}

	if loc != nil {
		distance := treasure.DistanceFrom(loc.Lat, loc.Lng)
		required := treasure.Location.DiscoveryRadius
		if distance > required {
			e.recordAttempt(ctx, treasureID)
			return DiscoveryResult{
				Kind:             OutcomeTooFar,
				Message:          "距离宝藏还有一段距离",
				Distance:         math.Round(distance),
				RequiredDistance: required,
			}
		}
	}

	record := models.Discovery{User: userID, DiscoveredAt: ts, Proof: proof, Rating: rating}
	admitted, result := e.admit(ctx, treasureID, userID, record)
	if !admitted {
		return result
	}

	rewards := treasure.Rewards
	out := DiscoveryResult{Kind: OutcomeSuccess, Message: "恭喜发现宝藏!", Rewards: &rewards}

	expResult, err := e.AddExperience(ctx, userID, rewards.Experience)
	if err != nil {
		zap.S().Errorw("failed to grant discovery experience", "userID", userID.Hex(), "error", err)
	} else {
		out.LevelUp = expResult.LevelUp
	}

	if _, err := e.Users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$inc": bson.M{"coins": rewards.Coins, "stats.treasuresDiscovered": 1},
	}); err != nil {
		zap.S().Errorw("failed to credit discovery rewards", "userID", userID.Hex(), "error", err)
	}

	if _, err := e.Users.UpdateOne(ctx, bson.M{"_id": treasure.Creator}, bson.M{
		"$inc": bson.M{"stats.totalViews": 1},
	}); err != nil {
		zap.S().Errorw("failed to bump creator stats", "creatorID", treasure.Creator.Hex(), "error", err)
	}

	e.grantMilestones(ctx, userID)

	safe := treasure.Safe(userID)
	safe.IsDiscovered = true
	safe.Stats.Discoveries++
	safe.Stats.Attempts++
	out.Treasure = &safe
	return out
}

// admit performs the conditional admission write. The filter re-checks
// membership and capacity at write time, so a stale read can never
// over-admit. A zero ModifiedCount means another caller won the race.
func (e *Engine) admit(ctx context.Context, treasureID, userID primitive.ObjectID, record models.Discovery) (bool, DiscoveryResult) {
	filter := bson.M{
		"_id":               treasureID,
		"discoveredBy.user": bson.M{"$ne": userID},
		"$expr": bson.M{"$or": bson.A{
			bson.M{"$eq": bson.A{"$settings.maxDiscoverers", 0}},
			bson.M{"$lt": bson.A{bson.M{"$size": "$discoveredBy"}, "$settings.maxDiscoverers"}},
		}},
	}
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"discoveredBy":      bson.M{"$concatArrays": bson.A{"$discoveredBy", bson.A{record}}},
			"stats.discoveries": bson.M{"$add": bson.A{"$stats.discoveries", 1}},
			"stats.attempts":    bson.M{"$add": bson.A{"$stats.attempts", 1}},
		}}},
		successRateStage(),
	}

	res, err := e.Treasures.UpdateOne(ctx, filter, update)
	if err != nil {
		zap.S().Errorw("discovery admission write failed", "treasureID", treasureID.Hex(), "error", err)
		return false, DiscoveryResult{Kind: OutcomeUnavailable, Message: "服务暂时不可用"}
	}
	if res.ModifiedCount > 0 {
		return true, DiscoveryResult{}
	}

	// lost the race; re-read to tell membership from capacity
	treasure, err := e.Treasures.FindOne(ctx, bson.M{"_id": treasureID})
	if err != nil {
		zap.S().Errorw("failed to classify lost admission race", "treasureID", treasureID.Hex(), "error", err)
		return false, DiscoveryResult{Kind: OutcomeUnavailable, Message: "服务暂时不可用"}
	}
	if treasure.IsDiscoveredBy(userID) {
		return false, DiscoveryResult{Kind: OutcomeAlreadyDiscovered, Message: "你已经发现过这个宝藏了"}
	}
	e.recordAttempt(ctx, treasureID)
	return false, DiscoveryResult{Kind: OutcomeCapacityReached, Message: "发现人数已满"}
}

// recordAttempt counts a failed attempt against a live treasure,
// best effort
func (e *Engine) recordAttempt(ctx context.Context, treasureID primitive.ObjectID) {
	if _, err := e.Treasures.UpdateOne(ctx, bson.M{"_id": treasureID}, attemptPipeline()); err != nil {
		zap.S().Errorw("failed to record discovery attempt", "treasureID", treasureID.Hex(), "error", err)
	}
}

package engine

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Luciuswang/douyin-treasure/models"
)

// AddExperience credits experience to the user and settles any resulting
// level change. The experience credit is a plain $inc so concurrent grants
// all land; the level write uses $max so the level can only move up even
// when grants settle out of order. Reaching a level that is a multiple of
// ten also awards the matching level badge.
func (e *Engine) AddExperience(ctx context.Context, userID primitive.ObjectID, amount int) (*ExperienceResult, error) {
	if amount < 0 {
		amount = 0
	}

	after := options.After
	user, err := e.Users.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$inc": bson.M{"level.experience": amount}},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	)
	if err != nil {
		return nil, err
	}

	result := &ExperienceResult{
		Experience: user.Level.Experience,
		Level:      user.Level.CurrentLevel,
	}

	newLevel := models.LevelForExperience(user.Level.Experience)
	if newLevel <= user.Level.CurrentLevel {
		return result, nil
	}

	levelUp := &LevelUp{OldLevel: user.Level.CurrentLevel, NewLevel: newLevel, RewardCoins: newLevel * 10}

	update := bson.M{
		"$max": bson.M{"level.currentLevel": newLevel},
		"$inc": bson.M{"coins": levelUp.RewardCoins},
	}
	if _, err := e.Users.UpdateOne(ctx, bson.M{"_id": userID}, update); err != nil {
		return nil, err
	}

	if newLevel%10 == 0 {
		name := fmt.Sprintf("level_%d", newLevel)
		granted, err := e.AddBadge(ctx, userID, models.Badge{Name: name, Icon: "🏆", EarnedAt: now()})
		if err != nil {
			zap.S().Errorw("failed to grant level badge", "userID", userID.Hex(), "badge", name, "error", err)
		} else if granted {
			levelUp.Badge = name
		}
	}

	result.Level = newLevel
	result.LevelUp = levelUp
	return result, nil
}

// AddBadge grants the badge unless the user already holds one with the
// same name. The held-check lives in the update filter, so concurrent
// grants of the same badge collapse to a single insertion. Returns whether
// the badge was newly granted.
func (e *Engine) AddBadge(ctx context.Context, userID primitive.ObjectID, badge models.Badge) (bool, error) {
	res, err := e.Users.UpdateOne(ctx,
		bson.M{"_id": userID, "level.badges.name": bson.M{"$ne": badge.Name}},
		bson.M{"$push": bson.M{"level.badges": badge}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// discoveryMilestones maps total discoveries to achievement badges
var discoveryMilestones = map[int]models.Badge{
	1:  {Name: models.BadgeFirstTreasure, Icon: "🗺️"},
	10: {Name: models.BadgeTreasureHunter, Icon: "⭐"},
	50: {Name: models.BadgeTreasureMaster, Icon: "👑"},
}

// grantMilestones awards achievement badges once the user's discovery
// count crosses a milestone, best effort
func (e *Engine) grantMilestones(ctx context.Context, userID primitive.ObjectID) {
	user, err := e.Users.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		zap.S().Errorw("failed to load user for milestones", "userID", userID.Hex(), "error", err)
		return
	}
	badge, ok := discoveryMilestones[user.Stats.TreasuresDiscovered]
	if !ok {
		return
	}
	badge.EarnedAt = now()
	if _, err := e.AddBadge(ctx, userID, badge); err != nil {
		zap.S().Errorw("failed to grant milestone badge", "userID", userID.Hex(), "badge", badge.Name, "error", err)
	}
}

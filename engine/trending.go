package engine

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Luciuswang/douyin-treasure/models"
)

// DefaultTrendingLimit caps trending results when the caller does not ask
// for a specific page size
const DefaultTrendingLimit = 20

// trendingWindows maps the accepted timeframe labels to hours
var trendingWindows = map[string]int{
	"1h":  1,
	"24h": 24,
	"7d":  168,
	"30d": 720,
}

// GetTrending returns the hottest listable treasures created inside the
// timeframe window, scored likes*3 + shares*5 + discoveries*10 + views.
// Unknown timeframes fall back to 24h. Ties break on createdAt, newest
// first.
func (e *Engine) GetTrending(ctx context.Context, timeframe string, limit int) ([]models.Treasure, error) {
	hours, ok := trendingWindows[timeframe]
	if !ok {
		hours = trendingWindows["24h"]
	}
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	since := now().Add(-time.Duration(hours) * time.Hour)

	pipeline := []bson.M{
		{"$match": bson.M{
			"status":                models.StatusActive,
			"moderation.isApproved": true,
			"settings.isHidden":     false,
			"settings.expiresAt":    bson.M{"$gt": now()},
			"createdAt":             bson.M{"$gte": since},
		}},
		{"$addFields": bson.M{
			"trendScore": bson.M{"$add": bson.A{
				bson.M{"$multiply": bson.A{"$stats.likes", models.TrendWeightLikes}},
				bson.M{"$multiply": bson.A{"$stats.shares", models.TrendWeightShares}},
				bson.M{"$multiply": bson.A{"$stats.discoveries", models.TrendWeightDiscoveries}},
				"$stats.views",
			}},
		}},
		{"$sort": bson.D{{Key: "trendScore", Value: -1}, {Key: "createdAt", Value: -1}}},
		{"$limit": limit},
	}

	treasures, err := e.Treasures.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return treasures, nil
}

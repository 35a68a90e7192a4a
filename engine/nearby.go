package engine

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Luciuswang/douyin-treasure/models"
)

// Nearby query defaults, radius in meters
const (
	DefaultNearbyRadius = 1000.0
	MaxNearbyRadius     = 50000.0
	DefaultNearbyLimit  = 20
)

// ErrBadCoordinate rejects malformed nearby queries
var ErrBadCoordinate = errors.New("invalid coordinate")

// NearbyQuery describes a nearby search around a point
type NearbyQuery struct {
	Lat            float64
	Lng            float64
	Radius         float64
	Category       string
	Tags           []string
	ExcludeCreator primitive.ObjectID
	Limit          int64
	SortByDistance bool
}

// FindNearby returns listable treasures around the query point, nearest
// data first by engagement: views descending then createdAt descending,
// unless the caller asks for pure distance ordering. The geo index orders
// candidates by distance before the sort applies.
func (e *Engine) FindNearby(ctx context.Context, q NearbyQuery) ([]models.Treasure, error) {
	if !ValidCoordinate(q.Lat, q.Lng) {
		return nil, ErrBadCoordinate
	}
	if q.Radius <= 0 {
		q.Radius = DefaultNearbyRadius
	}
	if q.Radius > MaxNearbyRadius {
		q.Radius = MaxNearbyRadius
	}
	if q.Limit <= 0 {
		q.Limit = DefaultNearbyLimit
	}

	filter := bson.M{
		"location.coordinates": bson.M{
			"$near": bson.M{
				"$geometry":    models.NewGeoPoint(q.Lng, q.Lat),
				"$maxDistance": q.Radius,
			},
		},
		"status":                models.StatusActive,
		"moderation.isApproved": true,
		"settings.isHidden":     false,
		"settings.expiresAt":    bson.M{"$gt": now()},
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if len(q.Tags) > 0 {
		filter["tags"] = bson.M{"$in": q.Tags}
	}
	if !q.ExcludeCreator.IsZero() {
		filter["creator"] = bson.M{"$ne": q.ExcludeCreator}
	}

	opts := options.Find().SetLimit(q.Limit)
	if !q.SortByDistance {
		opts = opts.SetSort(bson.D{{Key: "stats.views", Value: -1}, {Key: "createdAt", Value: -1}})
	}

	treasures, err := e.Treasures.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return treasures, nil
}

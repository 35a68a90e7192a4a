package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Luciuswang/douyin-treasure/databases/mocks"
	"github.com/Luciuswang/douyin-treasure/models"
)

func capturePipeline(t *testing.T, pipeline interface{}) []bson.M {
	t.Helper()
	stages, ok := pipeline.([]bson.M)
	assert.True(t, ok)
	return stages
}

func TestGetTrendingDefaults(t *testing.T) {
	treasures := new(mocks.TreasureDatabase)
	var captured interface{}
	treasures.On("Aggregate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1) }).
		Return([]models.Treasure{}, nil)

	e := New(treasures, new(mocks.UserDatabase))
	_, err := e.GetTrending(context.Background(), "bogus", 0)
	assert.NoError(t, err)

	stages := capturePipeline(t, captured)
	assert.Len(t, stages, 4)
	assert.Equal(t, DefaultTrendingLimit, stages[3]["$limit"])
}

func TestGetTrendingSortStage(t *testing.T) {
	treasures := new(mocks.TreasureDatabase)
	var captured interface{}
	treasures.On("Aggregate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1) }).
		Return([]models.Treasure{}, nil)

	e := New(treasures, new(mocks.UserDatabase))
	_, err := e.GetTrending(context.Background(), "7d", 5)
	assert.NoError(t, err)

	stages := capturePipeline(t, captured)
	sort, ok := stages[2]["$sort"].(bson.D)
	assert.True(t, ok)
	// score first, newest-first tiebreak second
	assert.Equal(t, "trendScore", sort[0].Key)
	assert.Equal(t, -1, sort[0].Value)
	assert.Equal(t, "createdAt", sort[1].Key)
	assert.Equal(t, -1, sort[1].Value)
	assert.Equal(t, 5, stages[3]["$limit"])
}

func TestGetTrendingExcludesUnlistable(t *testing.T) {
	treasures := new(mocks.TreasureDatabase)
	var captured interface{}
	treasures.On("Aggregate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1) }).
		Return([]models.Treasure{}, nil)

	e := New(treasures, new(mocks.UserDatabase))
	_, err := e.GetTrending(context.Background(), "24h", 20)
	assert.NoError(t, err)

	stages := capturePipeline(t, captured)
	match := stages[0]["$match"].(bson.M)
	assert.Equal(t, models.StatusActive, match["status"])
	assert.Equal(t, true, match["moderation.isApproved"])
	assert.Equal(t, false, match["settings.isHidden"])
	assert.Contains(t, match, "settings.expiresAt")
	assert.Contains(t, match, "createdAt")
}

func TestTrendScoreScenario(t *testing.T) {
	// T1: 10 likes + 10 discoveries = 130; T2: 100 views = 100
	t1 := models.TreasureStats{Likes: 10, Discoveries: 10}
	t2 := models.TreasureStats{Views: 100}
	assert.Greater(t, t1.TrendScore(), t2.TrendScore())
}

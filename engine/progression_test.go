package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Luciuswang/douyin-treasure/databases/mocks"
	"github.com/Luciuswang/douyin-treasure/models"
)

func TestAddExperienceLevelUp(t *testing.T) {
	userID := primitive.NewObjectID()
	users := new(mocks.UserDatabase)
	users.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.User{ID: userID, Level: models.Level{CurrentLevel: 1, Experience: 500}}, nil)
	users.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)

	e := New(new(mocks.TreasureDatabase), users)
	res, err := e.AddExperience(context.Background(), userID, 500)

	assert.NoError(t, err)
	assert.Equal(t, 500, res.Experience)
	assert.Equal(t, 3, res.Level)
	assert.NotNil(t, res.LevelUp)
	assert.Equal(t, 1, res.LevelUp.OldLevel)
	assert.Equal(t, 3, res.LevelUp.NewLevel)
	assert.Equal(t, 30, res.LevelUp.RewardCoins)
	assert.Empty(t, res.LevelUp.Badge, "level 3 carries no level badge")
}

func TestAddExperienceNoLevelChange(t *testing.T) {
	userID := primitive.NewObjectID()
	users := new(mocks.UserDatabase)
	users.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.User{ID: userID, Level: models.Level{CurrentLevel: 1, Experience: 50}}, nil)

	e := New(new(mocks.TreasureDatabase), users)
	res, err := e.AddExperience(context.Background(), userID, 50)

	assert.NoError(t, err)
	assert.Equal(t, 1, res.Level)
	assert.Nil(t, res.LevelUp)
	users.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddExperienceLevelTenAwardsBadge(t *testing.T) {
	userID := primitive.NewObjectID()
	users := new(mocks.UserDatabase)
	users.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.User{ID: userID, Level: models.Level{CurrentLevel: 9, Experience: 8150}}, nil)
	users.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)

	e := New(new(mocks.TreasureDatabase), users)
	res, err := e.AddExperience(context.Background(), userID, 100)

	assert.NoError(t, err)
	assert.Equal(t, 10, res.Level)
	assert.NotNil(t, res.LevelUp)
	assert.Equal(t, 9, res.LevelUp.OldLevel)
	assert.Equal(t, 100, res.LevelUp.RewardCoins)
	assert.Equal(t, "level_10", res.LevelUp.Badge)
}

func TestAddExperienceNegativeAmountClamped(t *testing.T) {
	userID := primitive.NewObjectID()
	users := new(mocks.UserDatabase)
	users.On("FindOneAndUpdate", mock.Anything, mock.Anything,
		mock.MatchedBy(func(update interface{}) bool {
			m, ok := update.(bson.M)
			if !ok {
				return false
			}
			inc := m["$inc"].(bson.M)
			return inc["level.experience"] == 0
		}), mock.Anything).
		Return(&models.User{ID: userID, Level: models.Level{CurrentLevel: 1}}, nil)

	e := New(new(mocks.TreasureDatabase), users)
	_, err := e.AddExperience(context.Background(), userID, -25)

	assert.NoError(t, err)
	users.AssertExpectations(t)
}

func TestAddBadgeIdempotent(t *testing.T) {
	userID := primitive.NewObjectID()
	users := new(mocks.UserDatabase)
	users.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{ModifiedCount: 1}, nil).Once()
	users.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{ModifiedCount: 0}, nil).Once()

	e := New(new(mocks.TreasureDatabase), users)

	granted, err := e.AddBadge(context.Background(), userID, models.Badge{Name: models.BadgeFirstTreasure})
	assert.NoError(t, err)
	assert.True(t, granted)

	granted, err = e.AddBadge(context.Background(), userID, models.Badge{Name: models.BadgeFirstTreasure})
	assert.NoError(t, err)
	assert.False(t, granted, "second grant of the same badge is a no-op")
}

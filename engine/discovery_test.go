package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Luciuswang/douyin-treasure/databases/mocks"
	"github.com/Luciuswang/douyin-treasure/models"
)

func at(lat, lng float64) *Location {
	return &Location{Lat: lat, Lng: lng}
}

func activeTreasure(creator primitive.ObjectID) *models.Treasure {
	return &models.Treasure{
		ID:      primitive.NewObjectID(),
		Title:   "外滩咖啡寻宝",
		Creator: creator,
		Location: models.TreasureLocation{
			Coordinates:     models.NewGeoPoint(121.4737, 31.2304),
			DiscoveryRadius: 50,
		},
		Rewards:    models.Rewards{Experience: 10, Coins: 5},
		Status:     models.StatusActive,
		Moderation: models.Moderation{IsApproved: true},
		Settings:   models.TreasureSettings{ExpiresAt: time.Now().Add(24 * time.Hour)},
	}
}

func TestAttemptDiscoveryInvalidCoordinates(t *testing.T) {
	e := New(new(mocks.TreasureDatabase), new(mocks.UserDatabase))

	res := e.AttemptDiscovery(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), at(95, 121.47), nil, 0)
	assert.Equal(t, OutcomeInvalidInput, res.Kind)

	res = e.AttemptDiscovery(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), at(31.23, 200), nil, 0)
	assert.Equal(t, OutcomeInvalidInput, res.Kind)
}

func TestAttemptDiscoveryInvalidRating(t *testing.T) {
	e := New(new(mocks.TreasureDatabase), new(mocks.UserDatabase))

	res := e.AttemptDiscovery(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), at(31.2304, 121.4737), nil, 6)
	assert.Equal(t, OutcomeInvalidInput, res.Kind)

	res = e.AttemptDiscovery(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), at(31.2304, 121.4737), nil, -1)
	assert.Equal(t, OutcomeInvalidInput, res.Kind)
}

func TestAttemptDiscoveryNotFound(t *testing.T) {
	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	e := New(treasures, users)
	res := e.AttemptDiscovery(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), at(31.2304, 121.4737), nil, 0)

	assert.Equal(t, OutcomeNotFound, res.Kind)
	treasures.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttemptDiscoveryAlreadyDiscovered(t *testing.T) {
	userID := primitive.NewObjectID()
	treasure := activeTreasure(primitive.NewObjectID())
	treasure.DiscoveredBy = []models.Discovery{{User: userID, DiscoveredAt: time.Now()}}

	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(treasure, nil)

	e := New(treasures, users)
	res := e.AttemptDiscovery(context.Background(), treasure.ID, userID, at(31.2304, 121.4737), nil, 0)

	assert.Equal(t, OutcomeAlreadyDiscovered, res.Kind)
	// repeat discoveries are not attempts, the counter stays untouched
	treasures.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttemptDiscoveryExpired(t *testing.T) {
	treasure := activeTreasure(primitive.NewObjectID())
	treasure.Settings.ExpiresAt = time.Now().Add(-time.Hour)

	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(treasure, nil)
	treasures.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)

	e := New(treasures, users)
	res := e.AttemptDiscovery(context.Background(), treasure.ID, primitive.NewObjectID(), at(31.2304, 121.4737), nil, 0)

	assert.Equal(t, OutcomeExpired, res.Kind)
	treasures.AssertNumberOfCalls(t, "UpdateOne", 1)
}

func TestAttemptDiscoveryCapacityReached(t *testing.T) {
	treasure := activeTreasure(primitive.NewObjectID())
	treasure.Settings.MaxDiscoverers = 1
	treasure.DiscoveredBy = []models.Discovery{{User: primitive.NewObjectID(), DiscoveredAt: time.Now()}}

	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(treasure, nil)
	treasures.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)

	e := New(treasures, users)
	res := e.AttemptDiscovery(context.Background(), treasure.ID, primitive.NewObjectID(), at(31.2304, 121.4737), nil, 0)

	assert.Equal(t, OutcomeCapacityReached, res.Kind)
}

func TestAttemptDiscoveryTooFar(t *testing.T) {
	treasure := activeTreasure(primitive.NewObjectID())

	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(treasure, nil)
	treasures.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)

	e := New(treasures, users)
	// ~60 m north of the treasure, radius is 50 m
	res := e.AttemptDiscovery(context.Background(), treasure.ID, primitive.NewObjectID(), at(31.2304+0.00054, 121.4737), nil, 0)

	assert.Equal(t, OutcomeTooFar, res.Kind)
	assert.InDelta(t, 60, res.Distance, 1)
	assert.Equal(t, 50.0, res.RequiredDistance)
	treasures.AssertNumberOfCalls(t, "UpdateOne", 1)
}

func TestAttemptDiscoverySuccess(t *testing.T) {
	creator := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	treasure := activeTreasure(creator)

	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(treasure, nil)
	treasures.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)

	grown := &models.User{ID: userID, Level: models.Level{CurrentLevel: 1, Experience: 10}}
	users.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(grown, nil)
	users.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)
	users.On("FindOne", mock.Anything, mock.Anything).Return(&models.User{ID: userID, Stats: models.UserStats{TreasuresDiscovered: 2}}, nil)

	e := New(treasures, users)
	res := e.AttemptDiscovery(context.Background(), treasure.ID, userID, at(31.2304, 121.4737), nil, 0)

	assert.Equal(t, OutcomeSuccess, res.Kind)
	assert.NotNil(t, res.Rewards)
	assert.Equal(t, 10, res.Rewards.Experience)
	assert.Equal(t, 5, res.Rewards.Coins)
	assert.Nil(t, res.LevelUp)
	assert.NotNil(t, res.Treasure)
	assert.True(t, res.Treasure.IsDiscovered)
}

func TestAttemptDiscoveryNoLocationSkipsDistanceGate(t *testing.T) {
	creator := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	treasure := activeTreasure(creator)

	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(treasure, nil)
	treasures.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)

	users.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.User{ID: userID, Level: models.Level{CurrentLevel: 1, Experience: 10}}, nil)
	users.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)
	users.On("FindOne", mock.Anything, mock.Anything).Return(&models.User{ID: userID, Stats: models.UserStats{TreasuresDiscovered: 2}}, nil)

	e := New(treasures, users)
	res := e.AttemptDiscovery(context.Background(), treasure.ID, userID, nil, nil, 0)

	assert.Equal(t, OutcomeSuccess, res.Kind, "without a location the distance gate does not apply")
	assert.Zero(t, res.Distance)
}

func TestAttemptDiscoveryRecordsRating(t *testing.T) {
	creator := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	treasure := activeTreasure(creator)

	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)

	var admitted models.Discovery
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(treasure, nil)
	treasures.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			pipeline := args.Get(2).(mongo.Pipeline)
			set := pipeline[0][0].Value.(bson.M)
			appended := set["discoveredBy"].(bson.M)["$concatArrays"].(bson.A)[1].(bson.A)
			admitted = appended[0].(models.Discovery)
		})

	users.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.User{ID: userID, Level: models.Level{CurrentLevel: 1, Experience: 10}}, nil)
	users.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)
	users.On("FindOne", mock.Anything, mock.Anything).Return(&models.User{ID: userID, Stats: models.UserStats{TreasuresDiscovered: 2}}, nil)

	e := New(treasures, users)
	proof := &models.DiscoveryProof{Type: "photo", URL: "https://cdn.example.com/p.jpg"}
	res := e.AttemptDiscovery(context.Background(), treasure.ID, userID, at(31.2304, 121.4737), proof, 4)

	assert.Equal(t, OutcomeSuccess, res.Kind)
	assert.Equal(t, userID, admitted.User)
	assert.Equal(t, 4, admitted.Rating)
	assert.Equal(t, proof, admitted.Proof)
}

func TestAttemptDiscoveryLostRaceAlreadyDiscovered(t *testing.T) {
	userID := primitive.NewObjectID()
	fresh := activeTreasure(primitive.NewObjectID())
	taken := *fresh
	taken.DiscoveredBy = []models.Discovery{{User: userID, DiscoveredAt: time.Now()}}

	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(fresh, nil).Once()
	treasures.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 0}, nil).Once()
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(&taken, nil).Once()

	e := New(treasures, users)
	res := e.AttemptDiscovery(context.Background(), fresh.ID, userID, at(31.2304, 121.4737), nil, 0)

	assert.Equal(t, OutcomeAlreadyDiscovered, res.Kind)
}

func TestAttemptDiscoveryLostRaceCapacity(t *testing.T) {
	userID := primitive.NewObjectID()
	fresh := activeTreasure(primitive.NewObjectID())
	fresh.Settings.MaxDiscoverers = 1
	full := *fresh
	full.DiscoveredBy = []models.Discovery{{User: primitive.NewObjectID(), DiscoveredAt: time.Now()}}

	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(fresh, nil).Once()
	treasures.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 0}, nil).Once()
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(&full, nil).Once()
	treasures.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil).Once()

	e := New(treasures, users)
	res := e.AttemptDiscovery(context.Background(), fresh.ID, userID, at(31.2304, 121.4737), nil, 0)

	assert.Equal(t, OutcomeCapacityReached, res.Kind)
	treasures.AssertNumberOfCalls(t, "UpdateOne", 2)
}

func TestAttemptDiscoveryStorageDown(t *testing.T) {
	treasures := new(mocks.TreasureDatabase)
	users := new(mocks.UserDatabase)
	treasures.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrClientDisconnected)

	e := New(treasures, users)
	res := e.AttemptDiscovery(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), at(31.2304, 121.4737), nil, 0)

	assert.Equal(t, OutcomeUnavailable, res.Kind)
}

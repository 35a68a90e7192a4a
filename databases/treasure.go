package databases

// go generate: mockery --name TreasureDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Luciuswang/douyin-treasure/models"
)

const treasureName = "treasures"

// TreasureDatabase contains the methods to use with the treasure database
type TreasureDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Treasure, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Treasure, error)
	InsertOne(ctx context.Context, treasure models.Treasure) (interface{}, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) (*models.Treasure, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline interface{}) ([]models.Treasure, error)
}

type treasureDatabase struct {
	db DatabaseHelper
}

// NewTreasureDatabase initializes a new instance of treasure database with the provided db connection
func NewTreasureDatabase(db DatabaseHelper) TreasureDatabase {
	return &treasureDatabase{
		db: db,
	}
}

func (c *treasureDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Treasure, error) {
	treasure := &models.Treasure{}
	err := c.db.Collection(treasureName).FindOne(ctx, filter, opts...).Decode(&treasure)
	if err != nil {
		return nil, err
	}
	return treasure, nil
}

func (c *treasureDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Treasure, error) {
	var treasures []models.Treasure
	err := c.db.Collection(treasureName).Find(ctx, filter, opts...).Decode(&treasures)
	if err != nil {
		return nil, err
	}
	return treasures, nil
}

func (c *treasureDatabase) InsertOne(ctx context.Context, treasure models.Treasure) (interface{}, error) {
	res := c.db.Collection(treasureName).InsertOne(ctx, treasure)
	return res.Decode(), nil
}

func (c *treasureDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := c.db.Collection(treasureName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *treasureDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := c.db.Collection(treasureName).UpdateMany(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *treasureDatabase) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) (*models.Treasure, error) {
	treasure := &models.Treasure{}
	err := c.db.Collection(treasureName).FindOneAndUpdate(ctx, filter, update, opts...).Decode(&treasure)
	if err != nil {
		return nil, err
	}
	return treasure, nil
}

func (c *treasureDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	count, err := c.db.Collection(treasureName).CountDocuments(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (c *treasureDatabase) Aggregate(ctx context.Context, pipeline interface{}) ([]models.Treasure, error) {
	cursor, err := c.db.Collection(treasureName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var treasures []models.Treasure
	err = cursor.Decode(&treasures)
	if err != nil {
		return nil, err
	}
	return treasures, nil
}

package databases

// go generate: mockery --name ModeratorDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Luciuswang/douyin-treasure/models"
)

const moderatorName = "moderators"

// ModeratorDatabase contains the methods to use with the moderator database
type ModeratorDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Moderator, error)
}

type moderatorDatabase struct {
	db DatabaseHelper
}

// NewModeratorDatabase initializes a new instance of moderator database with the provided db connection
func NewModeratorDatabase(db DatabaseHelper) ModeratorDatabase {
	return &moderatorDatabase{
		db: db,
	}
}

func (m *moderatorDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Moderator, error) {
	moderator := &models.Moderator{}
	err := m.db.Collection(moderatorName).FindOne(ctx, filter, opts...).Decode(&moderator)
	if err != nil {
		return nil, err
	}
	return moderator, nil
}

package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/Luciuswang/douyin-treasure/databases"
	"github.com/Luciuswang/douyin-treasure/models"
)

// Scheduler handles periodic background jobs. The expiry sweep is status
// housekeeping only: listing and discovery always compute expiry on read,
// so nothing breaks if a sweep is late or skipped.
type Scheduler struct {
	cron *cron.Cron
	TDB  databases.TreasureDatabase
	UDB  databases.UserDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(tDB databases.TreasureDatabase, uDB databases.UserDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		TDB:  tDB,
		UDB:  uDB,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Sweep expired treasures hourly
	_, err := s.cron.AddFunc("0 * * * *", s.sweepExpired)
	if err != nil {
		zap.S().Errorw("failed to register expiry sweep job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Treasure scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Treasure scheduler stopped")
}

// sweepExpired flips status on treasures that outlived their expiresAt and
// notifies the creators. Each flip is a conditional write on the still
// active document, so overlapping sweeps on other instances never
// double-notify.
func (s *Scheduler) sweepExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now()
	filter := bson.M{
		"status":             models.StatusActive,
		"settings.expiresAt": bson.M{"$gt": time.Time{}, "$lt": now},
	}

	expired, err := s.TDB.Find(ctx, filter)
	if err != nil {
		zap.S().Errorw("failed to find expired treasures", "error", err)
		return
	}

	flipped := 0
	for _, treasure := range expired {
		res, err := s.TDB.UpdateOne(ctx,
			bson.M{"_id": treasure.ID, "status": models.StatusActive},
			bson.M{"$set": bson.M{"status": models.StatusExpired, "updatedAt": now}},
		)
		if err != nil {
			zap.S().Errorw("failed to expire treasure", "error", err, "treasureId", treasure.ID.Hex())
			continue
		}
		if res.ModifiedCount == 0 {
			// another instance got here first
			continue
		}
		flipped++
		go s.sendExpiryEmail(ctx, treasure)
	}

	zap.S().Infow("Expiry sweep complete",
		"candidates", len(expired),
		"expired", flipped,
	)
}

// sendExpiryEmail notifies the creator that their treasure expired,
// honoring the email preference
func (s *Scheduler) sendExpiryEmail(ctx context.Context, treasure models.Treasure) {
	creator, err := s.UDB.FindOne(ctx, bson.M{"_id": treasure.Creator})
	if err != nil {
		zap.S().Warnw("failed to load creator for expiry email", "error", err, "creatorId", treasure.Creator.Hex())
		return
	}
	if !creator.Settings.Notifications.Email || creator.Email == "" {
		return
	}

	subject := "你的宝藏已过期"
	htmlContent := fmt.Sprintf("<p>你好 %s，</p><p>你创建的宝藏「%s」已经过期，其他用户将无法再发现它。</p>", creator.Nickname, treasure.Title)
	plainText := fmt.Sprintf("你创建的宝藏「%s」已经过期。", treasure.Title)

	if err := s.sendEmail(creator.Email, creator.Nickname, subject, htmlContent, plainText); err != nil {
		zap.S().Errorw("failed to send expiry email", "error", err, "creatorId", treasure.Creator.Hex())
	}
}

func (s *Scheduler) sendEmail(toEmail, toName, subject, htmlContent, plainText string) error {
	from := mail.NewEmail("抖音寻宝", "no-reply@douyin-treasure.com")
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
	return nil
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Luciuswang/douyin-treasure/api"
	"github.com/Luciuswang/douyin-treasure/config"
	"github.com/Luciuswang/douyin-treasure/databases"
	"github.com/Luciuswang/douyin-treasure/engine"
	"github.com/Luciuswang/douyin-treasure/models"
)

// Treasure exported for testing purposes
type Treasure struct {
	DB     databases.TreasureDatabase
	UDB    databases.UserDatabase
	Engine *engine.Engine
}

type createTreasureRequest struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	CreatorID       string           `json:"creatorId"`
	Latitude        float64          `json:"latitude"`
	Longitude       float64          `json:"longitude"`
	Address         string           `json:"address"`
	City            string           `json:"city"`
	District        string           `json:"district"`
	Landmark        string           `json:"landmark"`
	DiscoveryRadius float64          `json:"discoveryRadius"`
	Category        string           `json:"category"`
	Tags            []string         `json:"tags"`
	Challenge       models.Challenge `json:"challenge"`
	Experience      int              `json:"experience"`
	Coins           int              `json:"coins"`
	MaxDiscoverers  int              `json:"maxDiscoverers"`
	ExpiresAt       *time.Time       `json:"expiresAt"`
	IsHidden        bool             `json:"isHidden"`
}

type discoverRequest struct {
	UserID    string                 `json:"userId"`
	Latitude  *float64               `json:"latitude"`
	Longitude *float64               `json:"longitude"`
	Proof     *models.DiscoveryProof `json:"proof"`
	Rating    int                    `json:"rating"`
}

type likeRequest struct {
	UserID string `json:"userId"`
}

// outcomeStatus maps a discovery outcome to its http status code
func outcomeStatus(kind engine.OutcomeKind) int {
	switch kind {
	case engine.OutcomeSuccess:
		return http.StatusOK
	case engine.OutcomeNotFound:
		return http.StatusNotFound
	case engine.OutcomeAlreadyDiscovered, engine.OutcomeCapacityReached:
		return http.StatusConflict
	case engine.OutcomeExpired:
		return http.StatusGone
	case engine.OutcomeTooFar:
		return http.StatusForbidden
	case engine.OutcomeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

// CreateTreasureHandler creates a new treasure at the given location. New
// treasures start active but unapproved, so they stay out of listings
// until a moderator signs off.
func (t Treasure) CreateTreasureHandler(w http.ResponseWriter, r *http.Request) {
	var req createTreasureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	creatorID, err := primitive.ObjectIDFromHex(req.CreatorID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		config.ErrorStatus("title is required", http.StatusBadRequest, w, errors.New("missing title"))
		return
	}
	if !engine.ValidCoordinate(req.Latitude, req.Longitude) {
		config.ErrorStatus("invalid coordinates", http.StatusBadRequest, w, errors.New("coordinates out of range"))
		return
	}

	radius := req.DiscoveryRadius
	if radius == 0 {
		radius = models.DefaultDiscoveryRadius
	}
	if radius < models.MinDiscoveryRadius {
		radius = models.MinDiscoveryRadius
	}
	if radius > models.MaxDiscoveryRadius {
		radius = models.MaxDiscoveryRadius
	}

	experience := req.Experience
	if experience == 0 {
		experience = 10
	}
	if experience < 1 {
		experience = 1
	}
	if experience > 100 {
		experience = 100
	}

	coins := req.Coins
	if coins == 0 {
		coins = 5
	}
	if coins < 0 {
		coins = 0
	}
	if coins > 50 {
		coins = 50
	}

	category := req.Category
	if !models.ValidCategory(category) {
		category = "其他"
	}

	now := time.Now()
	expiresAt := now.Add(models.DefaultExpiry)
	if req.ExpiresAt != nil && req.ExpiresAt.After(now) {
		expiresAt = *req.ExpiresAt
	}

	challenge := req.Challenge
	if challenge.Type == "" {
		challenge.Type = models.ChallengeNone
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	treasure := models.Treasure{
		ID:          primitive.NewObjectID(),
		Title:       req.Title,
		Description: req.Description,
		Creator:     creatorID,
		Location: models.TreasureLocation{
			Coordinates:     models.NewGeoPoint(req.Longitude, req.Latitude),
			Address:         req.Address,
			City:            req.City,
			District:        req.District,
			Landmark:        req.Landmark,
			DiscoveryRadius: radius,
		},
		Challenge: challenge,
		Rewards:   models.Rewards{Experience: experience, Coins: coins, Badges: []models.RewardBadge{}},
		Tags:      tags,
		Category:  category,
		Settings: models.TreasureSettings{
			IsPublic:       true,
			AllowComments:  true,
			AllowSharing:   true,
			MaxDiscoverers: req.MaxDiscoverers,
			ExpiresAt:      expiresAt,
			IsHidden:       req.IsHidden,
		},
		Status:       models.StatusActive,
		LikedBy:      []primitive.ObjectID{},
		DiscoveredBy: []models.Discovery{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := t.DB.InsertOne(ctx, treasure); err != nil {
		config.ErrorStatus("failed to create treasure", http.StatusInternalServerError, w, err)
		return
	}

	if _, err := t.UDB.UpdateOne(ctx, bson.M{"_id": creatorID}, bson.M{
		"$inc": bson.M{"stats.treasuresCreated": 1},
	}); err != nil {
		zap.S().Errorw("failed to bump creator treasure count", "creatorID", creatorID.Hex(), "error", err)
	}

	b, err := json.Marshal(treasure.Safe(creatorID))
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// TreasureByIDHandler returns a treasure by ID as a safe object and counts
// the view
func (t Treasure) TreasureByIDHandler(w http.ResponseWriter, r *http.Request) {
	treasureID := mux.Vars(r)["treasure_id"]

	zap.S().Debugf("treasure_id: %v", treasureID)

	tID, err := primitive.ObjectIDFromHex(treasureID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	viewer := viewerID(r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	after := options.After
	dbResp, err := t.DB.FindOneAndUpdate(ctx,
		bson.M{"_id": tID},
		bson.M{"$inc": bson.M{"stats.views": 1}},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	)
	if err != nil {
		config.ErrorStatus("failed to get treasure by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp.Safe(viewer))
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DiscoverTreasureHandler runs a discovery attempt and reports the outcome
func (t Treasure) DiscoverTreasureHandler(w http.ResponseWriter, r *http.Request) {
	treasureID := mux.Vars(r)["treasure_id"]

	tID, err := primitive.ObjectIDFromHex(treasureID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	// location is optional but must be a whole pair when supplied
	if (req.Latitude == nil) != (req.Longitude == nil) {
		config.ErrorStatus("invalid coordinates", http.StatusBadRequest, w, errors.New("latitude and longitude must be supplied together"))
		return
	}
	var loc *engine.Location
	if req.Latitude != nil {
		loc = &engine.Location{Lat: *req.Latitude, Lng: *req.Longitude}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	result := t.Engine.AttemptDiscovery(ctx, tID, userID, loc, req.Proof, req.Rating)

	if result.Kind == engine.OutcomeSuccess {
		BroadcastDiscoveryEvent(map[string]interface{}{
			"treasureId": tID.Hex(),
			"userId":     userID.Hex(),
			"title":      safeTitle(result.Treasure),
		})
	}

	b, err := json.Marshal(result)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(outcomeStatus(result.Kind))
	w.Write(b)
}

// LikeTreasureHandler toggles the user's like on a treasure
func (t Treasure) LikeTreasureHandler(w http.ResponseWriter, r *http.Request) {
	treasureID := mux.Vars(r)["treasure_id"]

	tID, err := primitive.ObjectIDFromHex(treasureID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	result, err := t.Engine.ToggleLike(ctx, tID, userID)
	if err != nil {
		if err == engine.ErrTreasureNotFound {
			config.ErrorStatus("treasure not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to toggle like", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(result)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// NearbyTreasuresHandler returns the listable treasures around a point
func (t Treasure) NearbyTreasuresHandler(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		config.ErrorStatus("lat and lng are required", http.StatusBadRequest, w, errors.New("missing coordinates"))
		return
	}

	q := engine.NearbyQuery{
		Lat:            lat,
		Lng:            lng,
		Category:       r.URL.Query().Get("category"),
		SortByDistance: r.URL.Query().Get("sort") == "distance",
	}
	if radius, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 64); err == nil {
		q.Radius = radius
	}
	if limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil {
		q.Limit = limit
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		q.Tags = strings.Split(tags, ",")
	}
	if exclude := r.URL.Query().Get("exclude_creator"); exclude != "" {
		id, err := primitive.ObjectIDFromHex(exclude)
		if err != nil {
			config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
			return
		}
		q.ExcludeCreator = id
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := t.Engine.FindNearby(ctx, q)
	if err != nil {
		if err == engine.ErrBadCoordinate {
			config.ErrorStatus("invalid coordinates", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to get nearby treasures", http.StatusInternalServerError, w, err)
		return
	}

	writeSafeList(w, dbResp, viewerID(r))
}

// TrendingTreasuresHandler returns the hottest treasures inside a window
func (t Treasure) TrendingTreasuresHandler(w http.ResponseWriter, r *http.Request) {
	timeframe := r.URL.Query().Get("timeframe")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = engine.DefaultTrendingLimit
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := t.Engine.GetTrending(ctx, timeframe, limit)
	if err != nil {
		config.ErrorStatus("failed to get trending treasures", http.StatusInternalServerError, w, err)
		return
	}

	writeSafeList(w, dbResp, viewerID(r))
}

// TreasuresByCreatorHandler returns all treasures created by a user,
// newest first
func (t Treasure) TreasuresByCreatorHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := t.DB.Find(ctx, bson.M{"creator": uID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		config.ErrorStatus("failed to get treasures by creator", http.StatusNotFound, w, err)
		return
	}

	writeSafeList(w, dbResp, viewerID(r))
}

// viewerID extracts the optional viewer id from the query string
func viewerID(r *http.Request) primitive.ObjectID {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return primitive.NilObjectID
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

func safeTitle(t *models.SafeTreasure) string {
	if t == nil {
		return ""
	}
	return t.Title
}

// writeSafeList writes treasures as safe objects. The frontend requires
// the data elements to exist, so an empty result returns [] instead of
// null.
func writeSafeList(w http.ResponseWriter, treasures []models.Treasure, viewer primitive.ObjectID) {
	safe := make([]models.SafeTreasure, 0, len(treasures))
	for i := range treasures {
		safe = append(safe, treasures[i].Safe(viewer))
	}
	b, err := json.Marshal(safe)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

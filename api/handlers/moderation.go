package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/Luciuswang/douyin-treasure/api"
	"github.com/Luciuswang/douyin-treasure/config"
	"github.com/Luciuswang/douyin-treasure/databases"
	"github.com/Luciuswang/douyin-treasure/models"
)

type moderationLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type moderationLoginResponse struct {
	Token     string `json:"token"`
	Moderator struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"moderator"`
}

type moderationUpdateRequest struct {
	IsApproved  bool   `json:"isApproved"`
	ReviewNotes string `json:"reviewNotes"`
	Status      string `json:"status"`
}

// Moderation represents the moderation handler
type Moderation struct {
	MDB databases.ModeratorDatabase
	TDB databases.TreasureDatabase
}

// ModerationLoginHandler handles moderator login via email/password and returns a JWT
func (h Moderation) ModerationLoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req moderationLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid request"})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "email and password required"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	moderator, err := h.MDB.FindOne(ctx, bson.M{"email": email})
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(moderator.Password), []byte(req.Password)); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
		return
	}

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "server misconfigured"})
		return
	}

	claims := jwt.MapClaims{
		"sub":   moderator.ID.Hex(),
		"email": moderator.Email,
		"scope": "moderation",
		"typ":   "access",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "token generation failed"})
		return
	}

	var resp moderationLoginResponse
	resp.Token = signed
	resp.Moderator.ID = moderator.ID.Hex()
	resp.Moderator.Email = moderator.Email
	resp.Moderator.Name = moderator.Name

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// validateModeratorToken checks the bearer JWT and returns the moderator id
func validateModeratorToken(r *http.Request) (primitive.ObjectID, error) {
	header := r.Header.Get("Authorization")
	parts := strings.Split(header, "Bearer ")
	if len(parts) < 2 {
		return primitive.NilObjectID, fmt.Errorf("missing bearer token")
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return primitive.NilObjectID, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["scope"] != "moderation" {
		return primitive.NilObjectID, fmt.Errorf("invalid token scope")
	}
	sub, _ := claims["sub"].(string)
	return primitive.ObjectIDFromHex(sub)
}

// UpdateModerationHandler approves or rejects a treasure. Moderation state
// never leaks into safe objects, this endpoint is its only writer besides
// reports.
func (h Moderation) UpdateModerationHandler(w http.ResponseWriter, r *http.Request) {
	moderatorID, err := validateModeratorToken(r)
	if err != nil {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
		return
	}

	treasureID := mux.Vars(r)["treasure_id"]
	tID, err := primitive.ObjectIDFromHex(treasureID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req moderationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	now := time.Now()
	set := bson.M{
		"moderation.isApproved":  req.IsApproved,
		"moderation.reviewedBy":  moderatorID,
		"moderation.reviewedAt":  now,
		"moderation.reviewNotes": req.ReviewNotes,
		"updatedAt":              now,
	}
	switch req.Status {
	case models.StatusActive, models.StatusInactive, models.StatusBanned:
		set["status"] = req.Status
	case "":
	default:
		config.ErrorStatus("invalid status", http.StatusBadRequest, w, fmt.Errorf("status %q not allowed", req.Status))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := h.TDB.UpdateOne(ctx, bson.M{"_id": tID}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update moderation", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("treasure not found", http.StatusNotFound, w, fmt.Errorf("no treasure %s", tID.Hex()))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"updated": true}`))
}

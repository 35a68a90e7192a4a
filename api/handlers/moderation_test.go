package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/Luciuswang/douyin-treasure/api/handlers"
	mocksdb "github.com/Luciuswang/douyin-treasure/databases/mocks"
	"github.com/Luciuswang/douyin-treasure/models"
)

func moderatorToken(t *testing.T, moderatorID primitive.ObjectID, secret string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   moderatorID.Hex(),
		"email": "mod@douyin-treasure.com",
		"scope": "moderation",
		"typ":   "access",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestModeration_LoginHandlerSuccess(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	moderatorID := primitive.NewObjectID()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(map[string]string{"email": " Mod@Douyin-Treasure.com ", "password": "hunter2"})
	req, err := http.NewRequest("POST", "/api/v1/moderation/login", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	mdb := &mocksdb.ModeratorDatabase{}
	mdb.On("FindOne", mock.Anything, bson.M{"email": "mod@douyin-treasure.com"}).Return(&models.Moderator{
		ID:       moderatorID,
		Email:    "mod@douyin-treasure.com",
		Password: string(hash),
		Name:     "值班审核员",
	}, nil)

	h := handlers.Moderation{MDB: mdb, TDB: &mocksdb.TreasureDatabase{}}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(h.ModerationLoginHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var resp struct {
		Token     string `json:"token"`
		Moderator struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"moderator"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.Equal(t, moderatorID.Hex(), resp.Moderator.ID)
	assert.Equal(t, "值班审核员", resp.Moderator.Name)

	parsed, err := jwt.Parse(resp.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "moderation", claims["scope"])
	assert.Equal(t, moderatorID.Hex(), claims["sub"])
}

func TestModeration_LoginHandlerWrongPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(map[string]string{"email": "mod@douyin-treasure.com", "password": "wrong"})
	req, err := http.NewRequest("POST", "/api/v1/moderation/login", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	mdb := &mocksdb.ModeratorDatabase{}
	mdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Moderator{
		Email:    "mod@douyin-treasure.com",
		Password: string(hash),
	}, nil)

	h := handlers.Moderation{MDB: mdb, TDB: &mocksdb.TreasureDatabase{}}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(h.ModerationLoginHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusUnauthorized {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusUnauthorized)
	}
}

func TestModeration_LoginHandlerUnknownModerator(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	body, _ := json.Marshal(map[string]string{"email": "nobody@douyin-treasure.com", "password": "hunter2"})
	req, err := http.NewRequest("POST", "/api/v1/moderation/login", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	mdb := &mocksdb.ModeratorDatabase{}
	mdb.On("FindOne", mock.Anything, mock.Anything).Return(nil, errors.New("mongo: no documents in result"))

	h := handlers.Moderation{MDB: mdb, TDB: &mocksdb.TreasureDatabase{}}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(h.ModerationLoginHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusUnauthorized {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusUnauthorized)
	}
}

func TestModeration_UpdateHandlerMissingToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	treasureID := primitive.NewObjectID()
	body, _ := json.Marshal(map[string]interface{}{"isApproved": true})
	req, err := http.NewRequest("PUT", fmt.Sprintf("/api/v1/treasure/%s/moderation", treasureID.Hex()), bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"treasure_id": treasureID.Hex()})

	tdb := &mocksdb.TreasureDatabase{}

	h := handlers.Moderation{MDB: &mocksdb.ModeratorDatabase{}, TDB: tdb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(h.UpdateModerationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusUnauthorized {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusUnauthorized)
	}
	tdb.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestModeration_UpdateHandlerSuccess(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	treasureID := primitive.NewObjectID()
	moderatorID := primitive.NewObjectID()

	body, _ := json.Marshal(map[string]interface{}{
		"isApproved":  true,
		"reviewNotes": "内容合规",
		"status":      models.StatusActive,
	})
	req, err := http.NewRequest("PUT", fmt.Sprintf("/api/v1/treasure/%s/moderation", treasureID.Hex()), bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"treasure_id": treasureID.Hex()})
	req.Header.Set("Authorization", "Bearer "+moderatorToken(t, moderatorID, "test-secret"))

	var capturedUpdate bson.M
	tdb := &mocksdb.TreasureDatabase{}
	tdb.On("UpdateOne", mock.Anything, bson.M{"_id": treasureID}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			capturedUpdate = args.Get(2).(bson.M)
		})

	h := handlers.Moderation{MDB: &mocksdb.ModeratorDatabase{}, TDB: tdb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(h.UpdateModerationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	expected := `{"updated": true}`
	if rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: \ngot: %v \nwant: %v", rr.Body.String(), expected)
	}

	set := capturedUpdate["$set"].(bson.M)
	assert.Equal(t, true, set["moderation.isApproved"])
	assert.Equal(t, moderatorID, set["moderation.reviewedBy"])
	assert.Equal(t, "内容合规", set["moderation.reviewNotes"])
	assert.Equal(t, models.StatusActive, set["status"])
}

func TestModeration_UpdateHandlerInvalidStatus(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	treasureID := primitive.NewObjectID()

	body, _ := json.Marshal(map[string]interface{}{
		"isApproved": false,
		"status":     "vaporized",
	})
	req, err := http.NewRequest("PUT", fmt.Sprintf("/api/v1/treasure/%s/moderation", treasureID.Hex()), bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"treasure_id": treasureID.Hex()})
	req.Header.Set("Authorization", "Bearer "+moderatorToken(t, primitive.NewObjectID(), "test-secret"))

	tdb := &mocksdb.TreasureDatabase{}

	h := handlers.Moderation{MDB: &mocksdb.ModeratorDatabase{}, TDB: tdb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(h.UpdateModerationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}
	tdb.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestModeration_UpdateHandlerTreasureNotFound(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	treasureID := primitive.NewObjectID()

	body, _ := json.Marshal(map[string]interface{}{"isApproved": true})
	req, err := http.NewRequest("PUT", fmt.Sprintf("/api/v1/treasure/%s/moderation", treasureID.Hex()), bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"treasure_id": treasureID.Hex()})
	req.Header.Set("Authorization", "Bearer "+moderatorToken(t, primitive.NewObjectID(), "test-secret"))

	tdb := &mocksdb.TreasureDatabase{}
	tdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{}, nil)

	h := handlers.Moderation{MDB: &mocksdb.ModeratorDatabase{}, TDB: tdb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(h.UpdateModerationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusNotFound)
	}
}

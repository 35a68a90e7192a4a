package handlers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Luciuswang/douyin-treasure/api/handlers"
)

func TestUpload_GenerateSignature(t *testing.T) {
	t.Setenv("CLOUDINARY_UPLOAD_PRESET", "proof-photos")
	t.Setenv("CLOUDINARY_API_SECRET", "test-api-secret")

	req, err := http.NewRequest("POST", "/api/v1/generate-signature", nil)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Authorization", "Bearer abc123")

	u := handlers.UploadHandler{}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.GenerateSignature)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NotEmpty(t, resp["timestamp"])
	assert.NotEmpty(t, resp["signature"])

	h := hmac.New(sha1.New, []byte("test-api-secret"))
	h.Write([]byte("timestamp=" + resp["timestamp"] + "&upload_preset=proof-photos"))
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), resp["signature"])
	assert.NotContains(t, resp, "context")
}

func TestUpload_GenerateSignatureWithTreasureContext(t *testing.T) {
	t.Setenv("CLOUDINARY_UPLOAD_PRESET", "proof-photos")
	t.Setenv("CLOUDINARY_API_SECRET", "test-api-secret")

	treasureID := primitive.NewObjectID().Hex()
	body, _ := json.Marshal(map[string]string{"treasureId": treasureID})
	req, err := http.NewRequest("POST", "/api/v1/generate-signature", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Authorization", "Bearer abc123")

	u := handlers.UploadHandler{}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.GenerateSignature)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.Equal(t, "treasureId="+treasureID, resp["context"])

	// the treasure context is part of the signed payload
	h := hmac.New(sha1.New, []byte("test-api-secret"))
	h.Write([]byte("context=treasureId=" + treasureID + "&timestamp=" + resp["timestamp"] + "&upload_preset=proof-photos"))
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), resp["signature"])
}

package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"
)

// UploadHandler handles proof-photo upload related requests
type UploadHandler struct{}

type signatureRequest struct {
	TreasureID string `json:"treasureId"`
}

// GenerateSignature generates a signature for proof-photo uploads. When
// the upload is tied to a treasure, the treasure id is folded into the
// signed params so the signature cannot be reused for another treasure's
// proof.
func (c UploadHandler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	var req signatureRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	// params in alphabetical order, context first when present
	payload := "timestamp=" + timestamp + "&upload_preset=" + uploadPreset
	uploadContext := ""
	if req.TreasureID != "" {
		uploadContext = "treasureId=" + req.TreasureID
		payload = "context=" + uploadContext + "&" + payload
	}

	h := hmac.New(sha1.New, []byte(apiSecret))
	h.Write([]byte(payload))
	signature := hex.EncodeToString(h.Sum(nil))

	response := map[string]string{
		"timestamp": timestamp,
		"signature": signature,
	}
	if uploadContext != "" {
		response["context"] = uploadContext
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

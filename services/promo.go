// services/promo.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// PromoValidator checks whether a promo code entitles a user to a zero-cost
// unlock. Validation runs against an external provider; a timeout is a hard
// failure, never a silent success.
type PromoValidator interface {
	Validate(ctx context.Context, userID, pieceID, code string) (bool, error)
}

// HTTPPromoValidator calls the promo provider's validation endpoint.
type HTTPPromoValidator struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

const promoValidateTimeout = 5 * time.Second

func NewHTTPPromoValidator() *HTTPPromoValidator {
	baseURL := os.Getenv("PROMO_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("PROMO_SERVICE_URL environment variable not set")
	}
	token := os.Getenv("PIECE_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("PIECE_SERVICE_TOKEN environment variable is required for promo validation")
	}
	return &HTTPPromoValidator{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: promoValidateTimeout,
		},
	}
}

func (v *HTTPPromoValidator) Validate(ctx context.Context, userID, pieceID, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, promoValidateTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"user_id":  userID,
		"piece_id": pieceID,
		"code":     code,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.BaseURL+"/api/v1/promo/validate", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to create promo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", v.Token)

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("promo validation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("promo service returned status %d", resp.StatusCode)
	}

	var result struct {
		Eligible bool `json:"eligible"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode promo response: %w", err)
	}
	return result.Eligible, nil
}

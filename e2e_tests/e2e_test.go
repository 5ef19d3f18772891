package e2etests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// The suite drives an API over a fresh APP_ENV=DEV database, started with
// PAYMENTS_SANDBOX_AUTO_SETTLE=true.
const (
	timeout   = 5 * time.Second
	waitReady = 20 * time.Second

	seller = "dev-seller"
	buyer  = "dev-buyer"
)

var httpClient = &http.Client{Timeout: timeout}

func baseURL() string {
	if u := os.Getenv("E2E_BASE_URL"); u != "" {
		return u
	}

	return "http://localhost:8080"
}

// seededCard returns the id of the n-th card the DEV seed gives dev-seller.
func seededCard(n int) string {
	return fmt.Sprintf("00000000-0000-4000-9000-%012d", n)
}

func TestE2E_MarketplaceFlow(t *testing.T) {
	waitUntilReady(t)

	sellerStart := credits(t, seller)
	buyerStart := credits(t, buyer)

	var pack struct {
		ID string `json:"id"`
	}
	mustDo(t, seller, http.MethodPost, "/card-packs", map[string]string{"name": "e2e pack"}, http.StatusOK, &pack)

	cardIDs := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		cardIDs = append(cardIDs, seededCard(i))
	}
	mustDo(t, seller, http.MethodPost, "/card-packs/"+pack.ID+"/cards", map[string]any{"cardIds": cardIDs}, http.StatusOK, nil)

	var listing struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	mustDo(t, seller, http.MethodPost, "/marketplace/listings",
		map[string]any{"packId": pack.ID, "price": 100}, http.StatusOK, &listing)
	if listing.Status != "ACTIVE" {
		t.Fatalf("new listing status = %s", listing.Status)
	}

	t.Run("second_listing_conflicts", func(t *testing.T) {
		mustDo(t, seller, http.MethodPost, "/marketplace/listings",
			map[string]any{"packId": pack.ID, "price": 50}, http.StatusConflict, nil)
	})

	t.Run("self_purchase_rejected", func(t *testing.T) {
		mustDo(t, seller, http.MethodPost, "/marketplace/listings/"+listing.ID+"/purchase", nil, http.StatusConflict, nil)
	})

	t.Run("purchase_transfers_credits_and_pack", func(t *testing.T) {
		mustDo(t, buyer, http.MethodPost, "/marketplace/listings/"+listing.ID+"/purchase", nil, http.StatusOK, nil)

		if got := credits(t, buyer); got != buyerStart-100 {
			t.Fatalf("buyer credits = %d, want %d", got, buyerStart-100)
		}
		if got := credits(t, seller); got != sellerStart+100 {
			t.Fatalf("seller credits = %d, want %d", got, sellerStart+100)
		}

		mustDo(t, buyer, http.MethodGet, "/marketplace/listings/"+listing.ID, nil, http.StatusOK, &listing)
		if listing.Status != "SOLD" {
			t.Fatalf("listing status = %s, want SOLD", listing.Status)
		}

		var cards struct {
			Cards []struct {
				ID string `json:"id"`
			} `json:"cards"`
		}
		mustDo(t, buyer, http.MethodGet, "/cards", nil, http.StatusOK, &cards)

		owned := map[string]bool{}
		for _, c := range cards.Cards {
			owned[c.ID] = true
		}
		for _, id := range cardIDs {
			if !owned[id] {
				t.Fatalf("buyer does not own card %s", id)
			}
		}
	})

	t.Run("sold_listing_unavailable", func(t *testing.T) {
		mustDo(t, uniqueUser(), http.MethodPost, "/marketplace/listings/"+listing.ID+"/purchase", nil, http.StatusConflict, nil)
	})
}

func TestE2E_ReferralFlow(t *testing.T) {
	waitUntilReady(t)

	referrer := uniqueUser()

	var gen struct {
		Code string `json:"code"`
	}
	mustDo(t, referrer, http.MethodPost, "/referral/generate", nil, http.StatusOK, &gen)

	newcomer := uniqueUser()

	var used struct {
		Success        bool  `json:"success"`
		CreditsAwarded int64 `json:"creditsAwarded"`
	}
	mustDo(t, newcomer, http.MethodPost, "/referral/use", map[string]string{"code": gen.Code}, http.StatusOK, &used)
	if !used.Success || used.CreditsAwarded <= 0 {
		t.Fatalf("unexpected referral result %+v", used)
	}

	mustDo(t, newcomer, http.MethodPost, "/referral/use", map[string]string{"code": gen.Code}, http.StatusConflict, nil)
	mustDo(t, referrer, http.MethodPost, "/referral/use", map[string]string{"code": gen.Code}, http.StatusBadRequest, nil)
}

func TestE2E_ProgressionFlow(t *testing.T) {
	waitUntilReady(t)

	user := uniqueUser()
	start := credits(t, user)

	var award struct {
		Level      int  `json:"level"`
		LeveledUp  bool `json:"leveledUp"`
		NewRewards []struct {
			ID            string `json:"id"`
			RewardCredits int64  `json:"rewardCredits"`
		} `json:"newRewards"`
	}
	mustDo(t, user, http.MethodPost, "/xp/award", map[string]any{"amount": 100, "reason": "e2e"}, http.StatusOK, &award)
	if !award.LeveledUp || award.Level != 2 || len(award.NewRewards) != 1 {
		t.Fatalf("unexpected award %+v", award)
	}

	reward := award.NewRewards[0]
	mustDo(t, user, http.MethodPost, "/rewards/"+reward.ID+"/claim", nil, http.StatusOK, nil)
	mustDo(t, user, http.MethodPost, "/rewards/"+reward.ID+"/claim", nil, http.StatusConflict, nil)

	if got := credits(t, user); got != start+reward.RewardCredits {
		t.Fatalf("credits after claim = %d, want %d", got, start+reward.RewardCredits)
	}
}

func TestE2E_CreditsAndValidation(t *testing.T) {
	waitUntilReady(t)

	user := uniqueUser()

	t.Run("missing_identity", func(t *testing.T) {
		code, body := do(t, "", http.MethodGet, "/credits", nil)
		if code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d (%s)", code, body)
		}
	})

	t.Run("overspend_keeps_balance", func(t *testing.T) {
		before := credits(t, user)
		mustDo(t, user, http.MethodPost, "/credits/use", map[string]any{"amount": before + 1}, http.StatusConflict, nil)

		if got := credits(t, user); got != before {
			t.Fatalf("balance changed to %d", got)
		}
	})

	t.Run("invalid_package", func(t *testing.T) {
		mustDo(t, user, http.MethodPost, "/credits/purchase", map[string]string{"packageId": "nope"}, http.StatusBadRequest, nil)
	})

	t.Run("purchase_package", func(t *testing.T) {
		before := credits(t, user)

		var intent struct {
			PaymentIntentID string `json:"paymentIntentId"`
			Amount          int64  `json:"amount"`
		}
		mustDo(t, user, http.MethodPost, "/credits/purchase", map[string]string{"packageId": "starter"}, http.StatusOK, &intent)

		body := map[string]string{"paymentIntentId": intent.PaymentIntentID}
		mustDo(t, user, http.MethodPost, "/credits/purchase/complete", body, http.StatusOK, nil)
		mustDo(t, user, http.MethodPost, "/credits/purchase/complete", body, http.StatusOK, nil)

		if got := credits(t, user); got != before+intent.Amount {
			t.Fatalf("credits = %d, want %d", got, before+intent.Amount)
		}
	})
}

// --- helpers ---

func uniqueUser() string {
	return "e2e-" + uuid.NewString()
}

func credits(t *testing.T, user string) int64 {
	t.Helper()

	var out struct {
		Credits int64 `json:"credits"`
	}
	mustDo(t, user, http.MethodGet, "/credits", nil, http.StatusOK, &out)

	return out.Credits
}

func mustDo(t *testing.T, user, method, path string, body any, want int, out any) {
	t.Helper()

	code, raw := do(t, user, method, path, body)
	if code != want {
		t.Fatalf("%s %s: want %d, got %d (%s)", method, path, want, code, raw)
	}

	if out != nil {
		err := json.Unmarshal([]byte(raw), out)
		if err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
}

func do(t *testing.T, user, method, path string, body any) (int, string) {
	t.Helper()

	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL()+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if tok := os.Getenv("E2E_GATEWAY_TOKEN"); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)

	return resp.StatusCode, string(b)
}

// waitUntilReady polls /healthz until the API answers or waitReady passes.
func waitUntilReady(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", baseURL(), waitReady)
		case <-tick.C:
			resp, err := httpClient.Get(baseURL() + "/healthz")
			if err != nil {
				// not listening yet
				continue
			}
			_ = resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}

package pgtestutil

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

// SeedUser inserts a user with a balance row and the matching SYSTEM ledger
// entry, so ledger sums agree with the balance from the start.
func SeedUser(t *testing.T, db *sql.DB, userID string, balance int64) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO users (id) VALUES ($1)`, userID)
	if err != nil {
		t.Fatalf("seed user(%s): %v", userID, err)
	}

	_, err = db.Exec(`INSERT INTO credit_balances (user_id, balance) VALUES ($1, $2)`, userID, balance)
	if err != nil {
		t.Fatalf("seed balance(%s): %v", userID, err)
	}

	if balance == 0 {
		return
	}

	_, err = db.Exec(`
		INSERT INTO credit_transactions (user_id, amount, type, description)
		VALUES ($1, $2, 'SYSTEM', 'test seed')
	`, userID, balance)
	if err != nil {
		t.Fatalf("seed ledger(%s): %v", userID, err)
	}
}

// SeedCards mints n cards owned by ownerID, each with its own template.
func SeedCards(t *testing.T, db *sql.DB, ownerID string, n int) []uuid.UUID {
	t.Helper()

	ids := make([]uuid.UUID, 0, n)
	for i := range n {
		templateID := uuid.New()

		_, err := db.Exec(`
			INSERT INTO card_templates (id, name, elemental_type, rarity, power_stats, source_image_id, creator_id)
			VALUES ($1, $2, 'FIRE', 'COMMON', '{"attack":1,"defense":1,"speed":1}', $3, $4)
		`, templateID, fmt.Sprintf("card %d", i+1), "img-"+templateID.String(), ownerID)
		if err != nil {
			t.Fatalf("seed template: %v", err)
		}

		cardID := uuid.New()

		_, err = db.Exec(`
			INSERT INTO trading_cards (id, template_id, user_id) VALUES ($1, $2, $3)
		`, cardID, templateID, ownerID)
		if err != nil {
			t.Fatalf("seed card: %v", err)
		}

		ids = append(ids, cardID)
	}

	return ids
}

// Balance reads the durable balance of userID.
func Balance(t *testing.T, db *sql.DB, userID string) int64 {
	t.Helper()

	var bal int64

	err := db.QueryRow(`SELECT balance FROM credit_balances WHERE user_id = $1`, userID).Scan(&bal)
	if err != nil {
		t.Fatalf("read balance(%s): %v", userID, err)
	}

	return bal
}

// LedgerSum sums every ledger row of userID.
func LedgerSum(t *testing.T, db *sql.DB, userID string) int64 {
	t.Helper()

	var sum int64

	err := db.QueryRow(`SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1`, userID).Scan(&sum)
	if err != nil {
		t.Fatalf("sum ledger(%s): %v", userID, err)
	}

	return sum
}

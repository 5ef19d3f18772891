package api

import (
	"context"

	"github.com/fastprodman/pulsecards/internal/repos/cards"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
	"github.com/fastprodman/pulsecards/internal/repos/listings"
	"github.com/fastprodman/pulsecards/internal/repos/packs"
	"github.com/fastprodman/pulsecards/internal/services/cardpool"
	"github.com/fastprodman/pulsecards/internal/services/challenges"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/fastprodman/pulsecards/internal/services/progression"
	"github.com/fastprodman/pulsecards/internal/services/referral"
	"github.com/fastprodman/pulsecards/internal/services/sharing"
	"github.com/google/uuid"
)

type CreditsService interface {
	GetCredits(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit int) ([]creditsrepo.Entry, error)
	Packages() []credits.Package
	UseCredits(ctx context.Context, userID string, amount int64, description string) (bool, error)
	ChargeGeneration(ctx context.Context, userID string) (bool, error)
	CreatePurchaseIntent(ctx context.Context, userID, packageID string) (credits.PurchaseIntent, error)
	CompletePurchase(ctx context.Context, paymentIntentID string) (credits.CompletedPurchase, error)
}

type SharingService interface {
	RecordShare(ctx context.Context, userID, target string) (sharing.Result, error)
}

type ReferralService interface {
	GenerateCode(ctx context.Context, userID string) (string, error)
	UseCode(ctx context.Context, code, newUserID string) (referral.Result, error)
}

type CardService interface {
	MintCard(ctx context.Context, userID string, req cardpool.MintRequest) (cards.CollectionCard, error)
	ListCards(ctx context.Context, userID string) ([]cards.CollectionCard, error)
	CreatePack(ctx context.Context, userID, name, description string) (packs.Pack, error)
	ListPacks(ctx context.Context, userID string) ([]packs.Pack, error)
	GetPack(ctx context.Context, packID uuid.UUID) (cardpool.PackView, error)
	AddCardsToPack(ctx context.Context, packID uuid.UUID, userID string, cardIDs []uuid.UUID) ([]packs.Entry, error)
	RemoveCardFromPack(ctx context.Context, packID uuid.UUID, userID string, cardID uuid.UUID) error
	RestockPack(ctx context.Context, packID uuid.UUID, userID string) error
}

type MarketplaceService interface {
	CreateListing(ctx context.Context, sellerID string, packID uuid.UUID, price int64) (listings.Listing, error)
	CancelListing(ctx context.Context, listingID uuid.UUID, sellerID string) (listings.Listing, error)
	GetListing(ctx context.Context, listingID uuid.UUID) (listings.Listing, error)
	ListActive(ctx context.Context, limit, offset int) ([]listings.Listing, error)
	PurchaseListing(ctx context.Context, listingID uuid.UUID, buyerID string) (listings.Transaction, error)
}

type ProgressionService interface {
	AwardXP(ctx context.Context, userID string, amount int64, reason string) (progression.Award, error)
	ClaimReward(ctx context.Context, rewardID uuid.UUID, userID string) (progression.Claim, error)
	Progress(ctx context.Context, userID string) (progression.Summary, error)
}

type ChallengeService interface {
	Today(ctx context.Context, userID string) ([]challenges.Status, error)
	RecordProgress(ctx context.Context, userID string, challengeID uuid.UUID, increment int) (challenges.Result, error)
	RecordAction(ctx context.Context, userID, action string) error
}

// Services is everything the router serves. Nil members leave their routes
// unregistered.
type Services struct {
	Credits     CreditsService
	Sharing     SharingService
	Referral    ReferralService
	Cards       CardService
	Marketplace MarketplaceService
	Progression ProgressionService
	Challenges  ChallengeService
}

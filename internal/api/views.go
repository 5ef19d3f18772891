package api

import (
	"time"

	"github.com/fastprodman/pulsecards/internal/repos/cards"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
	"github.com/fastprodman/pulsecards/internal/repos/listings"
	"github.com/fastprodman/pulsecards/internal/repos/packs"
	"github.com/fastprodman/pulsecards/internal/repos/rewards"
	"github.com/fastprodman/pulsecards/internal/services/cardpool"
	"github.com/fastprodman/pulsecards/internal/services/challenges"
	"github.com/google/uuid"
)

type ledgerEntryView struct {
	ID          uuid.UUID      `json:"id"`
	Amount      int64          `json:"amount"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func toLedgerEntries(in []creditsrepo.Entry) []ledgerEntryView {
	out := make([]ledgerEntryView, 0, len(in))
	for _, e := range in {
		out = append(out, ledgerEntryView{
			ID:          e.ID,
			Amount:      e.Amount,
			Type:        string(e.Type),
			Description: e.Description,
			Metadata:    e.Metadata,
			CreatedAt:   e.CreatedAt,
		})
	}

	return out
}

type templateView struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	ElementalType string           `json:"elementalType"`
	Rarity        string           `json:"rarity"`
	PowerStats    cards.PowerStats `json:"powerStats"`
	SourceImageID string           `json:"sourceImageId"`
	CreatorID     string           `json:"creatorId"`
}

func toTemplate(t cards.Template) templateView {
	return templateView{
		ID:            t.ID,
		Name:          t.Name,
		Description:   t.Description,
		ElementalType: t.ElementalType,
		Rarity:        t.Rarity,
		PowerStats:    t.Stats,
		SourceImageID: t.SourceImageID,
		CreatorID:     t.CreatorID,
	}
}

type cardView struct {
	ID       uuid.UUID    `json:"id"`
	Template templateView `json:"template"`
	InPack   bool         `json:"inPack"`
	PackID   *uuid.UUID   `json:"packId,omitempty"`
}

func toCard(c cards.CollectionCard) cardView {
	v := cardView{ID: c.Card.ID, Template: toTemplate(c.Template), InPack: c.InPack()}
	if v.InPack {
		id := c.Card.Custody.PackID
		v.PackID = &id
	}

	return v
}

type packCardView struct {
	Position int          `json:"position"`
	CardID   uuid.UUID    `json:"cardId"`
	Template templateView `json:"template"`
}

type packView struct {
	ID          uuid.UUID      `json:"id"`
	UserID      string         `json:"userId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	DeliveredAt *time.Time     `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	Cards       []packCardView `json:"cards,omitempty"`
	Complete    bool           `json:"complete"`
}

func toPack(p packs.Pack) packView {
	return packView{
		ID:          p.ID,
		UserID:      p.UserID,
		Name:        p.Name,
		Description: p.Description,
		DeliveredAt: p.DeliveredAt,
		CreatedAt:   p.CreatedAt,
	}
}

func toPackView(pv cardpool.PackView) packView {
	v := toPack(pv.Pack)
	v.Complete = pv.Complete()
	v.Cards = make([]packCardView, 0, len(pv.Cards))

	for _, c := range pv.Cards {
		v.Cards = append(v.Cards, packCardView{Position: c.Position, CardID: c.CardID, Template: toTemplate(c.Template)})
	}

	return v
}

type packEntryView struct {
	PackID     uuid.UUID `json:"packId"`
	CardID     uuid.UUID `json:"cardId"`
	TemplateID uuid.UUID `json:"templateId"`
	Position   int       `json:"position"`
}

func toPackEntries(in []packs.Entry) []packEntryView {
	out := make([]packEntryView, 0, len(in))
	for _, e := range in {
		out = append(out, packEntryView{PackID: e.PackID, CardID: e.CardID, TemplateID: e.TemplateID, Position: e.Position})
	}

	return out
}

type listingView struct {
	ID          uuid.UUID  `json:"id"`
	PackID      uuid.UUID  `json:"packId"`
	SellerID    string     `json:"sellerId"`
	Price       int64      `json:"price"`
	Status      string     `json:"status"`
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
	SoldAt      *time.Time `json:"soldAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func toListing(l listings.Listing) listingView {
	return listingView{
		ID:          l.ID,
		PackID:      l.PackID,
		SellerID:    l.SellerID,
		Price:       l.Price,
		Status:      string(l.Status),
		LockedUntil: l.LockedUntil,
		SoldAt:      l.SoldAt,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

type transactionView struct {
	ID          uuid.UUID  `json:"id"`
	ListingID   uuid.UUID  `json:"listingId"`
	BuyerID     string     `json:"buyerId"`
	SellerID    string     `json:"sellerId"`
	Amount      int64      `json:"amount"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toTransaction(t listings.Transaction) transactionView {
	return transactionView{
		ID:          t.ID,
		ListingID:   t.ListingID,
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		Amount:      t.Amount,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}

type rewardView struct {
	ID            uuid.UUID  `json:"id"`
	Level         int        `json:"level"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	RewardType    string     `json:"rewardType"`
	RewardCredits int64      `json:"rewardCredits"`
	Claimed       bool       `json:"claimed"`
	ClaimedAt     *time.Time `json:"claimedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func toReward(r rewards.Reward) rewardView {
	return rewardView{
		ID:            r.ID,
		Level:         r.Milestone.Level,
		Title:         r.Milestone.Title,
		Description:   r.Milestone.Description,
		RewardType:    r.Milestone.RewardType,
		RewardCredits: r.Milestone.RewardCredits,
		Claimed:       r.Claimed,
		ClaimedAt:     r.ClaimedAt,
		CreatedAt:     r.CreatedAt,
	}
}

func toRewards(in []rewards.Reward) []rewardView {
	out := make([]rewardView, 0, len(in))
	for _, r := range in {
		out = append(out, toReward(r))
	}

	return out
}

type challengeView struct {
	ID            uuid.UUID  `json:"id"`
	Action        string     `json:"action"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	RequiredCount int        `json:"requiredCount"`
	CreditReward  int64      `json:"creditReward"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	Progress      int        `json:"progress"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

func toChallenge(st challenges.Status) challengeView {
	return challengeView{
		ID:            st.Challenge.ID,
		Action:        st.Challenge.Action,
		Title:         st.Challenge.Title,
		Description:   st.Challenge.Description,
		RequiredCount: st.Challenge.RequiredCount,
		CreditReward:  st.Challenge.CreditReward,
		ExpiresAt:     st.Challenge.ExpiresAt,
		Progress:      st.Progress,
		Completed:     st.Completed,
		CompletedAt:   st.CompletedAt,
	}
}

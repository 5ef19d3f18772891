package api

import "net/http"

type shareRequest struct {
	Target string `json:"target"`
}

// ShareHandler handles POST /share
func (h *HandlerProvider) ShareHandler(w http.ResponseWriter, r *http.Request) {
	var req shareRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Sharing.RecordShare(r.Context(), userID(r), req.Target)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GenerateReferralHandler handles POST /referral/generate
func (h *HandlerProvider) GenerateReferralHandler(w http.ResponseWriter, r *http.Request) {
	code, err := h.svc.Referral.GenerateCode(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

type useReferralRequest struct {
	Code string `json:"code"`
}

// UseReferralHandler handles POST /referral/use
func (h *HandlerProvider) UseReferralHandler(w http.ResponseWriter, r *http.Request) {
	var req useReferralRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Referral.UseCode(r.Context(), req.Code, userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "referral code applied",
		"creditsAwarded": res.WelcomeBonus,
		"referralId":     res.ReferralID,
	})
}

// ProgressHandler handles GET /xp
func (h *HandlerProvider) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Progression.Progress(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"level":               sum.Level,
		"xp":                  sum.XP,
		"totalXpEarned":       sum.TotalXPEarned,
		"currentLevelXp":      sum.CurrentLevelXP,
		"nextLevelXp":         sum.NextLevelXP,
		"progressPercent":     sum.ProgressPercent,
		"levelUpNotification": sum.LevelUpNotification,
		"unclaimedRewards":    toRewards(sum.UnclaimedRewards),
	})
}

type awardXPRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// AwardXPHandler handles POST /xp/award
func (h *HandlerProvider) AwardXPHandler(w http.ResponseWriter, r *http.Request) {
	var req awardXPRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	award, err := h.svc.Progression.AwardXP(r.Context(), userID(r), req.Amount, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"xp":            award.XP,
		"totalXpEarned": award.TotalXPEarned,
		"level":         award.Level,
		"previousLevel": award.PreviousLevel,
		"leveledUp":     award.LeveledUp,
		"nextLevelXp":   award.NextLevelXP,
		"newRewards":    toRewards(award.NewRewards),
	})
}

// ClaimRewardHandler handles POST /rewards/{rewardId}/claim
func (h *HandlerProvider) ClaimRewardHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "rewardId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	claim, err := h.svc.Progression.ClaimReward(r.Context(), id, userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"reward":         toReward(claim.Reward),
		"creditsAwarded": claim.CreditsAwarded,
	})
}

// TodayChallengesHandler handles GET /challenges/today
func (h *HandlerProvider) TodayChallengesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Challenges.Today(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]challengeView, 0, len(list))
	for _, st := range list {
		out = append(out, toChallenge(st))
	}

	writeJSON(w, http.StatusOK, map[string]any{"challenges": out})
}

type challengeProgressRequest struct {
	Increment *int `json:"increment"`
}

// ChallengeProgressHandler handles POST /challenges/{challengeId}/progress.
// A missing increment counts as one.
func (h *HandlerProvider) ChallengeProgressHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "challengeId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req challengeProgressRequest

	err = decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	inc := 1
	if req.Increment != nil {
		inc = *req.Increment
	}

	res, err := h.svc.Challenges.RecordProgress(r.Context(), userID(r), id, inc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"challenge":      toChallenge(res.Status),
		"justCompleted":  res.JustCompleted,
		"creditsAwarded": res.CreditsAwarded,
	})
}

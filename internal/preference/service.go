package preference

import (
	"context"
	"errors"
	"fmt"

	"PeerMatch/internal/matchmaker"
	"PeerMatch/internal/utils"
)

// Canceller withdraws a user's pending match request.
type Canceller interface {
	Cancel(ctx context.Context, userID string) error
}

type Service struct {
	repo    Repository
	matches Canceller
}

// NewService wires the preference store. matches may be nil when no
// matchmaker runs in the process.
func NewService(repo Repository, matches Canceller) *Service {
	return &Service{repo: repo, matches: matches}
}

// Upsert validates req and stores it as userID's preference.
func (s *Service) Upsert(ctx context.Context, userID string, req matchmaker.PreferenceRequest) (matchmaker.Preference, error) {
	if req.UserID == "" {
		req.UserID = userID
	}
	if req.UserID != userID {
		return matchmaker.Preference{}, fmt.Errorf("%w: userId in path and body differ", matchmaker.ErrInvalidPreference)
	}
	p, err := matchmaker.NewPreference(req)
	if err != nil {
		return matchmaker.Preference{}, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return matchmaker.Preference{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID string) (matchmaker.Preference, error) {
	return s.repo.FindByID(ctx, userID)
}

// Delete removes userID's preference and withdraws any match request the user
// still has pending.
func (s *Service) Delete(ctx context.Context, userID string) error {
	exists, err := s.repo.ExistsByID(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrPreferenceNotFound
	}
	if err := s.repo.DeleteByID(ctx, userID); err != nil {
		return err
	}
	if s.matches == nil {
		return nil
	}
	if err := s.matches.Cancel(ctx, userID); err != nil && !errors.Is(err, matchmaker.ErrNoPendingRequest) {
		utils.Log.Warn("could not withdraw pending match after preference delete", "user", userID, "err", err)
	}
	return nil
}

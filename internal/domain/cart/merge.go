package cart

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MergeGuest folds a guest cart into the user's cart. Variants the user
// already has keep the user's quantity; the rest are appended. The guest cart
// is deleted whether or not the merge succeeds.
func (s *Service) MergeGuest(ctx context.Context, guestToken, userID string) (*Cart, error) {
	guest := GuestOwner(guestToken)
	user := UserOwner(userID)
	if !guest.Valid() || !user.Valid() {
		return nil, ErrNoOwner
	}

	defer func() {
		if err := s.guests.Delete(ctx, guest); err != nil {
			s.logger.Warn("delete guest cart failed", zap.String("owner", guest.Key()), zap.Error(err))
		}
	}()

	guestCart, err := s.hydrate(ctx, guest)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	userCart, err := s.hydrate(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load user cart: %w", err)
	}

	added := 0
	for _, it := range guestCart.Items {
		if userCart.findByVariant(it.VariantID) >= 0 {
			continue
		}
		userCart.Items = append(userCart.Items, it)
		added++
	}
	if added == 0 {
		return userCart, nil
	}

	if err := s.save(ctx, userCart); err != nil {
		return userCart, fmt.Errorf("save merged cart: %w", err)
	}
	s.logger.Info("guest cart merged",
		zap.String("user_id", userID),
		zap.Int("added", added),
		zap.Int("skipped", len(guestCart.Items)-added),
	)
	return userCart, nil
}

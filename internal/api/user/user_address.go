package user

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/greenbasket/garden-backend/app/observability/metrics"
	"github.com/greenbasket/garden-backend/internal/types"
)

// AddressNormalizer repairs the legacy defect where the address column holds
// a JSON-encoded string instead of a structured object. Repair is
// opportunistic and best-effort: it runs whenever a record passes through the
// read/update paths, and a failed parse leaves the string in place so the
// record stays usable.
type AddressNormalizer struct {
	repo   UserRepo
	logger *slog.Logger
}

func NewAddressNormalizer(repo UserRepo, logger *slog.Logger) *AddressNormalizer {
	return &AddressNormalizer{
		repo:   repo,
		logger: logger,
	}
}

// Normalize converts a raw string address into its structured form and
// persists the repair. It never returns an error: callers always proceed
// with the record, repaired or not. Already-structured addresses are a
// no-op, so running it twice is safe. Two concurrent repairs of the same
// record are a benign last-write-wins race.
func (n *AddressNormalizer) Normalize(ctx context.Context, user *types.User) *types.User {
	if user == nil || !user.Address.IsRaw() {
		return user
	}

	l := n.logger.With(slog.String("component", "AddressNormalizer"), slog.String("userID", user.ID.String()))

	var addr types.Address
	if err := json.Unmarshal([]byte(user.Address.Raw), &addr); err != nil {
		l.WarnContext(ctx, "Failed to parse legacy string address, leaving record unchanged", slog.Any("error", err))
		return user
	}
	if addr.Country == "" {
		addr.Country = types.DefaultCountry
	}

	if err := n.repo.ReplaceAddress(ctx, user.ID, addr); err != nil {
		l.WarnContext(ctx, "Failed to persist repaired address", slog.Any("error", err))
		return user
	}

	user.Address = types.StructuredAddress(addr)
	if m := metrics.Get(); m != nil {
		m.AddressRepairsTotal.Add(ctx, 1)
	}
	l.InfoContext(ctx, "Repaired legacy string address")
	return user
}

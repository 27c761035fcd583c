// Package gate decides whether new paid registrations are currently accepted.
package gate

import "context"

// Settings is the slice of the configuration surface the gate reads.
// *config.Config from wbf satisfies it.
type Settings interface {
	GetBool(key string) bool
	GetInt(key string) int
	GetString(key string) string
}

// PaidCounter is the single store query the gate depends on.
type PaidCounter interface {
	CountPaidAttendees(ctx context.Context) (int, error)
}

// Gate evaluates the registration window and the ticket pool. Both checks
// read configuration and the paid count fresh on every call; caching either
// would reopen the capacity race.
type Gate struct {
	cfg  Settings
	repo PaidCounter
}

func New(cfg Settings, repository PaidCounter) *Gate {
	return &Gate{cfg: cfg, repo: repository}
}

func (g *Gate) RegistrationOpen() bool {
	return g.cfg.GetBool("event.registration_open")
}

func (g *Gate) SoldOut(ctx context.Context) (bool, error) {
	if g.cfg.GetBool("event.sold_out_override") {
		return true, nil
	}

	capacity := g.cfg.GetInt("event.capacity")
	if capacity <= 0 {
		return true, nil
	}

	paid, err := g.repo.CountPaidAttendees(ctx)
	if err != nil {
		return false, err
	}
	return paid >= capacity, nil
}

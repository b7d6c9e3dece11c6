package discovery

import (
	"context"
	"net/netip"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultReconcileConcurrency bounds parallel identify calls for missing zones
const DefaultReconcileConcurrency = 16

// Reconciler completes households from their topology. A sweep often misses
// zones (asleep, firewalled, slow to answer); any member of a household can
// list the rest.
type Reconciler struct {
	Topology    Topology
	Identifier  Identifier
	Concurrency int
	Logger      *zap.Logger
}

type missingMember struct {
	household string
	member    HouseholdMember
}

// Reconcile returns devices plus every household member they lead to,
// deduplicated by address and sorted. Topology and identify failures are
// logged and leave the household partially represented.
func (r *Reconciler) Reconcile(ctx context.Context, devices []Device) []Device {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	known := make(map[netip.Addr]struct{}, len(devices))
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		addr := d.Addr()
		if _, ok := known[addr]; ok {
			continue
		}
		known[addr] = struct{}{}
		out = append(out, d)
	}
	SortDevices(out)

	if r.Topology == nil {
		return out
	}

	// One topology query per household, asked of its first member in sorted
	// order
	queried := make(map[string]struct{})
	var missing []missingMember
	for _, d := range out {
		if d.HouseholdID == "" {
			continue
		}
		if _, ok := queried[d.HouseholdID]; ok {
			continue
		}
		queried[d.HouseholdID] = struct{}{}

		members, err := r.Topology.HouseholdMembers(ctx, d.Addr())
		if err != nil {
			log.Debug("Household topology unavailable",
				zap.String("household", d.HouseholdID),
				zap.String("ip", d.IP),
				zap.Error(err))
			continue
		}

		for _, m := range members {
			if _, ok := known[m.Addr]; ok {
				continue
			}
			known[m.Addr] = struct{}{}
			missing = append(missing, missingMember{household: d.HouseholdID, member: m})
		}
	}

	if len(missing) == 0 {
		return out
	}

	found := r.identifyMissing(ctx, missing, log)
	out = append(out, found...)
	SortDevices(out)

	log.Info("Reconciled households",
		zap.Int("households", len(queried)),
		zap.Int("added", len(found)))

	return out
}

// identifyMissing identifies zones the sweep did not find. A zone that will
// not identify is still listed using what its household reported about it.
func (r *Reconciler) identifyMissing(ctx context.Context, missing []missingMember, log *zap.Logger) []Device {
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultReconcileConcurrency
	}

	var (
		mu    sync.Mutex
		found []Device
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, mm := range missing {
		mm := mm // per-iteration copy; go.mod targets go 1.21 loop semantics
		g.Go(func() error {
			device := Device{
				HouseholdID: mm.household,
				IP:          mm.member.Addr.String(),
				Name:        mm.member.Name,
				Visible:     mm.member.Visible,
			}

			if r.Identifier != nil {
				id := r.Identifier.Identify(gctx, mm.member.Addr)
				if id.Status == StatusIdentified {
					device = id.Device
				} else {
					log.Debug("Household member did not identify, using topology entry",
						zap.String("ip", device.IP),
						zap.String("name", device.Name),
						zap.Stringer("status", id.Status),
						zap.Error(id.Err))
				}
			}

			mu.Lock()
			found = append(found, device)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return slices.Clip(found)
}

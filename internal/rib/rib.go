// Package rib implements the RIB sink collaborator spec.md §1/§4.6
// names as out of scope for the FSM itself: something the peering
// engine hands decoded UPDATE content to. Grounded on the teacher's
// internal/state/writer.go batch-insert idiom, collapsed from its
// multi-table current_routes/adj_rib_in/sync-status pipeline down to a
// single Deliver call per UPDATE, since this speaker carries one
// session rather than reconciling many routers' periodic dumps.
package rib

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/route-beacon/bgp-speaker/internal/bgp"
	"github.com/route-beacon/bgp-speaker/internal/metrics"
)

// Sink is the collaborator the peering engine delivers decoded UPDATE
// content to (spec.md §4.6's "hand UPDATE to RIB" external interface).
// internal/peerd depends on this interface, not on PostgresSink
// directly, so tests can substitute a capturing fake.
type Sink interface {
	Deliver(ctx context.Context, peerID string, events []*bgp.RouteEvent) error
}

// PostgresSink is the production Sink, upserting announcements and
// removing withdrawals in a single transaction per UPDATE.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresSink(pool *pgxpool.Pool, logger *zap.Logger) *PostgresSink {
	return &PostgresSink{pool: pool, logger: logger}
}

// Ping satisfies internal/httpd.DBChecker.
func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Deliver applies one UPDATE's route events — announcements and
// withdrawals alike — within a single transaction, matching the
// atomicity the teacher's FlushBatch gives a batch of parsed routes.
func (s *PostgresSink) Deliver(ctx context.Context, peerID string, events []*bgp.RouteEvent) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ev := range events {
		switch ev.Action {
		case "A":
			if err := s.upsert(ctx, tx, peerID, ev); err != nil {
				return fmt.Errorf("upsert route: %w", err)
			}
		case "D":
			if err := s.delete(ctx, tx, peerID, ev); err != nil {
				return fmt.Errorf("delete route: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	metrics.RIBDeliveryDuration.WithLabelValues("deliver").Observe(time.Since(start).Seconds())
	return nil
}

func (s *PostgresSink) upsert(ctx context.Context, tx pgx.Tx, peerID string, ev *bgp.RouteEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO adj_rib_in (peer_id, afi, prefix, path_id, nexthop, as_path, origin,
			localpref, med, communities_std, communities_ext, communities_large, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (peer_id, afi, prefix, path_id) DO UPDATE SET
			nexthop = EXCLUDED.nexthop,
			as_path = EXCLUDED.as_path,
			origin = EXCLUDED.origin,
			localpref = EXCLUDED.localpref,
			med = EXCLUDED.med,
			communities_std = EXCLUDED.communities_std,
			communities_ext = EXCLUDED.communities_ext,
			communities_large = EXCLUDED.communities_large,
			updated_at = now()`,
		peerID, ev.AFI, ev.Prefix, ev.PathID, nullableString(ev.Nexthop), nullableString(ev.ASPath),
		nullableString(ev.Origin), ev.LocalPref, ev.MED, ev.CommStd, ev.CommExt, ev.CommLarge,
	)
	return err
}

func (s *PostgresSink) delete(ctx context.Context, tx pgx.Tx, peerID string, ev *bgp.RouteEvent) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM adj_rib_in WHERE peer_id = $1 AND afi = $2 AND prefix = $3 AND path_id = $4`,
		peerID, ev.AFI, ev.Prefix, ev.PathID,
	)
	return err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

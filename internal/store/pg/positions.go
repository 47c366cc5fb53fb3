package pg

import (
	"context"
	"fmt"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

// Positions is the durable position collection: one jsonb document per open
// trade, keyed by the entry order id. The stop order id is mirrored into its
// own column so reconciliation can point-look-up by either order.
type Positions struct {
	db db.TxManager
}

func NewPositions(txm db.TxManager) *Positions {
	return &Positions{db: txm}
}

func (s *Positions) Insert(ctx context.Context, p *models.Position) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Positions.Insert: %w", err)
		}
	}()

	doc, err := sonic.Marshal(p)
	if err != nil {
		return err
	}

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO positions (asset, entry_order_id, stop_order_id, doc, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.Asset, p.Entry.OrderID, p.Stop.OrderID, doc, p.CreatedAt,
		)
		return err
	})
}

// Update replaces the whole document of an existing position.
func (s *Positions) Update(ctx context.Context, p *models.Position) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Positions.Update: %w", err)
		}
	}()

	doc, err := sonic.Marshal(p)
	if err != nil {
		return err
	}

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctxTx,
			`UPDATE positions SET stop_order_id = $1, doc = $2 WHERE entry_order_id = $3`,
			p.Stop.OrderID, doc, p.Entry.OrderID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("position entry_order_id=%d not found", p.Entry.OrderID)
		}
		return nil
	})
}

func (s *Positions) Delete(ctx context.Context, entryOrderID int64) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Positions.Delete: %w", err)
		}
	}()

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `DELETE FROM positions WHERE entry_order_id = $1`, entryOrderID)
		return err
	})
}

func (s *Positions) ListActive(ctx context.Context) (out []*models.Position, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Positions.ListActive: %w", err)
		}
	}()

	rows, err := s.db.Conn().Query(ctx, `SELECT doc FROM positions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		p := &models.Position{}
		if err := sonic.Unmarshal(doc, p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetBySymbol returns the oldest active position for an asset, pgx.ErrNoRows
// when the asset has none.
func (s *Positions) GetBySymbol(ctx context.Context, asset string) (*models.Position, error) {
	return s.getBy(ctx, `SELECT doc FROM positions WHERE asset = $1 ORDER BY created_at LIMIT 1`, asset)
}

func (s *Positions) GetByEntryOrderID(ctx context.Context, orderID int64) (*models.Position, error) {
	return s.getBy(ctx, `SELECT doc FROM positions WHERE entry_order_id = $1`, orderID)
}

func (s *Positions) GetByStopOrderID(ctx context.Context, orderID int64) (*models.Position, error) {
	return s.getBy(ctx, `SELECT doc FROM positions WHERE stop_order_id = $1`, orderID)
}

func (s *Positions) getBy(ctx context.Context, query string, arg any) (p *models.Position, err error) {
	defer func() {
		if err != nil && err != pgx.ErrNoRows {
			err = fmt.Errorf("pg.Positions.getBy: %w", err)
		}
	}()

	var doc []byte
	if err = s.db.Conn().QueryRow(ctx, query, arg).Scan(&doc); err != nil {
		return nil, err
	}
	p = &models.Position{}
	if err = sonic.Unmarshal(doc, p); err != nil {
		return nil, err
	}
	return p, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// StateStore implements domain.StateStore using PostgreSQL. Order sets are
// stored as JSONB so the state round-trips without a per-order table.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore creates a StateStore backed by the given connection pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Save upserts the full state snapshot.
func (s *StateStore) Save(ctx context.Context, state *domain.TradeState) error {
	instrument, err := marshalNullable(state.Instrument)
	if err != nil {
		return fmt.Errorf("postgres: marshal instrument: %w", err)
	}
	signalInfo, err := marshalNullable(state.SignalInfo)
	if err != nil {
		return fmt.Errorf("postgres: marshal signal info: %w", err)
	}
	orderSets := make([][]byte, 4)
	for i, set := range []domain.Orders{state.New, state.ToCancel, state.Active, state.Bought} {
		if set == nil {
			set = domain.Orders{}
		}
		if orderSets[i], err = json.Marshal(set); err != nil {
			return fmt.Errorf("postgres: marshal orders: %w", err)
		}
	}

	const query = `
		INSERT INTO trade_states (
			id, instrument, signal_info, is_active,
			new_orders, cancel_orders, active_orders, bought_orders,
			buy_orders_price, partial_coins_amount, calculated_deposit_order,
			limit_deposit, max_buy_depth, max_order_count,
			take_profit, first_step_deviation, fee_percent, work_mode,
			last_deal_set_time, last_first_buy_time, last_sell_time, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			instrument = EXCLUDED.instrument,
			signal_info = EXCLUDED.signal_info,
			is_active = EXCLUDED.is_active,
			new_orders = EXCLUDED.new_orders,
			cancel_orders = EXCLUDED.cancel_orders,
			active_orders = EXCLUDED.active_orders,
			bought_orders = EXCLUDED.bought_orders,
			buy_orders_price = EXCLUDED.buy_orders_price,
			partial_coins_amount = EXCLUDED.partial_coins_amount,
			calculated_deposit_order = EXCLUDED.calculated_deposit_order,
			limit_deposit = EXCLUDED.limit_deposit,
			max_buy_depth = EXCLUDED.max_buy_depth,
			max_order_count = EXCLUDED.max_order_count,
			take_profit = EXCLUDED.take_profit,
			first_step_deviation = EXCLUDED.first_step_deviation,
			fee_percent = EXCLUDED.fee_percent,
			work_mode = EXCLUDED.work_mode,
			last_deal_set_time = EXCLUDED.last_deal_set_time,
			last_first_buy_time = EXCLUDED.last_first_buy_time,
			last_sell_time = EXCLUDED.last_sell_time,
			updated_at = NOW()`

	_, err = s.pool.Exec(ctx, query,
		state.ID, instrument, signalInfo, state.IsActive,
		orderSets[0], orderSets[1], orderSets[2], orderSets[3],
		state.BuyOrdersPrice, state.PartialCoinsAmount, state.CalculatedDepositOrder,
		state.LimitDeposit, state.MaxBuyDepth, state.MaxOrderCount,
		state.TakeProfit, state.FirstStepDeviation, state.FeePercent, string(state.WorkMode),
		state.LastDealSetTime, state.LastFirstBuyTime, state.LastSellTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: save state %s: %w", state.ID, err)
	}
	return nil
}

// Get returns one state by id, or domain.ErrNotFound.
func (s *StateStore) Get(ctx context.Context, id string) (*domain.TradeState, error) {
	row := s.pool.QueryRow(ctx, selectStates+" WHERE id = $1", id)
	state, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get state %s: %w", id, err)
	}
	return state, nil
}

// GetAll returns every persisted state.
func (s *StateStore) GetAll(ctx context.Context) ([]*domain.TradeState, error) {
	rows, err := s.pool.Query(ctx, selectStates)
	if err != nil {
		return nil, fmt.Errorf("postgres: list states: %w", err)
	}
	defer rows.Close()

	var states []*domain.TradeState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan state: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// Delete removes one state.
func (s *StateStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM trade_states WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: delete state %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Clear removes every state.
func (s *StateStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM trade_states"); err != nil {
		return fmt.Errorf("postgres: clear states: %w", err)
	}
	return nil
}

const selectStates = `
	SELECT id, instrument, signal_info, is_active,
		new_orders, cancel_orders, active_orders, bought_orders,
		buy_orders_price, partial_coins_amount, calculated_deposit_order,
		limit_deposit, max_buy_depth, max_order_count,
		take_profit, first_step_deviation, fee_percent, work_mode,
		last_deal_set_time, last_first_buy_time, last_sell_time
	FROM trade_states`

func scanState(scanner interface{ Scan(dest ...any) error }) (*domain.TradeState, error) {
	var (
		state                  domain.TradeState
		instrument, signalInfo []byte
		orderSets              [4][]byte
		workMode               string
	)
	err := scanner.Scan(
		&state.ID, &instrument, &signalInfo, &state.IsActive,
		&orderSets[0], &orderSets[1], &orderSets[2], &orderSets[3],
		&state.BuyOrdersPrice, &state.PartialCoinsAmount, &state.CalculatedDepositOrder,
		&state.LimitDeposit, &state.MaxBuyDepth, &state.MaxOrderCount,
		&state.TakeProfit, &state.FirstStepDeviation, &state.FeePercent, &workMode,
		&state.LastDealSetTime, &state.LastFirstBuyTime, &state.LastSellTime,
	)
	if err != nil {
		return nil, err
	}

	state.WorkMode = domain.WorkMode(workMode)
	if instrument != nil {
		if err := json.Unmarshal(instrument, &state.Instrument); err != nil {
			return nil, fmt.Errorf("unmarshal instrument: %w", err)
		}
	}
	if signalInfo != nil {
		if err := json.Unmarshal(signalInfo, &state.SignalInfo); err != nil {
			return nil, fmt.Errorf("unmarshal signal info: %w", err)
		}
	}
	for i, dst := range []*domain.Orders{&state.New, &state.ToCancel, &state.Active, &state.Bought} {
		if err := json.Unmarshal(orderSets[i], dst); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
	}
	return &state, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case *domain.Instrument:
		if t == nil {
			return nil, nil
		}
	case *domain.SignalInfo:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

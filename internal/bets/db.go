package bets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"sports-analytics/internal/odds"
)

// ErrNotFound is returned when no bet has the requested ID.
var ErrNotFound = errors.New("bet not found")

// ErrInvalidBet wraps validation failures on AddBet and UpdateStake.
var ErrInvalidBet = errors.New("invalid bet")

// BetTypeMoneyline is the only bet type the arbitrage check understands.
const BetTypeMoneyline = "moneyline"

// Bet is a wager the user placed elsewhere and wants monitored.
type Bet struct {
	ID             string          `json:"id"`
	Sport          string          `json:"sport"`
	GameID         string          `json:"game_id"`
	BetType        string          `json:"bet_type"`
	Team           string          `json:"team_bet_on"`
	Bookmaker      string          `json:"bookie"`
	American       int             `json:"line"`
	Stake          decimal.Decimal `json:"bet_amount"`
	AlertThreshold int             `json:"alert_threshold"` // Minimum arbitrage return, percent
	Active         bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DB handles bet storage
type DB struct {
	db *sql.DB
}

// NewDB opens (creating if needed) the bets database at dbPath.
func NewDB(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_bets (
		id TEXT PRIMARY KEY,
		sport TEXT NOT NULL DEFAULT '',
		game_id TEXT NOT NULL,
		bet_type TEXT NOT NULL,
		team_bet_on TEXT NOT NULL,
		bookie TEXT NOT NULL DEFAULT '',
		line INTEGER NOT NULL,
		bet_amount TEXT NOT NULL,
		alert_threshold INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_user_bets_game ON user_bets(game_id);
	CREATE INDEX IF NOT EXISTS idx_user_bets_active ON user_bets(is_active, bet_type);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func validate(b Bet) error {
	if strings.TrimSpace(b.GameID) == "" {
		return fmt.Errorf("%w: game_id is required", ErrInvalidBet)
	}
	if strings.TrimSpace(b.Team) == "" {
		return fmt.Errorf("%w: team_bet_on is required", ErrInvalidBet)
	}
	if _, err := odds.AmericanToDecimal(b.American); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBet, err)
	}
	if !b.Stake.IsPositive() {
		return fmt.Errorf("%w: bet_amount must be positive", ErrInvalidBet)
	}
	if b.AlertThreshold < 0 {
		return fmt.Errorf("%w: alert_threshold must be non-negative", ErrInvalidBet)
	}
	return nil
}

// AddBet validates and stores a new bet, assigning its ID and creation time.
// New bets are active and default to the moneyline bet type.
func (d *DB) AddBet(ctx context.Context, b Bet) (Bet, error) {
	if b.BetType == "" {
		b.BetType = BetTypeMoneyline
	}
	if err := validate(b); err != nil {
		return Bet{}, err
	}

	b.ID = uuid.NewString()
	b.Stake = b.Stake.Round(2)
	b.Active = true
	b.CreatedAt = time.Now().UTC()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO user_bets (id, sport, game_id, bet_type, team_bet_on, bookie, line, bet_amount, alert_threshold, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Sport, b.GameID, b.BetType, b.Team, b.Bookmaker, b.American, b.Stake, b.AlertThreshold, b.Active, b.CreatedAt)
	if err != nil {
		return Bet{}, fmt.Errorf("inserting bet: %w", err)
	}
	return b, nil
}

const selectBets = `
	SELECT id, sport, game_id, bet_type, team_bet_on, bookie, line, bet_amount, alert_threshold, is_active, created_at
	FROM user_bets`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBet(row scanner) (Bet, error) {
	var b Bet
	err := row.Scan(&b.ID, &b.Sport, &b.GameID, &b.BetType, &b.Team, &b.Bookmaker,
		&b.American, &b.Stake, &b.AlertThreshold, &b.Active, &b.CreatedAt)
	return b, err
}

// GetBet retrieves a bet by ID
func (d *DB) GetBet(ctx context.Context, id string) (Bet, error) {
	b, err := scanBet(d.db.QueryRowContext(ctx, selectBets+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Bet{}, ErrNotFound
	}
	if err != nil {
		return Bet{}, fmt.Errorf("scanning bet: %w", err)
	}
	return b, nil
}

func (d *DB) queryBets(ctx context.Context, where string, args ...interface{}) ([]Bet, error) {
	rows, err := d.db.QueryContext(ctx, selectBets+where+" ORDER BY rowid DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("querying bets: %w", err)
	}
	defer rows.Close()

	var bets []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bet row: %w", err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// ListBets returns every bet, newest first.
func (d *DB) ListBets(ctx context.Context) ([]Bet, error) {
	return d.queryBets(ctx, "")
}

// ListActiveBets returns the bets still being monitored.
func (d *DB) ListActiveBets(ctx context.Context) ([]Bet, error) {
	return d.queryBets(ctx, " WHERE is_active = 1")
}

// ListBetsByGame returns the bets placed on one game.
func (d *DB) ListBetsByGame(ctx context.Context, gameID string) ([]Bet, error) {
	return d.queryBets(ctx, " WHERE game_id = ?", gameID)
}

func (d *DB) execOne(ctx context.Context, what, query string, args ...interface{}) error {
	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBet removes a bet
func (d *DB) DeleteBet(ctx context.Context, id string) error {
	return d.execOne(ctx, "deleting bet", "DELETE FROM user_bets WHERE id = ?", id)
}

// UpdateStake changes the amount wagered on a bet.
func (d *DB) UpdateStake(ctx context.Context, id string, stake decimal.Decimal) error {
	if !stake.IsPositive() {
		return fmt.Errorf("%w: bet_amount must be positive", ErrInvalidBet)
	}
	return d.execOne(ctx, "updating stake", "UPDATE user_bets SET bet_amount = ? WHERE id = ?", stake.Round(2), id)
}

// SetActive turns monitoring of a bet on or off.
func (d *DB) SetActive(ctx context.Context, id string, active bool) error {
	return d.execOne(ctx, "updating bet", "UPDATE user_bets SET is_active = ? WHERE id = ?", active, id)
}

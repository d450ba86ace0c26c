package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"groceries-bot/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStore is the Store variant for deployments with a shared
// PostgreSQL instance. It has no file-level snapshot, so Backup returns
// ErrBackupUnsupported.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(config DatabaseConfig, logger *zap.Logger) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	store := &PostgresStore{db: db, logger: logger}
	if err := store.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("PostgreSQL store initialized",
		zap.String("host", config.Host),
		zap.String("dbname", config.DBName))
	return store, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := postgresMigrations.ReadFile("migrations_postgres.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}
	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) EnsureConversation(ctx context.Context, convID int64, title string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (conv_id, title, active_list_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (conv_id) DO NOTHING`, convID, title, DefaultListID)
	if err != nil {
		return fmt.Errorf("error creating conversation: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shopping_lists (conv_id, list_id, name)
			VALUES ($1, $2, $3)
			ON CONFLICT (conv_id, list_id) DO NOTHING`, convID, DefaultListID, DefaultListName); err != nil {
			return fmt.Errorf("error creating default list: %w", err)
		}
		s.logger.Info("Created new conversation with default list",
			zap.Int64("conv_id", convID))
	}

	return tx.Commit()
}

func (s *PostgresStore) CreateList(ctx context.Context, convID int64, listID, name string) (bool, error) {
	if err := s.EnsureConversation(ctx, convID, ""); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO shopping_lists (conv_id, list_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (conv_id, list_id) DO NOTHING`, convID, listID, name)
	if err != nil {
		return false, fmt.Errorf("error creating list: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	if n == 0 {
		s.logger.Warn("List already exists",
			zap.Int64("conv_id", convID),
			zap.String("list_id", listID))
		return false, nil
	}
	return true, nil
}

func (s *PostgresStore) ListLists(ctx context.Context, convID int64) ([]models.ListInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, list_id, name, created_at
		FROM shopping_lists
		WHERE conv_id = $1
		ORDER BY created_at, id`, convID)
	if err != nil {
		return nil, fmt.Errorf("error querying lists: %w", err)
	}
	defer rows.Close()

	var lists []models.ListInfo
	for rows.Next() {
		var info models.ListInfo
		if err := rows.Scan(&info.RowID, &info.ListID, &info.Name, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning list: %w", err)
		}
		lists = append(lists, info)
	}
	return lists, rows.Err()
}

func (s *PostgresStore) DeleteList(ctx context.Context, convID int64, listID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM shopping_lists
		WHERE conv_id = $1 AND list_id = $2`, convID, listID)
	if err != nil {
		return false, fmt.Errorf("error deleting list: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ActiveListID(ctx context.Context, convID int64) (string, error) {
	var listID string
	err := s.db.QueryRowContext(ctx, `
		SELECT active_list_id FROM conversations WHERE conv_id = $1`, convID).Scan(&listID)
	if err == sql.ErrNoRows {
		return DefaultListID, nil
	}
	if err != nil {
		return DefaultListID, fmt.Errorf("error querying active list: %w", err)
	}
	return listID, nil
}

func (s *PostgresStore) SetActiveListID(ctx context.Context, convID int64, listID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET active_list_id = $1, updated_at = NOW()
		WHERE conv_id = $2`, listID, convID)
	if err != nil {
		return fmt.Errorf("error setting active list: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddItem(ctx context.Context, convID int64, listID, name, quantity, addedBy string) (bool, error) {
	var listPK int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM shopping_lists
		WHERE conv_id = $1 AND list_id = $2`, convID, listID).Scan(&listPK)
	if err == sql.ErrNoRows {
		s.logger.Warn("List not found for item add",
			zap.Int64("conv_id", convID),
			zap.String("list_id", listID))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error resolving list: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shopping_items (list_pk, name, quantity, added_by)
		VALUES ($1, $2, $3, $4)`, listPK, name, quantity, addedBy)
	if err != nil {
		return false, fmt.Errorf("error adding item: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListItems(ctx context.Context, convID int64, listID string) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.id, si.name, si.quantity, si.added_by, si.purchased, si.created_at
		FROM shopping_items si
		JOIN shopping_lists sl ON si.list_pk = sl.id
		WHERE sl.conv_id = $1 AND sl.list_id = $2
		ORDER BY si.created_at, si.id`, convID, listID)
	if err != nil {
		return nil, fmt.Errorf("error querying items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Quantity, &item.AddedBy, &item.Purchased, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) itemIDAt(ctx context.Context, tx *sql.Tx, convID int64, listID string, index int) (int64, bool, error) {
	if index < 0 {
		return 0, false, nil
	}
	var itemID int64
	err := tx.QueryRowContext(ctx, `
		SELECT si.id
		FROM shopping_items si
		JOIN shopping_lists sl ON si.list_pk = sl.id
		WHERE sl.conv_id = $1 AND sl.list_id = $2
		ORDER BY si.created_at, si.id
		LIMIT 1 OFFSET $3`, convID, listID, index).Scan(&itemID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("error resolving item index: %w", err)
	}
	return itemID, true, nil
}

func (s *PostgresStore) RemoveItemAt(ctx context.Context, convID int64, listID string, index int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	itemID, ok, err := s.itemIDAt(ctx, tx, convID, listID, index)
	if err != nil || !ok {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM shopping_items WHERE id = $1`, itemID); err != nil {
		return false, fmt.Errorf("error removing item: %w", err)
	}
	return true, tx.Commit()
}

func (s *PostgresStore) SetPurchasedAt(ctx context.Context, convID int64, listID string, index int, purchased bool) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	itemID, ok, err := s.itemIDAt(ctx, tx, convID, listID, index)
	if err != nil || !ok {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE shopping_items
		SET purchased = $1, updated_at = NOW()
		WHERE id = $2`, purchased, itemID); err != nil {
		return false, fmt.Errorf("error updating item: %w", err)
	}
	return true, tx.Commit()
}

func (s *PostgresStore) ClearPurchased(ctx context.Context, convID int64, listID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM shopping_items
		WHERE id IN (
			SELECT si.id
			FROM shopping_items si
			JOIN shopping_lists sl ON si.list_pk = sl.id
			WHERE sl.conv_id = $1 AND sl.list_id = $2 AND si.purchased = TRUE
		)`, convID, listID)
	if err != nil {
		return 0, fmt.Errorf("error clearing purchased items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error getting rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) ClearAll(ctx context.Context, convID int64, listID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM shopping_items
		WHERE id IN (
			SELECT si.id
			FROM shopping_items si
			JOIN shopping_lists sl ON si.list_pk = sl.id
			WHERE sl.conv_id = $1 AND sl.list_id = $2
		)`, convID, listID)
	if err != nil {
		return 0, fmt.Errorf("error clearing items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error getting rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM shopping_lists),
			(SELECT COUNT(*) FROM shopping_items),
			(SELECT COUNT(*) FROM shopping_items WHERE purchased = TRUE)`)
	if err := row.Scan(&stats.Conversations, &stats.Lists, &stats.Items, &stats.PurchasedItems); err != nil {
		return models.Stats{}, fmt.Errorf("error querying stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) Backup(ctx context.Context, path string) error {
	return ErrBackupUnsupported
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

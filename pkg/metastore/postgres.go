package metastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xhad/scholar/internal/models"
)

// ErrNotFound is returned when no paper matches an owner and document id.
var ErrNotFound = errors.New("paper not found")

// ErrTerminalState is returned when a status update targets a paper already
// in completed or failed.
var ErrTerminalState = errors.New("paper is in a terminal state")

type PostgresConfig struct {
	ConnString string
	TableName  string
}

// PostgresStore persists paper records in Postgres, keyed by (owner_id, id).
type PostgresStore struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

func NewPostgresWithConfig(config PostgresConfig) (*PostgresStore, error) {
	if config.TableName == "" {
		config.TableName = "papers"
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &PostgresStore{config: config, pool: pool}
	if err := s.initialize(); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initialize() error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			object_key TEXT,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			status TEXT NOT NULL,
			page_count INTEGER DEFAULT 0,
			year INTEGER DEFAULT 0,
			venue TEXT,
			doi TEXT,
			citation_count INTEGER DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (owner_id, id)
		)`, s.config.TableName)

	if _, err := s.pool.Exec(context.Background(), createTable); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}
	return nil
}

func (s *PostgresStore) CreatePaper(ctx context.Context, paper models.Paper) error {
	if paper.Status == "" {
		paper.Status = models.StatusPending
	}
	now := time.Now().UTC()
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = now
	}
	paper.UpdatedAt = now

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, object_key, title, authors, abstract, status,
			page_count, year, venue, doi, citation_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.config.TableName)

	_, err := s.pool.Exec(ctx, stmt,
		paper.ID, paper.OwnerID, paper.ObjectKey, paper.Title, paper.Authors,
		paper.Abstract, paper.Status, paper.PageCount, paper.Year, paper.Venue,
		paper.DOI, paper.CitationCount, paper.CreatedAt, paper.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create paper: %v", err)
	}
	return nil
}

func (s *PostgresStore) GetPaper(ctx context.Context, ownerID, documentID string) (models.Paper, error) {
	stmt := fmt.Sprintf(`
		SELECT id, owner_id, object_key, title, authors, abstract, status,
			page_count, year, venue, doi, citation_count, created_at, updated_at
		FROM %s WHERE owner_id = $1 AND id = $2`, s.config.TableName)

	var p models.Paper
	err := s.pool.QueryRow(ctx, stmt, ownerID, documentID).Scan(
		&p.ID, &p.OwnerID, &p.ObjectKey, &p.Title, &p.Authors, &p.Abstract,
		&p.Status, &p.PageCount, &p.Year, &p.Venue, &p.DOI, &p.CitationCount,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Paper{}, ErrNotFound
		}
		return models.Paper{}, fmt.Errorf("failed to get paper: %v", err)
	}
	return p, nil
}

// UpdateStatus moves a paper to a new lifecycle status. Papers already in a
// terminal state are left untouched and the call fails with ErrTerminalState.
func (s *PostgresStore) UpdateStatus(ctx context.Context, ownerID, documentID, status string) error {
	stmt := fmt.Sprintf(`
		UPDATE %s SET status = $1, updated_at = $2
		WHERE owner_id = $3 AND id = $4
			AND status NOT IN ($5, $6)`, s.config.TableName)

	tag, err := s.pool.Exec(ctx, stmt, status, time.Now().UTC(), ownerID, documentID,
		models.StatusCompleted, models.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to update status: %v", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetPaper(ctx, ownerID, documentID); getErr != nil {
			return getErr
		}
		return ErrTerminalState
	}
	return nil
}

// UpdateMetadata sets only the fields present in the update.
func (s *PostgresStore) UpdateMetadata(ctx context.Context, ownerID, documentID string, update models.PaperUpdate) error {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Authors != nil {
		add("authors", *update.Authors)
	}
	if update.Abstract != nil {
		add("abstract", *update.Abstract)
	}
	if update.PageCount != nil {
		add("page_count", *update.PageCount)
	}
	if update.Year != nil {
		add("year", *update.Year)
	}
	if update.Venue != nil {
		add("venue", *update.Venue)
	}
	if update.DOI != nil {
		add("doi", *update.DOI)
	}
	if update.CitationCount != nil {
		add("citation_count", *update.CitationCount)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	args = append(args, ownerID, documentID)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE owner_id = $%d AND id = $%d",
		s.config.TableName, strings.Join(sets, ", "), len(args)-1, len(args))

	tag, err := s.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

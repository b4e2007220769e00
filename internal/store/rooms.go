package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/core"
	"github.com/seeitsmanish/SongCircle/internal/domain"
)

var ErrRoomExists = errors.New("room already exists")

//go:embed migrations/*.sql
var migrations embed.FS

// RoomRegistry is the persistent room directory. Room records outlive the
// ephemeral session state: a room keeps its admin across restarts.
type RoomRegistry struct {
	pool *pgxpool.Pool
}

func NewRoomRegistry(ctx context.Context, url string) (*RoomRegistry, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Str("module", "store.rooms").Msg("connected to postgres")
	return &RoomRegistry{pool: pool}, nil
}

func (r *RoomRegistry) Close() { r.pool.Close() }

// Migrate executes all embedded .sql files in name order.
func (r *RoomRegistry) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		log.Info().Str("module", "store.rooms").Str("file", e.Name()).Msg("migration applied")
	}
	return nil
}

// CreateRoom inserts a room owned by its creator, the fixed admin.
func (r *RoomRegistry) CreateRoom(ctx context.Context, name domain.RoomName, createdBy domain.ParticipantID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rooms (name, created_by)
		VALUES ($1, $2)
	`, string(name), string(createdBy))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrRoomExists
	}
	return err
}

// FindAdminForRoom resolves the admin seeded at room creation. Missing
// rooms surface as core.ErrRoomNotRegistered so the coordinator refuses
// the session.
func (r *RoomRegistry) FindAdminForRoom(ctx context.Context, name domain.RoomName) (domain.ParticipantID, error) {
	var createdBy string
	err := r.pool.QueryRow(ctx, `
		SELECT created_by FROM rooms WHERE name = $1
	`, string(name)).Scan(&createdBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.ErrRoomNotRegistered
	}
	if err != nil {
		return "", err
	}
	return domain.ParticipantID(createdBy), nil
}

// ListParams filters the room listing. Mirroring the CRUD surface: with
// neither a search term nor the for-user flag the listing is empty.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
	ForUser bool
	UserID  domain.ParticipantID
}

type Pagination struct {
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	NextPage bool `json:"nextPage"`
	PrevPage bool `json:"prevPage"`
}

type RoomPage struct {
	Rooms      []domain.Room `json:"rooms"`
	Pagination Pagination    `json:"pagination"`
}

func (r *RoomRegistry) ListRooms(ctx context.Context, p ListParams) (RoomPage, error) {
	if !p.ForUser && p.Search == "" {
		return RoomPage{Rooms: []domain.Room{}}, nil
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 10
	}

	where := []string{"TRUE"}
	args := []any{}
	if p.Search != "" {
		args = append(args, "%"+strings.ToLower(p.Search)+"%")
		where = append(where, fmt.Sprintf("name LIKE $%d", len(args)))
	}
	if p.ForUser {
		args = append(args, string(p.UserID))
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM rooms WHERE "+cond, args...).Scan(&total); err != nil {
		return RoomPage{}, err
	}

	args = append(args, p.PerPage, (p.Page-1)*p.PerPage)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT name, created_by FROM rooms
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return RoomPage{}, err
	}
	defer rows.Close()

	page := RoomPage{Rooms: []domain.Room{}}
	for rows.Next() {
		var name, createdBy string
		if err := rows.Scan(&name, &createdBy); err != nil {
			return RoomPage{}, err
		}
		page.Rooms = append(page.Rooms, domain.Room{Name: domain.RoomName(name), CreatedBy: domain.ParticipantID(createdBy)})
	}
	if err := rows.Err(); err != nil {
		return RoomPage{}, err
	}

	totalPages := (total + p.PerPage - 1) / p.PerPage
	page.Pagination = Pagination{
		Total:    total,
		Page:     p.Page,
		NextPage: p.Page < totalPages,
		PrevPage: p.Page > 1,
	}
	return page, nil
}

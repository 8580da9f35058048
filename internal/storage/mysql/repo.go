package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	drv "github.com/go-sql-driver/mysql"

	"stayfinder/internal/domain"
)

// MySQL error numbers we translate.
const (
	errDupEntry       = 1062
	errNoReferencedFK = 1452
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// mapErr turns driver errors into domain sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var me *drv.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			return fmt.Errorf("%s: %w", me.Message, domain.ErrConflict)
		case errNoReferencedFK:
			return fmt.Errorf("%s: %w", me.Message, domain.ErrNotFound)
		}
	}
	return err
}

/********** properties **********/

// UpsertProperties writes ps in one multi-row statement.
func (r *Repo) UpsertProperties(ctx context.Context, ps []domain.Property) error {
	if len(ps) == 0 {
		return nil
	}
	values := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps)*10) // 10 params per row
	for _, p := range ps {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			p.ID,
			p.Location,
			p.Environment,
			p.PropertyType,
			p.NightlyPrice,
			p.Features,
			p.Tags,
			p.MinGuests,
			p.MaxGuests,
			p.Description,
		)
	}
	sqlStr := upsertPropertiesPrefix + strings.Join(values, ",") + upsertPropertiesOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

type scanner interface{ Scan(dest ...any) error }

func scanProperty(s scanner) (domain.Property, error) {
	var p domain.Property
	err := s.Scan(
		&p.ID,
		&p.Location,
		&p.Environment,
		&p.PropertyType,
		&p.NightlyPrice,
		&p.Features,
		&p.Tags,
		&p.MinGuests,
		&p.MaxGuests,
		&p.Description,
	)
	return p, err
}

func (r *Repo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	p, err := scanProperty(r.db.QueryRowContext(ctx, getPropertySQL, id))
	if err != nil {
		return domain.Property{}, mapErr(err)
	}
	return p, nil
}

func (r *Repo) ListProperties(ctx context.Context) ([]domain.Property, error) {
	rows, err := r.db.QueryContext(ctx, listPropertiesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadCatalog makes the repository a catalog source for the API snapshot.
func (r *Repo) LoadCatalog(ctx context.Context) ([]domain.Property, error) {
	return r.ListProperties(ctx)
}

/********** users **********/

func (r *Repo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, insertUserSQL, u.Username, u.FirstName, u.PasswordHash, u.CreatedAt)
	return mapErr(err)
}

func (r *Repo) GetUser(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, getUserSQL, username).
		Scan(&u.Username, &u.FirstName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

func (r *Repo) UpdateUser(ctx context.Context, username string, u domain.User) error {
	res, err := r.db.ExecContext(ctx, updateUserSQL, u.Username, u.FirstName, u.PasswordHash, username)
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// 0 also means "matched but unchanged"; tell the two apart
		if _, err := r.GetUser(ctx, username); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) DeleteUser(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, deleteUserSQL, username)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

/********** history **********/

// SaveRun stores the run and its items in one transaction.
func (r *Repo) SaveRun(ctx context.Context, run domain.RecommendationRun) (err error) {
	q, err := json.Marshal(run.Query)
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertRunSQL, run.ID, run.Username, string(q), run.CreatedAt); err != nil {
		return mapErr(err)
	}

	if len(run.Items) > 0 {
		values := make([]string, 0, len(run.Items))
		args := make([]any, 0, len(run.Items)*6)
		for i, it := range run.Items {
			scores, _ := json.Marshal(it.Scores)
			prop, _ := json.Marshal(it.Property)
			values = append(values, "(?,?,?,?,?,?)")
			args = append(args, run.ID, i+1, it.Property.ID, it.FitScore, string(scores), string(prop))
		}
		if _, err = tx.ExecContext(ctx, insertItemsPrefix+strings.Join(values, ","), args...); err != nil {
			return mapErr(err)
		}
	}
	return tx.Commit()
}

func (r *Repo) LatestRun(ctx context.Context, username string) (domain.RecommendationRun, error) {
	var run domain.RecommendationRun
	var q []byte
	err := r.db.QueryRowContext(ctx, latestRunSQL, username).Scan(&run.ID, &run.Username, &q, &run.CreatedAt)
	if err != nil {
		return domain.RecommendationRun{}, mapErr(err)
	}
	if err := json.Unmarshal(q, &run.Query); err != nil {
		return domain.RecommendationRun{}, fmt.Errorf("decode run query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, runItemsSQL, run.ID)
	if err != nil {
		return domain.RecommendationRun{}, err
	}
	defer rows.Close()

	run.Items = []domain.Recommendation{}
	for rows.Next() {
		var it domain.Recommendation
		var scores, prop []byte
		if err := rows.Scan(&it.FitScore, &scores, &prop); err != nil {
			return domain.RecommendationRun{}, err
		}
		_ = json.Unmarshal(scores, &it.Scores)
		_ = json.Unmarshal(prop, &it.Property)
		run.Items = append(run.Items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.RecommendationRun{}, err
	}
	return run, nil
}

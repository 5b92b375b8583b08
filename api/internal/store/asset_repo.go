package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var ErrNotFound = sql.ErrNoRows

// AssetRepo — таблица component_assets: идентификатор компонента -> иконка.
type AssetRepo struct{ DB *DB }

func NewAssetRepo(db *DB) *AssetRepo { return &AssetRepo{DB: db} }

// List возвращает все записи; ключи уже в нижнем регистре.
func (r *AssetRepo) List(ctx context.Context) (map[string]string, error) {
	rows, err := r.DB.QueryContext(ctx, `select name, asset_ref from component_assets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, ref string
		if err := rows.Scan(&name, &ref); err != nil {
			return nil, err
		}
		out[name] = ref
	}
	return out, rows.Err()
}

func (r *AssetRepo) Find(ctx context.Context, name string) (string, error) {
	var ref string
	q := r.DB.rebind(`select asset_ref from component_assets where name=$1`)
	if err := r.DB.QueryRowContext(ctx, q, normName(name)).Scan(&ref); err != nil {
		return "", err
	}
	return ref, nil
}

// Upsert добавляет/обновляет иконку компонента. PK: name (lower-case).
func (r *AssetRepo) Upsert(ctx context.Context, name, ref string) error {
	name = normName(name)
	if name == "" || strings.TrimSpace(ref) == "" {
		return errors.New("store: empty asset name or ref")
	}
	q := r.DB.rebind(`
insert into component_assets(name, asset_ref)
values ($1,$2)
on conflict (name)
do update set asset_ref=excluded.asset_ref, updated_at=current_timestamp`)
	_, err := r.DB.ExecContext(ctx, q, name, strings.TrimSpace(ref))
	return err
}

func (r *AssetRepo) Delete(ctx context.Context, name string) error {
	res, err := r.DB.ExecContext(ctx, r.DB.rebind(`delete from component_assets where name=$1`), normName(name))
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

func normName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shopd/go-shop-orders/internal/shoperr"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

const categoryColumns = `id, name, description, parent_id, active, created_at`

func scanCategory(row pgx.Row, c *Category) error {
	return row.Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.Active, &c.CreatedAt)
}

func (r *Repo) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var c Category
	err := scanCategory(r.DB.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id=$1 AND active`, id), &c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shoperr.NotFound{Entity: "category", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ListRootCategories(ctx context.Context) ([]Category, error) {
	return r.listCategories(ctx, `WHERE parent_id IS NULL AND active ORDER BY name`)
}

func (r *Repo) ListChildCategories(ctx context.Context, parentID int64) ([]Category, error) {
	return r.listCategories(ctx, `WHERE parent_id=$1 AND active ORDER BY name`, parentID)
}

func (r *Repo) listCategories(ctx context.Context, tail string, args ...any) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+categoryColumns+` FROM categories `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := scanCategory(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) CreateCategory(ctx context.Context, c *Category) error {
	taken, err := r.categoryNameTaken(ctx, c.Name, 0)
	if err != nil {
		return err
	}
	if taken {
		return &shoperr.Duplicate{Entity: "category", Name: c.Name}
	}
	if c.ParentID != nil {
		if _, err := r.GetCategory(ctx, *c.ParentID); err != nil {
			return err
		}
	}
	c.Active = true
	return r.DB.QueryRow(ctx, `
		INSERT INTO categories (name, description, parent_id, active)
		VALUES ($1, $2, $3, true)
		RETURNING id, created_at`,
		c.Name, c.Description, c.ParentID).Scan(&c.ID, &c.CreatedAt)
}

// UpdateCategory rejects duplicate names and parent assignments that would
// close a cycle: the proposed parent's ancestry is walked to the root and
// must not pass through the category being updated.
func (r *Repo) UpdateCategory(ctx context.Context, c *Category) error {
	taken, err := r.categoryNameTaken(ctx, c.Name, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return &shoperr.Duplicate{Entity: "category", Name: c.Name}
	}
	if c.ParentID != nil {
		if *c.ParentID == c.ID {
			return &shoperr.InvalidState{Reason: "category cannot be its own parent"}
		}
		if _, err := r.GetCategory(ctx, *c.ParentID); err != nil {
			return err
		}
		cyclic, err := r.isDescendant(ctx, c.ID, *c.ParentID)
		if err != nil {
			return err
		}
		if cyclic {
			return &shoperr.InvalidState{Reason: "category cannot become a child of its own descendant"}
		}
	}
	ct, err := r.DB.Exec(ctx,
		`UPDATE categories SET name=$2, description=$3, parent_id=$4 WHERE id=$1`,
		c.ID, c.Name, c.Description, c.ParentID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shoperr.NotFound{Entity: "category", ID: c.ID}
	}
	return nil
}

// DeleteCategory soft-deletes; categories with active children stay.
func (r *Repo) DeleteCategory(ctx context.Context, id int64) error {
	children, err := r.ListChildCategories(ctx, id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return &shoperr.InvalidState{Reason: "category has active children"}
	}
	ct, err := r.DB.Exec(ctx, `UPDATE categories SET active=false WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shoperr.NotFound{Entity: "category", ID: id}
	}
	return nil
}

func (r *Repo) categoryNameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var taken bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE name=$1 AND id<>$2)`,
		name, excludeID).Scan(&taken)
	return taken, err
}

// isDescendant walks up from candidate to the root and reports whether it
// passes through ancestorID.
func (r *Repo) isDescendant(ctx context.Context, ancestorID, candidate int64) (bool, error) {
	cur := candidate
	for {
		var parent *int64
		err := r.DB.QueryRow(ctx,
			`SELECT parent_id FROM categories WHERE id=$1`, cur).Scan(&parent)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && parent == nil) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if *parent == ancestorID {
			return true, nil
		}
		cur = *parent
	}
}

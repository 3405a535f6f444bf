package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopd/go-shop-orders/internal/catalog"
	"github.com/shopd/go-shop-orders/internal/shoperr"
	"github.com/shopd/go-shop-orders/internal/testdb"
)

func TestCategoryNameUniqueness(t *testing.T) {
	pool := testdb.Pool(t)
	repo := &catalog.Repo{DB: pool}
	ctx := context.Background()

	require.NoError(t, repo.CreateCategory(ctx, &catalog.Category{Name: "Books"}))

	err := repo.CreateCategory(ctx, &catalog.Category{Name: "Books"})
	var du *shoperr.Duplicate
	assert.True(t, errors.As(err, &du))
}

func TestCategoryCycleRejected(t *testing.T) {
	pool := testdb.Pool(t)
	repo := &catalog.Repo{DB: pool}
	ctx := context.Background()

	// a -> b -> c chain
	a := &catalog.Category{Name: "a"}
	require.NoError(t, repo.CreateCategory(ctx, a))
	b := &catalog.Category{Name: "b", ParentID: &a.ID}
	require.NoError(t, repo.CreateCategory(ctx, b))
	c := &catalog.Category{Name: "c", ParentID: &b.ID}
	require.NoError(t, repo.CreateCategory(ctx, c))

	// reparenting a under its grandchild closes a cycle
	a.ParentID = &c.ID
	err := repo.UpdateCategory(ctx, a)
	var iv *shoperr.InvalidState
	require.True(t, errors.As(err, &iv))

	// self-parenting is rejected outright
	b.ParentID = &b.ID
	err = repo.UpdateCategory(ctx, b)
	require.True(t, errors.As(err, &iv))

	// a legal reparent still works
	c.ParentID = &a.ID
	require.NoError(t, repo.UpdateCategory(ctx, c))
}

func TestDeleteCategoryWithChildren(t *testing.T) {
	pool := testdb.Pool(t)
	repo := &catalog.Repo{DB: pool}
	ctx := context.Background()

	parent := &catalog.Category{Name: "parent"}
	require.NoError(t, repo.CreateCategory(ctx, parent))
	child := &catalog.Category{Name: "child", ParentID: &parent.ID}
	require.NoError(t, repo.CreateCategory(ctx, child))

	err := repo.DeleteCategory(ctx, parent.ID)
	var iv *shoperr.InvalidState
	require.True(t, errors.As(err, &iv))

	require.NoError(t, repo.DeleteCategory(ctx, child.ID))
	require.NoError(t, repo.DeleteCategory(ctx, parent.ID))
}

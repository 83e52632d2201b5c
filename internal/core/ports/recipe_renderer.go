package ports

import (
	"context"

	"go.kiln.dev/kiln/internal/core/domain"
)

// RecipeRenderer defines the interface for rendering recipes.
//
//go:generate mockgen -source=recipe_renderer.go -destination=mocks/mock_recipe_renderer.go -package=mocks
type RecipeRenderer interface {
	// Render evaluates every recipe under recipePath for the given variant and
	// returns the resulting metadata, one entry per recipe, in render order.
	// The configs parameter lists extra build configuration files.
	Render(ctx context.Context, recipePath string, variant domain.Variant, configs []string) ([]domain.RenderedRecipe, error)
}

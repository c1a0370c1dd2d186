package lending

import (
	"context"
)

// maxAncestorDepth bounds the parent walk. The forest invariant forbids
// cycles, but the stored data is not trusted to uphold it.
const maxAncestorDepth = 100

// Hierarchy implements traversal over the category tree. All operations are
// pure functions of the category lookup supplied at construction.
type Hierarchy struct {
	categories CategoryRepository
}

// NewHierarchy creates a Hierarchy over the given category lookup.
func NewHierarchy(categories CategoryRepository) (Hierarchy, error) {
	if categories == nil {
		return Hierarchy{}, ErrNilRepository
	}

	return Hierarchy{categories: categories}, nil
}

// Ancestors returns the chain starting at the category itself, walking parent
// links until none remain. A revisited id or an over-deep chain reports
// ErrHierarchyCorrupted instead of looping forever.
func (h Hierarchy) Ancestors(ctx context.Context, categoryID int) ([]Category, error) {
	if categoryID <= 0 {
		return nil, invalidArgument("category id must be positive")
	}

	current, err := h.categories.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	chain := make([]Category, 0, 4)
	visited := make(map[int]struct{})

	for {
		if _, seen := visited[current.ID]; seen {
			return nil, ErrHierarchyCorrupted
		}

		visited[current.ID] = struct{}{}
		chain = append(chain, current)

		if current.ParentID == nil {
			return chain, nil
		}

		if len(chain) >= maxAncestorDepth {
			return nil, ErrHierarchyCorrupted
		}

		parent, parentErr := h.categories.GetCategoryByID(ctx, *current.ParentID)
		if parentErr != nil {
			return nil, parentErr
		}

		current = parent
	}
}

// DescendantIDs returns the set of category ids in the subtree rooted at the
// given category, the root included. The visited set guards against duplicate
// visitation in malformed data.
func (h Hierarchy) DescendantIDs(ctx context.Context, categoryID int) (map[int]struct{}, error) {
	if categoryID <= 0 {
		return nil, invalidArgument("category id must be positive")
	}

	if _, err := h.categories.GetCategoryByID(ctx, categoryID); err != nil {
		return nil, err
	}

	ids := map[int]struct{}{categoryID: {}}
	queue := []int{categoryID}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		children, err := h.categories.GetCategoriesByParentID(ctx, next)
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			if _, seen := ids[child.ID]; seen {
				continue
			}

			ids[child.ID] = struct{}{}
			queue = append(queue, child.ID)
		}
	}

	return ids, nil
}

// IsAncestorOf reports whether walking up from categoryID's parent chain ever
// reaches ancestorID. A category is not its own ancestor.
func (h Hierarchy) IsAncestorOf(ctx context.Context, ancestorID int, categoryID int) (bool, error) {
	if ancestorID <= 0 || categoryID <= 0 {
		return false, invalidArgument("category ids must be positive")
	}

	chain, err := h.Ancestors(ctx, categoryID)
	if err != nil {
		return false, err
	}

	for _, ancestor := range chain[1:] {
		if ancestor.ID == ancestorID {
			return true, nil
		}
	}

	return false, nil
}

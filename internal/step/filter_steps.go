package step

import (
	"context"
	"sort"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/query"
)

// CategoryTaxonomy is the taxonomy the category filter looks at.
const CategoryTaxonomy = "category"

// PostStatusFilter matches status transitions against the workflow's
// "from" and "to" allow-lists, each independently. An empty list allows
// every status.
type PostStatusFilter struct{}

func (PostStatusFilter) Name() string { return "filter_post_status" }

func (PostStatusFilter) QueryConditions(_ context.Context, ec *domain.EventContext) ([]query.Condition, error) {
	if ec.Args.Kind != domain.EventStatusTransition {
		return nil, nil
	}
	p := ec.Args.Params
	return []query.Condition{
		query.UnlessSet(domain.MetaStatusFrom, query.MetaIn{Key: domain.MetaStatusFrom, Values: []string{p.OldStatus}}),
		query.UnlessSet(domain.MetaStatusTo, query.MetaIn{Key: domain.MetaStatusTo, Values: []string{p.NewStatus}}),
	}, nil
}

// PostTypeFilter restricts workflows to the content types they list.
// Events without a content item never pass an enabled restriction.
type PostTypeFilter struct{}

func (PostTypeFilter) Name() string { return "filter_post_type" }

func (PostTypeFilter) QueryConditions(_ context.Context, ec *domain.EventContext) ([]query.Condition, error) {
	var types []string
	if ec.Content != nil {
		types = []string{ec.Content.Type}
	}
	return []query.Condition{
		query.UnlessSet(domain.MetaPostTypeEnabled, query.MetaIn{Key: domain.MetaPostTypes, Values: types}),
	}, nil
}

// CategoryFilter restricts workflows to content carrying one of the
// categories they list.
type CategoryFilter struct{}

func (CategoryFilter) Name() string { return "filter_category" }

func (CategoryFilter) QueryConditions(_ context.Context, ec *domain.EventContext) ([]query.Condition, error) {
	return []query.Condition{
		query.UnlessSet(domain.MetaCategoryEnabled, query.MetaIn{
			Key:    domain.MetaCategories,
			Values: ec.Content.TermSlugs(CategoryTaxonomy),
		}),
	}, nil
}

// TaxonomyFilter is the category filter for every other taxonomy.
// Workflows store values as "taxonomy:slug".
type TaxonomyFilter struct{}

func (TaxonomyFilter) Name() string { return "filter_taxonomy" }

func (TaxonomyFilter) QueryConditions(_ context.Context, ec *domain.EventContext) ([]query.Condition, error) {
	return []query.Condition{
		query.UnlessSet(domain.MetaTaxonomyEnabled, query.MetaIn{
			Key:    domain.MetaTaxonomies,
			Values: TaxonomyTerms(ec.Content),
		}),
	}, nil
}

// TaxonomyTerms lists the non-category terms of c as "taxonomy:slug".
func TaxonomyTerms(c *domain.Content) []string {
	if c == nil {
		return nil
	}
	var out []string
	for taxonomy, slugs := range c.Terms {
		if taxonomy == CategoryTaxonomy {
			continue
		}
		for _, slug := range slugs {
			out = append(out, taxonomy+":"+slug)
		}
	}
	sort.Strings(out)
	return out
}

// DefaultFilters returns the built-in filter steps.
func DefaultFilters() []Step {
	return []Step{PostStatusFilter{}, PostTypeFilter{}, CategoryFilter{}, TaxonomyFilter{}}
}

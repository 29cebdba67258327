// Package query plans and executes ranked, keyset-paginated reads over posts
// and users.
//
// Every result set is totally ordered by (sort key DESC, id ASC). A page is
// requested with Limit = PageSize+1 rows; the extra row, if present, becomes
// the first row of the next page and its id is the next cursor.
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/patrickariel/semicolon-web-sub000/internal/ranking"
)

// Page size bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Planner errors. These are returned before any storage work is issued.
var (
	ErrInvalidPageSize = fmt.Errorf("page size must be between 1 and %d", MaxPageSize)
	ErrViewerRequired  = errors.New("viewer identity required")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidMode     = errors.New("invalid query mode")
)

// Mode selects the read regime.
type Mode string

const (
	ModeRecommended Mode = "recommended"
	ModeFollowing   Mode = "following"
	ModeSearch      Mode = "search"
	ModeUsers       Mode = "users"
)

// SortKey names the primary ordering expression K.
type SortKey string

const (
	SortScore     SortKey = "score"
	SortCreatedAt SortKey = "created_at"
	SortRelevance SortKey = "relevance"
	SortFollowers SortKey = "followers"
)

// Filters is a conjunction of post predicates. Zero values disable a predicate.
type Filters struct {
	Keywords        []string // every token must occur in the content
	AuthorID        string
	ReplyToAuthorID string     // post is a reply to a post by this user
	Since           *time.Time // inclusive
	Until           *time.Time // exclusive
	MinLikes        int64
	MinReplies      int64

	ExcludeAuthorID string
	TopLevelOnly    bool
	FollowedBy      string // author is followed by this user
}

// UserFilters is a conjunction of user predicates.
type UserFilters struct {
	ExcludeUserID     string
	ExcludeFollowedBy string // drop users already followed by this user
	RegisteredOnly    bool
}

// Plan is a fully resolved, storage-independent description of one page read.
type Plan struct {
	Mode        Mode
	Sort        SortKey
	Filters     Filters
	UserFilters UserFilters

	PageSize int
	Limit    int // PageSize + 1

	// CursorID is the id of the first row of the requested page, empty for
	// the first page. Boundary is filled in once CursorID has been resolved.
	CursorID string
	Boundary *Boundary

	// Now is the evaluation instant for time-dependent keys.
	Now   time.Time
	Decay ranking.DecayParams
}

// IsUserPlan reports whether the plan enumerates users rather than posts.
func (p Plan) IsUserPlan() bool {
	return p.Mode == ModeUsers
}

// WithBoundary returns a copy of the plan bounded by b.
func (p Plan) WithBoundary(b Boundary) Plan {
	p.Boundary = &b
	return p
}

// PostRequest is the caller-facing input for a post read.
type PostRequest struct {
	Mode     Mode
	ViewerID string

	// Sort and Filters are honoured for ModeSearch only; feed modes use
	// their fixed sort key and hard filters.
	Sort    SortKey
	Filters Filters

	CursorID string
	PageSize int
}

// UserRequest is the caller-facing input for a user read.
type UserRequest struct {
	ViewerID string
	CursorID string
	PageSize int
}

// Planner builds Plans.
type Planner struct {
	decay ranking.DecayParams
	now   func() time.Time
}

// NewPlanner creates a planner using decay for the score function.
func NewPlanner(decay ranking.DecayParams) *Planner {
	return &Planner{decay: decay, now: time.Now}
}

// WithClock returns a planner that evaluates time-dependent keys at now().
func (p *Planner) WithClock(now func() time.Time) *Planner {
	return &Planner{decay: p.decay, now: now}
}

// PostPlan validates req and builds the plan for a post read.
func (p *Planner) PostPlan(req PostRequest) (Plan, error) {
	if err := validatePageSize(req.PageSize); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Mode:     req.Mode,
		PageSize: req.PageSize,
		Limit:    req.PageSize + 1,
		CursorID: req.CursorID,
		Now:      p.now().UTC(),
		Decay:    p.decay,
	}

	switch req.Mode {
	case ModeRecommended:
		if req.ViewerID == "" {
			return Plan{}, ErrViewerRequired
		}
		plan.Sort = SortScore
		plan.Filters = Filters{
			ExcludeAuthorID: req.ViewerID,
			TopLevelOnly:    true,
		}
	case ModeFollowing:
		if req.ViewerID == "" {
			return Plan{}, ErrViewerRequired
		}
		plan.Sort = SortCreatedAt
		plan.Filters = Filters{FollowedBy: req.ViewerID}
	case ModeSearch:
		if err := validateFilters(req.Filters); err != nil {
			return Plan{}, err
		}
		switch req.Sort {
		case "", SortCreatedAt:
			plan.Sort = SortCreatedAt
		case SortRelevance:
			plan.Sort = SortRelevance
		default:
			return Plan{}, fmt.Errorf("%w: unsupported sort %q", ErrInvalidFilter, req.Sort)
		}
		plan.Filters = req.Filters
	default:
		return Plan{}, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}

	return plan, nil
}

// UserPlan validates req and builds the plan for the recommended-users read.
// Anonymous viewers get every registered user.
func (p *Planner) UserPlan(req UserRequest) (Plan, error) {
	if err := validatePageSize(req.PageSize); err != nil {
		return Plan{}, err
	}
	return Plan{
		Mode: ModeUsers,
		Sort: SortFollowers,
		UserFilters: UserFilters{
			ExcludeUserID:     req.ViewerID,
			ExcludeFollowedBy: req.ViewerID,
			RegisteredOnly:    true,
		},
		PageSize: req.PageSize,
		Limit:    req.PageSize + 1,
		CursorID: req.CursorID,
		Now:      p.now().UTC(),
		Decay:    p.decay,
	}, nil
}

func validatePageSize(n int) error {
	if n < 1 || n > MaxPageSize {
		return ErrInvalidPageSize
	}
	return nil
}

func validateFilters(f Filters) error {
	if f.MinLikes < 0 {
		return fmt.Errorf("%w: minLikes must be non-negative", ErrInvalidFilter)
	}
	if f.MinReplies < 0 {
		return fmt.Errorf("%w: minReplies must be non-negative", ErrInvalidFilter)
	}
	if f.Since != nil && f.Until != nil && !f.Since.Before(*f.Until) {
		return fmt.Errorf("%w: since must be before until", ErrInvalidFilter)
	}
	return nil
}

package repo

import (
	"context"
	"time"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/store"
)

// User mirrors spec §3's User entity.
type User struct {
	ID         string
	Email      string
	Name       string
	PictureURL string
	OAuthID    string
	PlanID     string
	Active     bool
	Staff      bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserRepo is the typed repository for User, backed by GSI1 (email) and
// GSI2 (OAuth id, hash-only).
type UserRepo struct{ s store.Store }

func NewUserRepo(s store.Store) *UserRepo { return &UserRepo{s: s} }

func (r *UserRepo) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		return errs.New(errs.KindValidation, "user id required")
	}
	item := userToItem(u)
	return r.s.Put(ctx, item, store.ConditionNotExists())
}

func (r *UserRepo) Get(ctx context.Context, id string) (*User, error) {
	item, err := r.s.Get(ctx, userPK(id), "META")
	if err != nil {
		return nil, err
	}
	return itemToUser(item), nil
}

// Update applies a partial patch to the user. Only non-nil fields in
// patch are applied.
func (r *UserRepo) Update(ctx context.Context, id string, patch UserPatch) error {
	item, err := r.s.Get(ctx, userPK(id), "META")
	if err != nil {
		return err
	}
	u := itemToUser(item)
	patch.apply(u)
	return r.s.Put(ctx, userToItem(u), store.ConditionExists())
}

// UserPatch holds optional field updates for UserRepo.Update.
type UserPatch struct {
	Name       *string
	PictureURL *string
	PlanID     *string
	Active     *bool
}

func (p UserPatch) apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PictureURL != nil {
		u.PictureURL = *p.PictureURL
	}
	if p.PlanID != nil {
		u.PlanID = *p.PlanID
	}
	if p.Active != nil {
		u.Active = *p.Active
	}
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return r.s.Delete(ctx, userPK(id), "META", store.ConditionNone())
}

// GetByEmail resolves a user via GSI1.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	page, err := r.s.QueryIndex(ctx, 1, email, false, 1, "")
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, errs.New(errs.KindNotFound, "no user with email "+email)
	}
	return itemToUser(page.Items[0]), nil
}

// GetByOAuthID resolves a user via GSI2 (hash-only index).
func (r *UserRepo) GetByOAuthID(ctx context.Context, oauthID string) (*User, error) {
	page, err := r.s.QueryIndex(ctx, 2, oauthID, false, 1, "")
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, errs.New(errs.KindNotFound, "no user with oauth id "+oauthID)
	}
	return itemToUser(page.Items[0]), nil
}

func userToItem(u *User) *store.Item {
	return &store.Item{
		PK: userPK(u.ID), SK: "META", Type: "user",
		Data: map[string]any{
			"email": u.Email, "name": u.Name, "picture_url": u.PictureURL,
			"oauth_id": u.OAuthID, "plan_id": u.PlanID, "active": u.Active, "staff": u.Staff,
		},
		Crt:    u.CreatedAt.Unix(),
		GSI1PK: u.Email,
		GSI2PK: u.OAuthID,
	}
}

func itemToUser(item *store.Item) *User {
	d := item.Data
	return &User{
		ID:         item.PK[len("USR#"):],
		Email:      str(d["email"]),
		Name:       str(d["name"]),
		PictureURL: str(d["picture_url"]),
		OAuthID:    str(d["oauth_id"]),
		PlanID:     str(d["plan_id"]),
		Active:     boolean(d["active"]),
		Staff:      boolean(d["staff"]),
		CreatedAt:  time.Unix(item.Crt, 0).UTC(),
		UpdatedAt:  time.Unix(item.Upd, 0).UTC(),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

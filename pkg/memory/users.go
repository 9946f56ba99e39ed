package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

type Users struct{ s *Store }

var _ store.UserStore = (*Users)(nil)

func (r *Users) emailTaken(email string, except bson.ObjectID) bool {
	for id, u := range r.s.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (r *Users) Create(ctx context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.Email = models.NormalizeEmail(u.Email)
	if r.emailTaken(u.Email, bson.NilObjectID) {
		return models.ErrConflict
	}
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	u.SetTimestamps()
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *Users) FindByIDs(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[bson.ObjectID]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			cp := u
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *Users) List(ctx context.Context) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Users) Update(ctx context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return models.ErrNotFound
	}
	u.Email = models.NormalizeEmail(u.Email)
	if r.emailTaken(u.Email, u.ID) {
		return models.ErrConflict
	}
	u.SetTimestamps()
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) SetRefreshToken(ctx context.Context, id bson.ObjectID, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.RefreshToken = token
	r.s.users[id] = u
	return nil
}

func (r *Users) Delete(ctx context.Context, id bson.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}
